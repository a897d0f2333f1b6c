package sources

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"golang.org/x/time/rate"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// aggsIterator is the part of the polygon iterator we use
type aggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// aggsLister lists aggregate bars
type aggsLister interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) aggsIterator
}

// polygonREST adapts *polygon.Client to aggsLister
type polygonREST struct {
	client *polygon.Client
}

func (p polygonREST) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) aggsIterator {
	return p.client.ListAggs(ctx, params, options...)
}

// PolygonSource fetches adjusted daily aggregates from Polygon.io
// ⭐ SSOT: Polygon API 호출은 이 어댑터에서만
type PolygonSource struct {
	base
	api     aggsLister
	limiter *rate.Limiter
}

// NewPolygonSource creates a Polygon adapter
func NewPolygonSource(cfg contracts.SourceConfig, log *logger.Logger) *PolygonSource {
	return newPolygonSource(cfg, polygonREST{client: polygon.New(cfg.APIKey)}, log)
}

func newPolygonSource(cfg contracts.SourceConfig, api aggsLister, log *logger.Logger) *PolygonSource {
	s := &PolygonSource{
		base: newBase(cfg, log),
		api:  api,
	}
	// 분당 요청 수 제한 (무료 플랜 5회)
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimit)), 1)
	}
	return s
}

// Collect fetches every symbol over [from, to]
func (s *PolygonSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	return s.collect(ctx, symbols, from, to, s.fetch)
}

func (s *PolygonSource) fetch(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(truncateDay(from)),
		To:         models.Millis(truncateDay(to)),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(50000)

	iter := s.api.ListAggs(ctx, params)

	var bars []contracts.Bar
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, contracts.Bar{
			Date:   truncateDay(time.Time(agg.Timestamp)),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polygon aggregates: %w", err)
	}

	return bars, nil
}
