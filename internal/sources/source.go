package sources

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/config"
	"github.com/wonny/finfetch/pkg/httputil"
	"github.com/wonny/finfetch/pkg/logger"
)

// Source names
const (
	NameYahoo        = "yahoo"
	NamePolygon      = "polygon"
	NameAlphaVantage = "alpha_vantage"
	NameFRED         = "fred"
	NameHTML         = "html"
	NameMock         = "mock"
)

// fetchFunc fetches one symbol's bars over [from, to]
type fetchFunc func(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error)

// base holds what every vendor adapter shares
type base struct {
	config contracts.SourceConfig
	logger *logger.Logger
}

func newBase(cfg contracts.SourceConfig, log *logger.Logger) base {
	return base{
		config: cfg,
		logger: log.WithField("source", cfg.Name),
	}
}

// Name returns the source name
func (b *base) Name() string {
	return b.config.Name
}

// Enabled reports whether the source is switched on
func (b *base) Enabled() bool {
	return b.config.Enabled
}

// Validate checks the source configuration
func (b *base) Validate() error {
	return b.config.Validate()
}

// collect runs fetch for every symbol in order
// ⭐ SSOT: 종목별 실패는 로깅 후 결과에서 제외 (소스 전체 실패 아님)
func (b *base) collect(ctx context.Context, symbols []string, from, to time.Time, fetch fetchFunc) (map[string]*contracts.PriceRecord, error) {
	if !b.config.Enabled {
		return nil, fmt.Errorf("%s: %w", b.config.Name, contracts.ErrSourceDisabled)
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	normalized := NormalizeSymbols(symbols)
	b.logger.WithFields(map[string]interface{}{
		"symbols": len(normalized),
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
	}).Info("Starting collection")

	results := make(map[string]*contracts.PriceRecord, len(normalized))
	failCount := 0

	for _, symbol := range normalized {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		bars, err := fetch(ctx, symbol, from, to)
		if err != nil {
			failCount++
			b.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch prices")
			continue
		}
		if len(bars) == 0 {
			failCount++
			b.logger.WithField("symbol", symbol).Warn("No data available")
			continue
		}

		results[symbol] = b.record(symbol, bars)
		b.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"count":  len(bars),
		}).Debug("Fetched prices")
	}

	b.logger.WithFields(map[string]interface{}{
		"success": len(results),
		"failed":  failCount,
	}).Info("Collection completed")

	return results, nil
}

// record builds a PriceRecord with provenance metadata
func (b *base) record(symbol string, bars []contracts.Bar) *contracts.PriceRecord {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	r := contracts.NewPriceRecord(symbol, b.config.Name)
	for i := range bars {
		bars[i].Source = b.config.Name
	}
	r.Bars = bars
	r.Metadata["source"] = b.config.Name
	r.Metadata["data_points"] = len(bars)
	r.Metadata["date_range"] = map[string]string{
		"start": bars[0].Date.Format("2006-01-02"),
		"end":   bars[len(bars)-1].Date.Format("2006-01-02"),
	}
	return r
}

// NormalizeSymbols upper-cases, trims and de-duplicates symbols keeping order
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := contracts.NormalizeSymbol(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// validateRange requires from < to
func validateRange(from, to time.Time) error {
	if !from.Before(to) {
		return &contracts.ValidationError{
			Field:   "date_range",
			Message: fmt.Sprintf("start %s must be before end %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		}
	}
	return nil
}

// inRange reports whether date falls in [from, to] by calendar day
func inRange(date, from, to time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(from)) && !d.After(truncateDay(to))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// valueOrNaN maps a JSON null to NaN
func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// httpSettings maps a source config to the HTTP client settings
func httpSettings(cfg contracts.SourceConfig) config.SourceSettings {
	return config.SourceSettings{
		Enabled:   cfg.Enabled,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		RateLimit: cfg.RateLimit,
		Timeout:   cfg.Timeout,
	}
}

// newHTTPClient builds the shared HTTP client for a source
func newHTTPClient(cfg contracts.SourceConfig, log *logger.Logger) *httputil.Client {
	return httputil.New(httpSettings(cfg), log)
}
