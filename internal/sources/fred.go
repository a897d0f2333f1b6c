package sources

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/httputil"
	"github.com/wonny/finfetch/pkg/logger"
)

// FREDSource fetches economic series observations from FRED
// 관측값은 종가로 사용 (시가/고가/저가 = 종가, 거래량 0)
type FREDSource struct {
	base
	httpClient *httputil.Client
}

// NewFREDSource creates a FRED adapter
func NewFREDSource(cfg contracts.SourceConfig, log *logger.Logger) *FREDSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stlouisfed.org"
	}
	return &FREDSource{
		base:       newBase(cfg, log),
		httpClient: newHTTPClient(cfg, log),
	}
}

// WithHTTPClient replaces the HTTP client
func (s *FREDSource) WithHTTPClient(c *httputil.Client) *FREDSource {
	s.httpClient = c
	return s
}

// Collect fetches every series id over [from, to]
func (s *FREDSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	return s.collect(ctx, symbols, from, to, s.fetch)
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
	ErrorMessage string            `json:"error_message"`
}

func (s *FREDSource) fetch(ctx context.Context, seriesID string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", s.config.APIKey)
	params.Set("file_type", "json")
	params.Set("observation_start", from.Format("2006-01-02"))
	params.Set("observation_end", to.Format("2006-01-02"))

	fullURL := fmt.Sprintf("%s/fred/series/observations?%s", s.config.BaseURL, params.Encode())

	var resp fredResponse
	if err := s.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, err
	}

	return parseFRED(&resp)
}

// parseFRED maps observations to bars; "." 값은 결측(NaN)
func parseFRED(resp *fredResponse) ([]contracts.Bar, error) {
	if resp.ErrorMessage != "" {
		return nil, fmt.Errorf("fred error: %s", resp.ErrorMessage)
	}

	bars := make([]contracts.Bar, 0, len(resp.Observations))
	missing := 0
	for _, obs := range resp.Observations {
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		value := math.NaN()
		if obs.Value != "." {
			value = parseNumber(obs.Value)
		}
		if math.IsNaN(value) {
			missing++
		}
		bars = append(bars, contracts.Bar{
			Date:   date,
			Open:   value,
			High:   value,
			Low:    value,
			Close:  value,
			Volume: 0,
		})
	}

	// 전부 결측이면 데이터 없음
	if missing == len(bars) {
		return nil, nil
	}
	return bars, nil
}
