package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/httputil"
	"github.com/wonny/finfetch/pkg/logger"
)

// AlphaVantageSource fetches TIME_SERIES_DAILY from Alpha Vantage
// ⭐ SSOT: Alpha Vantage API 호출은 이 어댑터에서만
type AlphaVantageSource struct {
	base
	httpClient *httputil.Client
}

// NewAlphaVantageSource creates an Alpha Vantage adapter
func NewAlphaVantageSource(cfg contracts.SourceConfig, log *logger.Logger) *AlphaVantageSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	return &AlphaVantageSource{
		base:       newBase(cfg, log),
		httpClient: newHTTPClient(cfg, log),
	}
}

// WithHTTPClient replaces the HTTP client
func (s *AlphaVantageSource) WithHTTPClient(c *httputil.Client) *AlphaVantageSource {
	s.httpClient = c
	return s
}

// Collect fetches every symbol and keeps rows inside [from, to]
func (s *AlphaVantageSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	return s.collect(ctx, symbols, from, to, s.fetch)
}

type alphaVantageDaily struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type alphaVantageResponse struct {
	TimeSeries   map[string]alphaVantageDaily `json:"Time Series (Daily)"`
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
}

func (s *AlphaVantageSource) fetch(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")
	params.Set("apikey", s.config.APIKey)

	fullURL := fmt.Sprintf("%s/query?%s", s.config.BaseURL, params.Encode())

	var resp alphaVantageResponse
	if err := s.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, err
	}

	return parseAlphaVantage(&resp, from, to)
}

// parseAlphaVantage converts the daily series, filtered to [from, to]
// 레이트리밋 초과 시 Note/Information 필드로 응답이 옴
func parseAlphaVantage(resp *alphaVantageResponse, from, to time.Time) ([]contracts.Bar, error) {
	switch {
	case resp.ErrorMessage != "":
		return nil, fmt.Errorf("alpha vantage error: %s", resp.ErrorMessage)
	case resp.Note != "":
		return nil, fmt.Errorf("alpha vantage note: %s", resp.Note)
	case resp.Information != "" && len(resp.TimeSeries) == 0:
		return nil, fmt.Errorf("alpha vantage information: %s", resp.Information)
	case len(resp.TimeSeries) == 0:
		return nil, fmt.Errorf("alpha vantage time series: %w", contracts.ErrNoData)
	}

	bars := make([]contracts.Bar, 0, len(resp.TimeSeries))
	for dateStr, v := range resp.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if !inRange(date, from, to) {
			continue
		}
		bars = append(bars, contracts.Bar{
			Date:   date,
			Open:   parseNumber(v.Open),
			High:   parseNumber(v.High),
			Low:    parseNumber(v.Low),
			Close:  parseNumber(v.Close),
			Volume: parseNumber(v.Volume),
		})
	}
	return bars, nil
}
