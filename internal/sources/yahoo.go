package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/httputil"
	"github.com/wonny/finfetch/pkg/logger"
)

// YahooSource fetches daily bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo chart API 호출은 이 어댑터에서만
type YahooSource struct {
	base
	httpClient *httputil.Client
}

// NewYahooSource creates a Yahoo Finance adapter
func NewYahooSource(cfg contracts.SourceConfig, log *logger.Logger) *YahooSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	return &YahooSource{
		base:       newBase(cfg, log),
		httpClient: newHTTPClient(cfg, log),
	}
}

// WithHTTPClient replaces the HTTP client
func (s *YahooSource) WithHTTPClient(c *httputil.Client) *YahooSource {
	s.httpClient = c
	return s
}

// Collect fetches every symbol over [from, to]
func (s *YahooSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	return s.collect(ctx, symbols, from, to, s.fetch)
}

// yahooChartResponse is the subset of /v8/finance/chart we read
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (s *YahooSource) fetch(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.config.BaseURL, url.PathEscape(symbol), params.Encode())

	var resp yahooChartResponse
	if err := s.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, err
	}

	return parseYahooChart(&resp)
}

// parseYahooChart converts the chart payload into bars
// 모든 값이 null인 행은 제외, 일부만 null이면 NaN
func parseYahooChart(resp *yahooChartResponse) ([]contracts.Bar, error) {
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart: %w", contracts.ErrNoData)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart quotes: %w", contracts.ErrNoData)
	}
	quote := result.Indicators.Quote[0]

	at := func(values []*float64, i int) *float64 {
		if i < len(values) {
			return values[i]
		}
		return nil
	}

	bars := make([]contracts.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c, v := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i), at(quote.Volume, i)
		if o == nil && h == nil && l == nil && c == nil && v == nil {
			continue
		}
		bars = append(bars, contracts.Bar{
			Date:   truncateDay(time.Unix(ts, 0)),
			Open:   valueOrNaN(o),
			High:   valueOrNaN(h),
			Low:    valueOrNaN(l),
			Close:  valueOrNaN(c),
			Volume: valueOrNaN(v),
		})
	}
	return bars, nil
}
