package sources

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/config"
	"github.com/wonny/finfetch/pkg/httputil"
	"github.com/wonny/finfetch/pkg/logger"
	"github.com/wonny/finfetch/pkg/redis"
)

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

func testServer(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func noRetry() *httputil.Client {
	return httputil.New(config.SourceSettings{}, logger.NewNop()).DisableRetry()
}

// =============================================================================
// Yahoo
// =============================================================================

const yahooChartJSON = `{
  "chart": {
    "result": [{
      "timestamp": [1704205800, 1704292200, 1704378600],
      "indicators": {"quote": [{
        "open":   [187.15, null, 182.15],
        "high":   [188.44, null, 183.09],
        "low":    [183.89, null, 180.88],
        "close":  [185.64, null, null],
        "volume": [82488700, null, 71983600]
      }]}
    }],
    "error": null
  }
}`

func TestYahooSource_Collect(t *testing.T) {
	server := testServer(t, yahooChartJSON, func(r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
	})

	src := NewYahooSource(contracts.SourceConfig{Name: NameYahoo, Enabled: true, BaseURL: server.URL}, logger.NewNop()).
		WithHTTPClient(noRetry())

	data, err := src.Collect(context.Background(), []string{" aapl ", "AAPL"}, from, to)
	require.NoError(t, err)
	require.Len(t, data, 1)

	record := data["AAPL"]
	require.NotNil(t, record)
	assert.Equal(t, []string{NameYahoo}, record.Sources)
	require.Equal(t, 2, record.Len(), "all-null row is skipped")

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), record.Bars[0].Date)
	assert.Equal(t, 185.64, record.Bars[0].Close)
	assert.Equal(t, NameYahoo, record.Bars[0].Source)
	assert.True(t, math.IsNaN(record.Bars[1].Close), "partial null becomes NaN")
	assert.Equal(t, 182.15, record.Bars[1].Open)
	assert.Equal(t, 2, record.Metadata["data_points"])
}

func TestYahooSource_ChartErrorSkipsSymbol(t *testing.T) {
	server := testServer(t, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, nil)
	src := NewYahooSource(contracts.SourceConfig{Name: NameYahoo, Enabled: true, BaseURL: server.URL}, logger.NewNop()).
		WithHTTPClient(noRetry())

	data, err := src.Collect(context.Background(), []string{"NOPE"}, from, to)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSource_InvalidRange(t *testing.T) {
	src := NewMockSource(logger.NewNop())

	_, err := src.Collect(context.Background(), []string{"A"}, to, from)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidConfig))

	_, err = src.Collect(context.Background(), []string{"A"}, from, from)
	assert.Error(t, err)
}

func TestSource_Disabled(t *testing.T) {
	src := NewYahooSource(contracts.SourceConfig{Name: NameYahoo, Enabled: false}, logger.NewNop())
	_, err := src.Collect(context.Background(), []string{"AAPL"}, from, to)
	assert.ErrorIs(t, err, contracts.ErrSourceDisabled)
}

// =============================================================================
// Alpha Vantage
// =============================================================================

func TestAlphaVantageSource_Collect(t *testing.T) {
	body := `{
	  "Meta Data": {"2. Symbol": "IBM"},
	  "Time Series (Daily)": {
	    "2024-02-02": {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "1", "5. volume": "1"},
	    "2024-01-03": {"1. open": "161.00", "2. high": "161.73", "3. low": "160.08", "4. close": "160.10", "5. volume": "4086133"},
	    "2024-01-02": {"1. open": "162.83", "2. high": "163.29", "3. low": "160.38", "4. close": "162.00", "5. volume": "4933586"}
	  }
	}`
	server := testServer(t, body, func(r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
	})

	src := NewAlphaVantageSource(contracts.SourceConfig{Name: NameAlphaVantage, Enabled: true, APIKey: "secret", BaseURL: server.URL}, logger.NewNop()).
		WithHTTPClient(noRetry())

	data, err := src.Collect(context.Background(), []string{"ibm"}, from, to)
	require.NoError(t, err)

	record := data["IBM"]
	require.NotNil(t, record)
	require.Equal(t, 2, record.Len(), "out-of-range day dropped")
	assert.True(t, record.IsSorted())
	assert.Equal(t, 162.00, record.Bars[0].Close)
	assert.Equal(t, 4086133.0, record.Bars[1].Volume)
}

func TestParseAlphaVantage_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp alphaVantageResponse
	}{
		{"error message", alphaVantageResponse{ErrorMessage: "Invalid API call"}},
		{"rate limit note", alphaVantageResponse{Note: "Thank you for using Alpha Vantage!"}},
		{"information", alphaVantageResponse{Information: "premium endpoint"}},
		{"empty", alphaVantageResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAlphaVantage(&tt.resp, from, to)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// FRED
// =============================================================================

func TestFREDSource_Collect(t *testing.T) {
	body := `{"observations": [
	  {"date": "2024-01-02", "value": "3.95"},
	  {"date": "2024-01-03", "value": "."},
	  {"date": "2024-01-04", "value": "3.99"}
	]}`
	server := testServer(t, body, func(r *http.Request) {
		assert.Equal(t, "/fred/series/observations", r.URL.Path)
		assert.Equal(t, "DGS10", r.URL.Query().Get("series_id"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("observation_start"))
	})

	src := NewFREDSource(contracts.SourceConfig{Name: NameFRED, Enabled: true, APIKey: "k", BaseURL: server.URL}, logger.NewNop()).
		WithHTTPClient(noRetry())

	data, err := src.Collect(context.Background(), []string{"DGS10"}, from, to)
	require.NoError(t, err)

	record := data["DGS10"]
	require.NotNil(t, record)
	require.Equal(t, 3, record.Len())
	assert.Equal(t, 3.95, record.Bars[0].Close)
	assert.Equal(t, 3.95, record.Bars[0].Open)
	assert.Equal(t, 0.0, record.Bars[0].Volume)
	assert.True(t, math.IsNaN(record.Bars[1].Close))
}

func TestParseFRED_AllMissing(t *testing.T) {
	resp := &fredResponse{Observations: []fredObservation{{Date: "2024-01-02", Value: "."}}}

	bars, err := parseFRED(resp)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

// =============================================================================
// HTML
// =============================================================================

const historyHTML = `
<html><body>
<table class="nav"><tr><th>Menu</th></tr></table>
<table>
  <thead><tr>
    <th>Date</th><th>Open</th><th>High</th><th>Low</th><th>Close*</th><th>Adj Close**</th><th>Volume</th>
  </tr></thead>
  <tbody>
    <tr><td>Jan 3, 2024</td><td>184.22</td><td>185.88</td><td>183.43</td><td>184.25</td><td>183.70</td><td>58,414,500</td></tr>
    <tr><td>Jan 2, 2024</td><td>187.15</td><td>188.44</td><td>183.89</td><td>185.64</td><td>185.08</td><td>-</td></tr>
    <tr><td>Dec 29, 2023</td><td>0.24 Dividend</td></tr>
    <tr><td>Dec 28, 2023</td><td>194.14</td><td>194.66</td><td>193.17</td><td>193.58</td><td>192.99</td><td>34,049,900</td></tr>
  </tbody>
</table>
</body></html>`

func TestParseHistoryTable(t *testing.T) {
	bars, err := parseHistoryTable([]byte(historyHTML), from, to)
	require.NoError(t, err)
	require.Len(t, bars, 2, "dividend row and out-of-range row skipped")

	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 184.25, bars[0].Close, "Close* maps to close, not adj close")
	assert.Equal(t, 58414500.0, bars[0].Volume)
	assert.True(t, math.IsNaN(bars[1].Volume))
}

func TestParseHistoryTable_NoTable(t *testing.T) {
	_, err := parseHistoryTable([]byte(`<html><body><p>nothing</p></body></html>`), from, to)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestHTMLTableSource_Collect(t *testing.T) {
	server := testServer(t, historyHTML, func(r *http.Request) {
		assert.Equal(t, "/quote/AAPL/history", r.URL.Path)
	})

	src := NewHTMLTableSource(contracts.SourceConfig{Name: NameHTML, Enabled: true, BaseURL: server.URL}, logger.NewNop()).
		WithHTTPClient(noRetry())

	data, err := src.Collect(context.Background(), []string{"AAPL"}, from, to)
	require.NoError(t, err)
	record := data["AAPL"]
	require.NotNil(t, record)
	assert.True(t, record.IsSorted())
	assert.Equal(t, 185.64, record.Bars[0].Close)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234.50", 1234.5},
		{" 42 ", 42},
		{"-1.5", -1.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseNumber(tt.in), tt.in)
	}
	for _, in := range []string{"", "-", ".", "null", "abc"} {
		assert.True(t, math.IsNaN(parseNumber(in)), in)
	}
}

// =============================================================================
// Polygon
// =============================================================================

type fakeAggsIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (f *fakeAggsIterator) Next() bool {
	if f.index < len(f.aggs) {
		f.index++
		return true
	}
	return false
}

func (f *fakeAggsIterator) Item() models.Agg {
	return f.aggs[f.index-1]
}

func (f *fakeAggsIterator) Err() error {
	return f.err
}

type fakeAggsLister struct {
	iterators map[string]*fakeAggsIterator
	params    []*models.ListAggsParams
}

func (f *fakeAggsLister) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) aggsIterator {
	f.params = append(f.params, params)
	if it, ok := f.iterators[params.Ticker]; ok {
		return it
	}
	return &fakeAggsIterator{}
}

func TestPolygonSource_Collect(t *testing.T) {
	day1 := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	api := &fakeAggsLister{iterators: map[string]*fakeAggsIterator{
		"AAPL": {aggs: []models.Agg{
			{Timestamp: models.Millis(day1), Open: 187, High: 188, Low: 183, Close: 185, Volume: 1000},
			{Timestamp: models.Millis(day1.AddDate(0, 0, 1)), Open: 184, High: 186, Low: 183, Close: 184, Volume: 900},
		}},
		"FAIL": {err: errors.New("boom")},
	}}

	src := newPolygonSource(contracts.SourceConfig{Name: NamePolygon, Enabled: true, APIKey: "k"}, api, logger.NewNop())
	data, err := src.Collect(context.Background(), []string{"AAPL", "FAIL", "EMPTY"}, from, to)
	require.NoError(t, err)

	require.Len(t, data, 1)
	record := data["AAPL"]
	require.Equal(t, 2, record.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), record.Bars[0].Date)
	assert.Equal(t, 185.0, record.Bars[0].Close)

	require.Len(t, api.params, 3)
	p := api.params[0]
	assert.Equal(t, models.Day, p.Timespan)
	assert.Equal(t, 1, p.Multiplier)
	require.NotNil(t, p.Adjusted)
	assert.True(t, *p.Adjusted)
}

// =============================================================================
// Mock
// =============================================================================

func TestMockSource_Deterministic(t *testing.T) {
	src := NewMockSource(logger.NewNop())

	a, err := src.Collect(context.Background(), []string{"AAPL", "MSFT"}, from, to)
	require.NoError(t, err)
	b, err := src.Collect(context.Background(), []string{"aapl"}, from, to)
	require.NoError(t, err)

	assert.Equal(t, a["AAPL"].Bars, b["AAPL"].Bars)
	assert.NotEqual(t, a["AAPL"].Bars[0].Close, a["MSFT"].Bars[0].Close)

	// 2024-01: 23 평일
	assert.Equal(t, 23, a["AAPL"].Len())
	for _, bar := range a["AAPL"].Bars {
		assert.NotEqual(t, time.Saturday, bar.Date.Weekday())
		assert.NotEqual(t, time.Sunday, bar.Date.Weekday())
		assert.GreaterOrEqual(t, bar.High, math.Max(bar.Open, bar.Close))
		assert.LessOrEqual(t, bar.Low, math.Min(bar.Open, bar.Close))
		assert.Greater(t, bar.Close, 0.0)
	}
}

func TestMockSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockSource(logger.NewNop()).Collect(ctx, []string{"A"}, from, to)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Cache
// =============================================================================

type countingSource struct {
	*MockSource
	calls   int
	symbols [][]string
}

func (c *countingSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	c.calls++
	c.symbols = append(c.symbols, symbols)
	return c.MockSource.Collect(ctx, symbols, from, to)
}

func newTestCache(t *testing.T) *redis.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Host: mr.Host(), Port: mr.Port(), Enabled: true}})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return redis.NewCache(client, "finfetch")
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{MockSource: NewMockSource(logger.NewNop())}
	src := NewCachedSource(inner, newTestCache(t), logger.NewNop())
	ctx := context.Background()

	first, err := src.Collect(ctx, []string{"AAPL"}, from, to)
	require.NoError(t, err)
	second, err := src.Collect(ctx, []string{"AAPL", "MSFT"}, from, to)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"MSFT"}, inner.symbols[1], "only the miss is fetched")

	require.Len(t, second, 2)
	assert.Equal(t, first["AAPL"].Bars, second["AAPL"].Bars)
	assert.Equal(t, NameMock, src.Name())

	_, err = src.Collect(ctx, []string{"AAPL", "MSFT"}, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "all hits")
}

func TestCachedSource_Disabled(t *testing.T) {
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	inner := &countingSource{MockSource: NewMockSource(logger.NewNop())}
	src := NewCachedSource(inner, redis.NewCache(client, "finfetch"), logger.NewNop())

	for i := 0; i < 2; i++ {
		_, err := src.Collect(context.Background(), []string{"AAPL"}, from, to)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}

// =============================================================================
// Registry
// =============================================================================

func testConfig() *config.Config {
	return &config.Config{
		Sources: config.SourcesConfig{
			Yahoo:        config.SourceSettings{Enabled: true, BaseURL: "https://query1.finance.yahoo.com"},
			Polygon:      config.SourceSettings{Enabled: true}, // API 키 없음
			AlphaVantage: config.SourceSettings{Enabled: false},
			FRED:         config.SourceSettings{Enabled: true, APIKey: "k"},
			HTML:         config.SourceSettings{Enabled: false},
		},
	}
}

func TestRegistry_Select(t *testing.T) {
	reg := NewRegistry(testConfig(), logger.NewNop())

	all, err := reg.Select(nil)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{NameFRED, NameYahoo}, names, "polygon skipped for missing api key")

	_, err = reg.Select([]string{NameAlphaVantage})
	assert.ErrorIs(t, err, contracts.ErrSourceDisabled)

	_, err = reg.Select([]string{NamePolygon})
	assert.ErrorIs(t, err, contracts.ErrInvalidConfig)

	_, err = reg.Select([]string{"bloomberg"})
	assert.Error(t, err)

	mock, err := reg.Select([]string{NameMock})
	require.NoError(t, err)
	assert.Equal(t, NameMock, mock[0].Name())
}

func TestRegistry_WithCache(t *testing.T) {
	reg := NewRegistry(testConfig(), logger.NewNop()).WithCache(newTestCache(t))

	src, err := reg.Get(NameYahoo)
	require.NoError(t, err)
	_, ok := src.(*CachedSource)
	assert.True(t, ok)

	mock, err := reg.Get(NameMock)
	require.NoError(t, err)
	_, ok = mock.(*MockSource)
	assert.True(t, ok, "mock is never cached")
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry(testConfig(), logger.NewNop())
	reg.Register(NewMockSource(logger.NewNop()).WithWalk(0, 0.01))

	assert.Contains(t, reg.Names(), NameMock)
	src, err := reg.Get(NameMock)
	require.NoError(t, err)
	assert.Equal(t, 0.01, src.(*MockSource).volatility)
}

func TestNormalizeSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, NormalizeSymbols([]string{" aapl", "MSFT", "AAPL", ""}))
}
