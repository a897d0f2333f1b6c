package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func recordFromCloses(symbol string, closes ...float64) *contracts.PriceRecord {
	r := contracts.NewPriceRecord(symbol, "mock")
	for i, c := range closes {
		r.Bars = append(r.Bars, contracts.Bar{
			Date: day(i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000 + float64(i),
		})
	}
	return r
}

func recordFromReturns(symbol string, returns []float64) *contracts.PriceRecord {
	closes := []float64{100}
	for _, r := range returns {
		closes = append(closes, closes[len(closes)-1]*(1+r))
	}
	return recordFromCloses(symbol, closes...)
}

func newCalculator() *Calculator {
	return NewCalculator(DefaultConfig(), logger.NewNop())
}

func assertNaNPrefix(t *testing.T, values []float64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		assert.True(t, math.IsNaN(values[i]), "index %d should be NaN", i)
	}
}

// =============================================================================
// Bundle
// =============================================================================

func TestBundle_ThreeRowScenario(t *testing.T) {
	b := newCalculator().Bundle(recordFromCloses("ABC", 100, 110, 121), nil)
	require.True(t, b.OK())

	assert.Equal(t, 121.0/100.0-1, b.Scalars["total_return"])
	assert.InDelta(t, 0.21, b.Scalars["total_return"], 1e-12)
	assert.InDelta(t, math.Pow(1.21, 84)-1, b.Scalars["annualized_return"], 0.005)

	// 벤치마크 없으면 beta=1, alpha = annualized - rf
	assert.Equal(t, 1.0, b.Scalars["beta"])
	assert.InDelta(t, b.Scalars["annualized_return"]-0.0366, b.Scalars["alpha"], 1e-9)
	assert.Equal(t, 0.0, b.Scalars["max_drawdown"])
}

func TestBundle_ZeroVolatilitySharpe(t *testing.T) {
	b := newCalculator().Bundle(recordFromCloses("FLAT", 100, 100, 100, 100), nil)
	require.True(t, b.OK())

	assert.Equal(t, 0.0, b.Scalars["volatility"])
	assert.Equal(t, 0.0, b.Scalars["sharpe_ratio"])
	assert.False(t, math.IsNaN(b.Scalars["sharpe_ratio"]))
}

func TestBundle_ErrorTagged(t *testing.T) {
	calc := newCalculator()

	tests := []struct {
		name   string
		record *contracts.PriceRecord
		reason string
	}{
		{"nil", nil, "empty record"},
		{"empty", contracts.NewPriceRecord("E", "mock"), "empty record"},
		{"no closes", recordFromCloses("N", math.NaN(), math.NaN()), "no close prices"},
		{"single close", recordFromCloses("S", 100), "no valid returns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Bundle(tt.record, nil)
			assert.False(t, b.OK())
			assert.Equal(t, map[string]interface{}{"error": tt.reason}, b.ToMap())
		})
	}
}

func TestBundle_VaRAndMoments(t *testing.T) {
	returns := make([]float64, 120)
	for i := range returns {
		returns[i] = 0.02 * math.Sin(float64(i)*0.7)
	}

	b := newCalculator().Bundle(recordFromReturns("VAR", returns), nil)
	require.True(t, b.OK())

	for _, key := range []string{"var_95", "var_99", "cvar_95", "cvar_99", "skewness", "kurtosis"} {
		_, ok := b.Get(key)
		assert.True(t, ok, key)
	}
	assert.LessOrEqual(t, b.Scalars["cvar_95"], b.Scalars["var_95"])
	assert.LessOrEqual(t, b.Scalars["cvar_99"], b.Scalars["var_99"])
	assert.Less(t, b.Scalars["max_drawdown"], 0.0)
	assert.Len(t, b.Series["returns"], 121)
	assert.Contains(t, b.Series, "sma_20")
	assert.Contains(t, b.Series, "macd_histogram")
}

func TestBundle_BetaAgainstBenchmark(t *testing.T) {
	benchReturns := make([]float64, 40)
	stockReturns := make([]float64, 40)
	for i := range benchReturns {
		benchReturns[i] = 0.01 * math.Cos(float64(i))
		stockReturns[i] = 2 * benchReturns[i]
	}

	stock := recordFromReturns("STK", stockReturns)
	bench := recordFromReturns("SPY", benchReturns)

	b := newCalculator().Bundle(stock, bench)
	assert.InDelta(t, 2.0, b.Scalars["beta"], 1e-9)

	// alpha: 조인 구간 복리 연환산 기준
	rf := DefaultConfig().RiskFreeRate
	wantAlpha := (risk.AnnualizedReturnFromReturns(stockReturns) - rf) -
		2*(risk.AnnualizedReturnFromReturns(benchReturns)-rf)
	assert.InDelta(t, wantAlpha, b.Scalars["alpha"], 1e-6)

	// 공통 날짜가 10개 이하이면 기본값
	short := recordFromReturns("SPY", benchReturns[:5])
	b = newCalculator().Bundle(stock, short)
	assert.Equal(t, 1.0, b.Scalars["beta"])

	// 벤치마크 분산 0
	assert.Equal(t, 1.0, Beta([]float64{0.1, 0.2}, []float64{0, 0}))
}

func TestBundle_PercentFromHigh(t *testing.T) {
	r := recordFromCloses("HI", 100, 120, 90)
	b := newCalculator().Bundle(r, nil)
	// max high = 121
	assert.InDelta(t, (90.0/121.0-1)*100, b.Scalars["pct_from_high"], 1e-9)
}

// =============================================================================
// Calculate
// =============================================================================

func TestCalculate(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	row, err := newCalculator().Calculate(recordFromCloses("UP", closes...), nil)
	require.NoError(t, err)

	assert.Equal(t, "UP", row.Symbol)
	assert.Equal(t, 60, row.DataPoints)
	assert.Equal(t, 159.0, row.CurrentPrice)
	assert.Equal(t, 160.0, row.High52w)
	assert.Equal(t, 99.0, row.Low52w)
	assert.InDelta(t, (159.0/100.0-1)*100, row.TotalReturn, 1e-9)
	assert.Equal(t, 100.0, row.RSI)
	assert.Equal(t, 0.0, row.MaxDrawdown)
	assert.Equal(t, 1.0, row.Beta)
	assert.InDelta(t, 149.5, row.SMA20, 1e-9)
	assert.InDelta(t, 134.5, row.SMA50, 1e-9)
	assert.InDelta(t, 1059.0/1029.5, row.VolumeRatio, 1e-9)
}

func TestCalculate_AgreesWithBundle(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7) - float64(i%3)
	}
	record := recordFromCloses("MIX", closes...)

	calc := newCalculator()
	row, err := calc.Calculate(record, nil)
	require.NoError(t, err)
	b := calc.Bundle(record, nil)

	// 변동성은 둘 다 로그 수익률 기준
	assert.InDelta(t, b.Scalars["volatility"]*100, row.Volatility, 1e-9)
	assert.InDelta(t, b.Scalars["sharpe_ratio"], row.SharpeRatio, 1e-9)
	assert.InDelta(t, b.Scalars["alpha"]*100, row.Alpha, 1e-9)
}

func TestCalculate_RSIDefaultsToNeutral(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	row, err := newCalculator().Calculate(recordFromCloses("FLAT", closes...), nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, row.RSI)
	assert.Equal(t, 0.0, row.SharpeRatio)
}

func TestCalculate_InsufficientData(t *testing.T) {
	_, err := newCalculator().Calculate(recordFromCloses("SHORT", 1, 2, 3), nil)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))

	_, err = newCalculator().Calculate(nil, nil)
	assert.True(t, errors.Is(err, contracts.ErrNoData))
}

// =============================================================================
// Indicators
// =============================================================================

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assertNaNPrefix(t, got, 2)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, got[2:], 1e-12)

	assertNaNPrefix(t, SMA([]float64{1, 2}, 3), 2)
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assertNaNPrefix(t, got, 2)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, got[2:], 1e-12)

	short := EMA([]float64{1, 2}, 3)
	assertNaNPrefix(t, short, 2)
}

func TestMACD(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + 5*math.Sin(float64(i)/5)
	}

	line, sig, hist := MACD(values, 12, 26, 9)
	require.Len(t, line, 60)
	assertNaNPrefix(t, line, 25)
	assertNaNPrefix(t, sig, 33)
	assert.False(t, math.IsNaN(sig[33]))
	for i := 33; i < 60; i++ {
		assert.InDelta(t, line[i]-sig[i], hist[i], 1e-12)
	}
}

func TestRSI(t *testing.T) {
	rising := RSI([]float64{1, 2, 3, 4}, 3)
	assertNaNPrefix(t, rising, 2)
	assert.Equal(t, 100.0, rising[2])
	assert.Equal(t, 100.0, rising[3])

	mixed := RSI([]float64{1, 2, 1, 2}, 2)
	assert.Equal(t, 100.0, mixed[1])
	assert.InDelta(t, 50.0, mixed[2], 1e-12)
	assert.InDelta(t, 50.0, mixed[3], 1e-12)

	flat := RSI([]float64{5, 5, 5}, 2)
	assert.True(t, math.IsNaN(flat[2]))
}

func TestBollinger(t *testing.T) {
	mid, up, low := Bollinger([]float64{2, 2, 2, 4}, 3, 2)
	assertNaNPrefix(t, mid, 2)
	assert.Equal(t, 2.0, mid[2])
	assert.Equal(t, 2.0, up[2])
	assert.Equal(t, 2.0, low[2])

	// [2,2,4]: mean 8/3, sample std = sqrt(4/3)
	std := math.Sqrt(4.0 / 3.0)
	assert.InDelta(t, 8.0/3.0+2*std, up[3], 1e-9)
	assert.InDelta(t, 8.0/3.0-2*std, low[3], 1e-9)
}

func TestStochasticAndWilliamsR(t *testing.T) {
	highs := []float64{2, 3, 4, 5}
	lows := []float64{0, 1, 2, 3}
	closes := []float64{1, 2, 3, 4}

	k, d := Stochastic(highs, lows, closes, 3, 2)
	assertNaNPrefix(t, k, 2)
	assert.InDelta(t, 75.0, k[2], 1e-12)
	assert.InDelta(t, 75.0, k[3], 1e-12)
	assert.True(t, math.IsNaN(d[2]))
	assert.InDelta(t, 75.0, d[3], 1e-12)

	w := WilliamsR(highs, lows, closes, 3)
	assert.InDelta(t, -25.0, w[2], 1e-12)
}

// =============================================================================
// Config & processors
// =============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"rf too high", func(c *Config) { c.RiskFreeRate = 1.5 }, "risk_free_rate"},
		{"rf negative", func(c *Config) { c.RiskFreeRate = -0.01 }, "risk_free_rate"},
		{"confidence one", func(c *Config) { c.ConfidenceLevels = []float64{0.95, 1} }, "confidence_levels"},
		{"confidence empty", func(c *Config) { c.ConfidenceLevels = nil }, "confidence_levels"},
		{"lookback zero", func(c *Config) { c.LookbackDays = 0 }, "lookback_days"},
		{"unknown indicator", func(c *Config) { c.Indicators.Enabled = []string{"ichimoku"} }, "indicators"},
		{"macd order", func(c *Config) { c.Indicators.MACDFast = 30 }, "macd_fast"},
		{"zero sma", func(c *Config) { c.Indicators.SMAPeriods = []int{0} }, "sma/ema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr contracts.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestIndicatorsProcessor(t *testing.T) {
	cfg := DefaultIndicatorConfig()
	cfg.Enabled = AllIndicators()
	p := NewIndicatorsProcessor(cfg, logger.NewNop())
	require.True(t, p.ValidateConfig())

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	in := map[string]*contracts.PriceRecord{"AAA": recordFromCloses("AAA", closes...)}

	out, err := p.Process(context.Background(), in)
	require.NoError(t, err)

	derived := out.Data["AAA"].Derived
	for _, name := range []string{"sma_20", "sma_50", "sma_200", "ema_12", "ema_26", "rsi_14", "macd",
		"macd_signal", "macd_histogram", "bb_upper", "bb_middle", "bb_lower", "stoch_k", "stoch_d", "williams_r"} {
		require.Contains(t, derived, name)
		assert.Len(t, derived[name], 40, name)
	}
	// 입력 레코드는 변경되지 않음
	assert.Empty(t, in["AAA"].Derived)
}

func TestMetricsProcessor(t *testing.T) {
	p := NewMetricsProcessor(DefaultConfig(), logger.NewNop())
	require.True(t, p.ValidateConfig())

	data := map[string]*contracts.PriceRecord{
		"AAA": recordFromCloses("AAA", 100, 101, 103, 102),
		"BAD": recordFromCloses("BAD", 100),
	}
	out, err := p.Process(context.Background(), data)
	require.NoError(t, err)

	assert.Contains(t, out.Metadata["AAA"], "sharpe_ratio")
	assert.Equal(t, map[string]interface{}{"error": "no valid returns"}, out.Metadata["BAD"])
	assert.Same(t, data["AAA"], out.Data["AAA"])

	bad := DefaultConfig()
	bad.RiskFreeRate = 2
	assert.False(t, NewMetricsProcessor(bad, logger.NewNop()).ValidateConfig())
}
