package analysis

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

func day(n int) time.Time {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func recordFromReturns(symbol string, returns []float64) *contracts.PriceRecord {
	r := contracts.NewPriceRecord(symbol, "mock")
	price := 100.0
	r.Bars = append(r.Bars, contracts.Bar{Date: day(0), Open: price, High: price, Low: price, Close: price, Volume: 1})
	for i, ret := range returns {
		price *= 1 + ret
		r.Bars = append(r.Bars, contracts.Bar{Date: day(i + 1), Open: price, High: price, Low: price, Close: price, Volume: 1})
	}
	return r
}

func randomReturns(seed int64, n int, mean, std float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + std*rng.NormFloat64()
	}
	return out
}

func constantReturns(n int, r float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

// =============================================================================
// Risk Analyzer
// =============================================================================

func TestRiskAnalyzer(t *testing.T) {
	data := map[string]*contracts.PriceRecord{
		"CALM":  recordFromReturns("CALM", randomReturns(1, 300, 0.0005, 0.005)),
		"WILD":  recordFromReturns("WILD", randomReturns(2, 300, 0.0005, 0.03)),
		"SHORT": recordFromReturns("SHORT", randomReturns(3, 10, 0, 0.01)),
	}

	analyzer := NewRiskAnalyzer(DefaultConfig(), logger.NewNop())
	report, err := analyzer.Analyze(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "risk", report.AnalysisType)
	assert.Equal(t, []string{"CALM", "SHORT", "WILD"}, report.Symbols)

	calm := report.Metrics["CALM"]
	require.Empty(t, calm.Error)
	assert.Equal(t, 252, calm.DataPoints)
	assert.InDelta(t, calm.VolatilityAnnualized*100, calm.Volatility, 1e-9)
	assert.LessOrEqual(t, calm.MaxDrawdown, 0.0)
	assert.Greater(t, calm.DownsideDeviation, 0.0)

	require.Len(t, calm.VaR, 2)
	for _, v := range calm.VaR {
		assert.LessOrEqual(t, v.CVaR, v.VaR)
	}
	// 99% VaR는 95% VaR보다 더 깊은 손실
	assert.Less(t, calm.VaR[1].VaR, calm.VaR[0].VaR)

	// 정규분포 VaR: mean - z·σ
	require.Len(t, calm.ParametricVaR, 2)
	recent := tail(risk.SimpleReturns(data["CALM"].Closes()), DefaultConfig().LookbackDays)
	want := risk.CalculateParametricVaR(risk.Mean(recent), risk.StdDev(recent), 0.95)
	assert.InDelta(t, want.VaR*100, calm.ParametricVaR[0].VaR, 1e-9)
	assert.Less(t, calm.ParametricVaR[1].VaR, calm.ParametricVaR[0].VaR)
	assert.Less(t, calm.ParametricVaR[0].CVaR, calm.ParametricVaR[0].VaR)

	assert.Contains(t, report.Metrics["SHORT"].Error, "insufficient data")

	require.NotNil(t, report.CorrelationMatrix)
	assert.Len(t, report.CorrelationMatrix, 2)
	assert.Equal(t, 1.0, report.CorrelationMatrix["CALM"]["CALM"])
	assert.InDelta(t, report.CorrelationMatrix["CALM"]["WILD"], report.CorrelationMatrix["WILD"]["CALM"], 1e-12)
	assert.NotContains(t, report.CorrelationMatrix, "SHORT")

	s := report.Summary
	assert.Equal(t, 2, s.SymbolCount)
	assert.Equal(t, "WILD", s.HighestVolatility)
	assert.Equal(t, "CALM", s.LowestVolatility)

	text := report.ToSummary()
	assert.Contains(t, text, "CALM")
	assert.Contains(t, text, "VaR 95%")
	assert.Contains(t, text, "Parametric VaR 99%")
}

func TestRiskAnalyzer_CorrelatedPair(t *testing.T) {
	returns := randomReturns(5, 100, 0, 0.01)
	doubled := make([]float64, len(returns))
	for i, r := range returns {
		doubled[i] = 2 * r
	}

	data := map[string]*contracts.PriceRecord{
		"A": recordFromReturns("A", returns),
		"B": recordFromReturns("B", doubled),
	}

	report, err := NewRiskAnalyzer(DefaultConfig(), logger.NewNop()).Analyze(context.Background(), data)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.CorrelationMatrix["A"]["B"], 1e-9)
}

func TestRiskAnalyzer_NoValidSymbols(t *testing.T) {
	data := map[string]*contracts.PriceRecord{
		"EMPTY": contracts.NewPriceRecord("EMPTY", "mock"),
	}

	report, err := NewRiskAnalyzer(DefaultConfig(), logger.NewNop()).Analyze(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "no price data available", report.Metrics["EMPTY"].Error)
	assert.Nil(t, report.CorrelationMatrix)
	assert.Equal(t, "no valid metrics available", report.Summary.Error)
}

func TestRiskAnalyzer_Process(t *testing.T) {
	analyzer := NewRiskAnalyzer(DefaultConfig(), logger.NewNop())
	assert.Equal(t, "risk_analyzer", analyzer.Name())
	assert.True(t, analyzer.ValidateConfig())

	data := map[string]*contracts.PriceRecord{"A": recordFromReturns("A", randomReturns(1, 40, 0, 0.01))}
	out, err := analyzer.Process(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)
	_, ok := out.Metadata["risk_analysis"].(*RiskReport)
	assert.True(t, ok)
}

// =============================================================================
// Performance Analyzer
// =============================================================================

func TestPerformanceAnalyzer(t *testing.T) {
	data := map[string]*contracts.PriceRecord{
		"UP":   recordFromReturns("UP", constantReturns(300, 0.001)),
		"DOWN": recordFromReturns("DOWN", constantReturns(300, -0.001)),
	}

	analyzer := NewPerformanceAnalyzer(DefaultConfig(), logger.NewNop())
	report, err := analyzer.Analyze(context.Background(), data)
	require.NoError(t, err)

	up := report.Metrics["UP"]
	require.Empty(t, up.Error)
	assert.Equal(t, 301, up.DataPoints)
	assert.Equal(t, day(0), up.StartDate)
	assert.Equal(t, day(300), up.EndDate)
	assert.InDelta(t, (math.Pow(1.001, 300)-1)*100, up.TotalReturn, 1e-9)
	assert.InDelta(t, (math.Pow(1.001, 252)-1)*100, up.AnnualizedReturn, 1e-6)
	assert.Equal(t, 0.0, up.MaxDrawdown)
	assert.Equal(t, 0.0, up.Sortino)

	// 30, 90, 252 가능 / 504 불가
	require.Len(t, up.Windows, 3)
	assert.Equal(t, []int{30, 90, 252}, []int{up.Windows[0].Period, up.Windows[1].Period, up.Windows[2].Period})
	w30, ok := up.Window(30)
	require.True(t, ok)
	assert.InDelta(t, (math.Pow(1.001, 30)-1)*100, w30.TotalReturn, 1e-9)
	_, ok = up.Window(504)
	assert.False(t, ok)

	down := report.Metrics["DOWN"]
	assert.Less(t, down.MaxDrawdown, 0.0)

	s := report.Summary
	assert.Equal(t, 2, s.SymbolCount)
	assert.Equal(t, 252, s.ComparisonWindow)
	assert.Equal(t, "UP", s.BestPerformer)
	assert.Equal(t, "DOWN", s.WorstPerformer)

	assert.Contains(t, report.ToSummary(), "252d")
}

func TestPerformanceAnalyzer_ComparisonWindowFallsBack(t *testing.T) {
	data := map[string]*contracts.PriceRecord{
		"LONG":  recordFromReturns("LONG", constantReturns(100, 0.001)),
		"SHORT": recordFromReturns("SHORT", constantReturns(20, 0.01)),
	}

	report, err := NewPerformanceAnalyzer(DefaultConfig(), logger.NewNop()).Analyze(context.Background(), data)
	require.NoError(t, err)

	// 공통 구간이 없으면 전체 구간 총수익률로 비교
	assert.Equal(t, 0, report.Summary.ComparisonWindow)
	assert.Equal(t, "SHORT", report.Summary.BestPerformer)
}

func TestPerformanceAnalyzer_Sortino(t *testing.T) {
	analyzer := NewPerformanceAnalyzer(DefaultConfig(), logger.NewNop())

	returns := []float64{0.02, -0.01, 0.03, -0.02}
	downside := math.Sqrt((0.01*0.01+0.02*0.02)/2) * math.Sqrt(252)
	total := 1.02*0.99*1.03*0.98 - 1
	annual := math.Pow(1+total, 252.0/4.0) - 1

	assert.InDelta(t, (annual-0.03)/downside, analyzer.calculateSortino(returns), 1e-9)
	assert.Equal(t, 0.0, analyzer.calculateSortino([]float64{0.01}))
}

func TestPerformanceAnalyzer_Unsorted(t *testing.T) {
	record := recordFromReturns("X", constantReturns(40, 0.001))
	record.Bars[0], record.Bars[40] = record.Bars[40], record.Bars[0]

	report, err := NewPerformanceAnalyzer(DefaultConfig(), logger.NewNop()).Analyze(context.Background(), map[string]*contracts.PriceRecord{"X": record})
	require.NoError(t, err)
	assert.InDelta(t, (math.Pow(1.001, 40)-1)*100, report.Metrics["X"].TotalReturn, 1e-9)
}

func TestPerformanceAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := map[string]*contracts.PriceRecord{"A": recordFromReturns("A", constantReturns(5, 0.01))}
	_, err := NewPerformanceAnalyzer(DefaultConfig(), logger.NewNop()).Analyze(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Config
// =============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"default", func(c *Config) {}, ""},
		{"rf", func(c *Config) { c.RiskFreeRate = 2 }, "risk_free_rate"},
		{"confidence empty", func(c *Config) { c.ConfidenceLevels = nil }, "confidence_levels"},
		{"confidence range", func(c *Config) { c.ConfidenceLevels = []float64{1.0} }, "confidence_levels"},
		{"lookback", func(c *Config) { c.LookbackDays = 29 }, "lookback_days"},
		{"periods empty", func(c *Config) { c.LookbackPeriods = nil }, "lookback_periods"},
		{"periods negative", func(c *Config) { c.LookbackPeriods = []int{30, -1} }, "lookback_periods"},
		{"min observations", func(c *Config) { c.MinObservations = 1 }, "min_observations"},
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
			var verr *contracts.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPerformanceAnalyzer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LookbackPeriods = nil
	analyzer := NewPerformanceAnalyzer(cfg, logger.NewNop())
	assert.Equal(t, "performance_analyzer", analyzer.Name())
	assert.False(t, analyzer.ValidateConfig())
}
