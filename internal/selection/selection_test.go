package selection

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/metrics"
	"github.com/wonny/finfetch/pkg/config"
	"github.com/wonny/finfetch/pkg/logger"
	"github.com/wonny/finfetch/pkg/redis"
)

func day(n int) time.Time {
	return time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func recordFromCloses(symbol string, closes []float64) *contracts.PriceRecord {
	r := contracts.NewPriceRecord(symbol, "mock")
	for i, c := range closes {
		r.Bars = append(r.Bars, contracts.Bar{
			Date: day(i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
	return r
}

func flat(symbol string, n int, price float64) *contracts.PriceRecord {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return recordFromCloses(symbol, closes)
}

// =============================================================================
// Ranker
// =============================================================================

func TestRank(t *testing.T) {
	ranker := NewRanker(DefaultWeightConfig(), logger.NewNop())

	rows := []contracts.OpportunityRow{
		{Symbol: "A", SharpeRatio: 1, AnnualizedReturn: 10, PctFrom52wHigh: -5},
		{Symbol: "B", SharpeRatio: 2, AnnualizedReturn: 20, PctFrom52wHigh: -10},
		{Symbol: "C", SharpeRatio: 0, AnnualizedReturn: 0, PctFrom52wHigh: 0},
	}

	ranked, err := ranker.Rank(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "B", ranked[0].Symbol)
	assert.Equal(t, "A", ranked[1].Symbol)
	assert.Equal(t, "C", ranked[2].Symbol)

	assert.InDelta(t, 0.7, ranked[0].Score, 1e-12)
	assert.InDelta(t, 0.5, ranked[1].Score, 1e-12)
	assert.InDelta(t, 0.3, ranked[2].Score, 1e-12)

	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, 1.0, ranked[0].NormSharpe)
	assert.Equal(t, 0.0, ranked[0].NormHigh)
	assert.True(t, ranked[0].IsTopRanked(1))
	assert.False(t, ranked[1].IsTopRanked(1))
}

func TestRank_StableOnTies(t *testing.T) {
	ranker := NewRanker(DefaultWeightConfig(), logger.NewNop())

	rows := []contracts.OpportunityRow{
		{Symbol: "Z", SharpeRatio: 1, AnnualizedReturn: 5, PctFrom52wHigh: -1},
		{Symbol: "M", SharpeRatio: 1, AnnualizedReturn: 5, PctFrom52wHigh: -1},
		{Symbol: "A", SharpeRatio: 1, AnnualizedReturn: 5, PctFrom52wHigh: -1},
	}

	ranked, err := ranker.Rank(context.Background(), rows)
	require.NoError(t, err)

	// 범위 0 → 모두 0.5, 입력 순서 유지
	for i, r := range ranked {
		assert.Equal(t, rows[i].Symbol, r.Symbol)
		assert.Equal(t, 0.5, r.NormSharpe)
		assert.Equal(t, 0.5, r.NormReturn)
		assert.Equal(t, 0.5, r.NormHigh)
		assert.InDelta(t, 0.5, r.Score, 1e-12)
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestRank_Empty(t *testing.T) {
	ranked, err := NewRanker(DefaultWeightConfig(), logger.NewNop()).Rank(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRank_NaNRanksLast(t *testing.T) {
	ranker := NewRanker(DefaultWeightConfig(), logger.NewNop())

	rows := []contracts.OpportunityRow{
		{Symbol: "NAN", SharpeRatio: 1, AnnualizedReturn: 5, PctFrom52wHigh: math.NaN()},
		{Symbol: "OK", SharpeRatio: 1, AnnualizedReturn: 5, PctFrom52wHigh: -1},
	}

	ranked, err := ranker.Rank(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, "OK", ranked[0].Symbol)
	assert.Equal(t, 0.0, ranked[1].NormHigh)
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights WeightConfig
		want    bool
	}{
		{"default", DefaultWeightConfig(), true},
		{"sharpe only", WeightConfig{Sharpe: 1}, true},
		{"under", WeightConfig{Sharpe: 0.4, Return: 0.3}, false},
		{"negative", WeightConfig{Sharpe: 1.2, Return: -0.2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.weights.ValidateWeights())
		})
	}
}

// =============================================================================
// Screener
// =============================================================================

func TestScreen(t *testing.T) {
	screener := NewScreener(DefaultScreenerConfig(), logger.NewNop())

	data := map[string]*contracts.PriceRecord{
		"MSFT": flat("MSFT", 1100, 100),
		"AAPL": flat("AAPL", 1000, 50),
		"TINY": flat("TINY", 999, 10),
	}

	rows, skipped, err := screener.Screen(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "MSFT", rows[1].Symbol)
	assert.Equal(t, 1, skipped[SkipInsufficientData])

	// 가격 변화 없음 → 수익률 0, 표준편차 0 → Sharpe 0
	assert.InDelta(t, 0.0, rows[1].AnnualizedReturn, 1e-12)
	assert.Equal(t, 0.0, rows[1].SharpeRatio)
	assert.InDelta(t, (100.0/101.0-1)*100, rows[1].PctFrom52wHigh, 1e-9)
}

func TestScreen_LookbackWindow(t *testing.T) {
	closes := make([]float64, 1500)
	for i := range closes {
		closes[i] = 100
		if i < 240 {
			closes[i] = 50
		}
	}
	record := recordFromCloses("GROW", closes)

	// 5년(1260행) 구간만 사용하면 가격 변화 없음
	screener := NewScreener(DefaultScreenerConfig(), logger.NewNop())
	rows, _, err := screener.Screen(context.Background(), map[string]*contracts.PriceRecord{"GROW": record})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.0, rows[0].AnnualizedReturn, 1e-12)

	cfg := DefaultScreenerConfig()
	cfg.LookbackYears = 10
	rows, _, err = NewScreener(cfg, logger.NewNop()).Screen(context.Background(), map[string]*contracts.PriceRecord{"GROW": record})
	require.NoError(t, err)
	want := (math.Pow(2, 252.0/1500.0) - 1) * 100
	assert.InDelta(t, want, rows[0].AnnualizedReturn, 1e-9)
}

func TestScreen_InvalidPrice(t *testing.T) {
	cfg := DefaultScreenerConfig()
	cfg.MinDataPoints = 3
	record := recordFromCloses("BAD", []float64{0, 1, 2})

	rows, skipped, err := NewScreener(cfg, logger.NewNop()).Screen(context.Background(), map[string]*contracts.PriceRecord{"BAD": record})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, skipped[SkipInvalidPrice])
}

func TestScreen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewScreener(DefaultScreenerConfig(), logger.NewNop()).Screen(ctx, map[string]*contracts.PriceRecord{"A": flat("A", 10, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSharpe(t *testing.T) {
	closes := []float64{100, 101, 100, 102, 101}

	returns := make([]float64, 0, 4)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	want := (mean - 0.03/252) / std * math.Sqrt(252)

	assert.InDelta(t, want, logSharpe(closes, 0.03), 1e-9)
	assert.Equal(t, 0.0, logSharpe([]float64{5, 5, 5}, 0.03))
}

func TestPctFromHigh(t *testing.T) {
	highs := []float64{10, 20, 15}
	assert.InDelta(t, -25.0, pctFromHigh(highs, 15, 2), 1e-12)
	assert.InDelta(t, 0.0, pctFromHigh(highs, 15, 1), 1e-12)
	assert.InDelta(t, -25.0, pctFromHigh(highs, 15, 260), 1e-12)
	assert.True(t, math.IsNaN(pctFromHigh([]float64{math.NaN()}, 15, 1)))
}

func TestScreenerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ScreenerConfig)
		field  string
	}{
		{"default", func(c *ScreenerConfig) {}, ""},
		{"risk free too high", func(c *ScreenerConfig) { c.RiskFreeRate = 1.5 }, "risk_free_rate"},
		{"risk free negative", func(c *ScreenerConfig) { c.RiskFreeRate = -0.1 }, "risk_free_rate"},
		{"lookback zero", func(c *ScreenerConfig) { c.LookbackYears = 0 }, "lookback_years"},
		{"week lookback zero", func(c *ScreenerConfig) { c.WeekLookback = 0 }, "week_52_lookback"},
		{"min data points zero", func(c *ScreenerConfig) { c.MinDataPoints = 0 }, "min_data_points"},
		{"weights", func(c *ScreenerConfig) { c.Weights.Sharpe = 0.9 }, "weights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScreenerConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr *contracts.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, contracts.ErrInvalidConfig)
		})
	}
}

func TestBuildScreeningRows(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7) - float64(i%3)
	}

	data := map[string]*contracts.PriceRecord{
		"SPY":  recordFromCloses("SPY", closes),
		"AAPL": recordFromCloses("AAPL", closes),
		"NEW":  flat("NEW", 5, 10),
	}

	calc := metrics.NewCalculator(metrics.DefaultConfig(), logger.NewNop())
	rows, errs := BuildScreeningRows(context.Background(), calc, data, "spy")

	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "SPY", rows[1].Symbol)
	assert.Equal(t, 60, rows[0].DataPoints)

	// 벤치마크와 동일한 시계열 → beta 1
	assert.InDelta(t, 1.0, rows[0].Beta, 1e-9)

	require.Contains(t, errs, "NEW")
	assert.ErrorIs(t, errs["NEW"], contracts.ErrInsufficientData)
}

// =============================================================================
// Processor / Repository
// =============================================================================

func newTestCache(t *testing.T) *redis.Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.New(&config.Config{
		Redis: config.RedisConfig{Host: mr.Host(), Port: mr.Port(), Enabled: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return redis.NewCache(client, "finfetch")
}

func TestProcessor(t *testing.T) {
	cfg := DefaultScreenerConfig()
	cfg.MinDataPoints = 30

	repo := NewRepository(newTestCache(t))
	p := NewProcessor(cfg, logger.NewNop()).WithRepository(repo)
	assert.Equal(t, "stock_screening", p.Name())
	require.True(t, p.ValidateConfig())

	data := map[string]*contracts.PriceRecord{
		"AAA": flat("AAA", 40, 10),
		"BBB": flat("BBB", 40, 20),
		"CCC": flat("CCC", 10, 30),
	}

	out, err := p.Process(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)

	rows := out.Metadata["screening_table"].([]contracts.OpportunityRow)
	ranked := out.Metadata["ranking"].([]contracts.RankedRow)
	skipped := out.Metadata["skipped"].(map[string]int)
	assert.Len(t, rows, 2)
	assert.Len(t, ranked, 2)
	assert.Equal(t, 1, skipped[SkipInsufficientData])

	today := time.Now().UTC().Truncate(24 * time.Hour)
	cached, err := repo.GetRankingResults(context.Background(), today, 1)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, ranked[0].Symbol, cached[0].Symbol)

	result, err := repo.GetScreeningResult(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalInput)
	assert.Equal(t, 2, result.TotalPassed)
}

func TestProcessor_InvalidConfig(t *testing.T) {
	cfg := DefaultScreenerConfig()
	cfg.RiskFreeRate = 2
	assert.False(t, NewProcessor(cfg, logger.NewNop()).ValidateConfig())
}

func TestRepository_Miss(t *testing.T) {
	repo := NewRepository(newTestCache(t))

	_, err := repo.GetScreeningResult(context.Background(), day(0))
	assert.ErrorIs(t, err, contracts.ErrNoData)

	_, err = repo.GetRankingResults(context.Background(), day(0), 10)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestRepository_Disabled(t *testing.T) {
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	repo := NewRepository(redis.NewCache(client, "finfetch"))

	require.NoError(t, repo.SaveRankingResults(context.Background(), day(0), nil))
	_, err = repo.GetRankingResults(context.Background(), day(0), 0)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}
