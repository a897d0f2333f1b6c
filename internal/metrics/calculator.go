package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

// minBetaPoints 베타 계산에 필요한 최소 공통 날짜 수 (초과)
const minBetaPoints = 10

// Calculator computes per-symbol metrics
// ⭐ SSOT: 수익률/변동성/샤프/낙폭/VaR/베타/알파 계산은 여기서만
type Calculator struct {
	config Config
	logger *logger.Logger
}

// NewCalculator creates a new calculator
func NewCalculator(config Config, log *logger.Logger) *Calculator {
	return &Calculator{
		config: config,
		logger: log,
	}
}

// Config returns the calculator config
func (c *Calculator) Config() Config {
	return c.config
}

// =============================================================================
// MetricsBundle
// =============================================================================

// Bundle computes the named metric set for one record
// 빈 레코드, 종가 없음, 유효 수익률 0개이면 에러 태그된 번들 반환
func (c *Calculator) Bundle(record, benchmark *contracts.PriceRecord) *contracts.MetricsBundle {
	if record == nil || record.Len() == 0 {
		return contracts.ErrorBundle(symbolOf(record), "empty record")
	}

	closes := record.Closes()
	valid := dropNaN(closes)
	if len(valid) == 0 {
		return contracts.ErrorBundle(record.Symbol, "no close prices")
	}

	returns := risk.SimpleReturns(closes)
	if len(returns) == 0 {
		return contracts.ErrorBundle(record.Symbol, "no valid returns")
	}
	logReturns := risk.LogReturns(closes)

	b := contracts.NewMetricsBundle(record.Symbol)

	total := valid[len(valid)-1]/valid[0] - 1
	annualized := risk.AnnualizedReturnFromTotal(total, len(valid))
	volatility := risk.AnnualizedVolatility(logReturns)

	b.Set("total_return", total)
	b.Set("annualized_return", annualized)
	b.Set("volatility", volatility)
	b.Set("sharpe_ratio", risk.SharpeRatio(annualized, c.config.RiskFreeRate, volatility))
	b.Set("max_drawdown", risk.MaxDrawdown(returns)*100)
	b.Set("skewness", risk.Skewness(returns))
	b.Set("kurtosis", risk.Kurtosis(returns))

	for _, cl := range c.config.ConfidenceLevels {
		v := risk.CalculateVaR(returns, cl)
		b.Set(fmt.Sprintf("var_%d", confidenceKey(cl)), v.VaR)
		b.Set(fmt.Sprintf("cvar_%d", confidenceKey(cl)), v.CVaR)
	}

	beta, alpha := c.betaAlpha(record, benchmark, annualized)
	b.Set("beta", beta)
	b.Set("alpha", alpha)
	b.Set("pct_from_high", c.percentFromHigh(record))

	c.addIndicators(b, record)
	b.Series["returns"] = risk.AlignedSimpleReturns(closes)

	return b
}

// addIndicators stores indicator series and their last values
func (c *Calculator) addIndicators(b *contracts.MetricsBundle, record *contracts.PriceRecord) {
	for name, series := range ComputeIndicators(record, c.config.Indicators) {
		b.Series[name] = series
		last, ok := contracts.Series(series).Last()
		if !ok {
			last = math.NaN()
		}
		b.Set(name, last)
	}
}

// betaAlpha Cov/Var over inner-joined dates; beta=1 when unavailable
// alpha는 조인 구간의 복리 연환산 수익률로 계산, 벤치마크가 없으면 annualized - rf
func (c *Calculator) betaAlpha(record, benchmark *contracts.PriceRecord, annualized float64) (float64, float64) {
	rf := c.config.RiskFreeRate
	if benchmark == nil || benchmark.Len() == 0 {
		return 1.0, annualized - rf
	}

	stock, bench := JoinReturns(record, benchmark)
	if len(stock) <= minBetaPoints {
		return 1.0, annualized - rf
	}

	beta := Beta(stock, bench)
	stockAnn := risk.AnnualizedReturnFromReturns(stock)
	benchAnn := risk.AnnualizedReturnFromReturns(bench)
	return beta, (stockAnn - rf) - beta*(benchAnn-rf)
}

// percentFromHigh (last close / max high over N×5 rows - 1) × 100
func (c *Calculator) percentFromHigh(record *contracts.PriceRecord) float64 {
	n := record.Len()
	lookback := c.config.WeekLookback * 5
	if lookback > n {
		lookback = n
	}
	highs := record.Highs()[n-lookback:]
	maxHigh := math.Inf(-1)
	for _, h := range highs {
		if !math.IsNaN(h) && h > maxHigh {
			maxHigh = h
		}
	}
	last, ok := contracts.Series(record.Closes()).Last()
	if !ok || math.IsInf(maxHigh, -1) || maxHigh == 0 {
		return math.NaN()
	}
	return (last/maxHigh - 1) * 100
}

// =============================================================================
// Screening metrics
// =============================================================================

// Calculate computes the full screening row for one record
// 결측 없는 행 기준 MinDataPoints 미만이면 ErrInsufficientData
func (c *Calculator) Calculate(record, benchmark *contracts.PriceRecord) (*contracts.ScreeningRow, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", contracts.ErrNoData)
	}

	rows := completeRows(record)
	if rows.Len() < c.config.MinDataPoints {
		return nil, contracts.Insufficient(record.Symbol+" rows", rows.Len(), c.config.MinDataPoints)
	}

	closes := rows.Closes()
	returns := risk.SimpleReturns(closes)
	logReturns := risk.LogReturns(closes)
	n := len(closes)
	current := closes[n-1]

	// 52주 구간: 최근 LookbackDays 행
	window := rows
	if n > c.config.LookbackDays {
		idx := make([]int, c.config.LookbackDays)
		for i := range idx {
			idx[i] = n - c.config.LookbackDays + i
		}
		window = rows.SelectRows(idx)
	}
	high52 := maxOf(window.Highs())
	low52 := minOf(window.Lows())

	total := current/closes[0] - 1
	annualized := risk.AnnualizedReturnFromTotal(total, n)
	volatility := risk.AnnualizedVolatility(logReturns)
	beta, alpha := c.betaAlpha(rows, benchmark, annualized)

	// 정의되지 않으면 중립값 50
	rsi := RSI(closes, 14)[n-1]
	if math.IsNaN(rsi) {
		rsi = 50
	}

	volumes := rows.Volumes()
	volumeRatio := 1.0
	if avg := risk.Mean(volumes); avg > 0 {
		volumeRatio = volumes[n-1] / avg
	}

	return &contracts.ScreeningRow{
		Symbol:           record.Symbol,
		CurrentPrice:     current,
		AnnualizedReturn: annualized * 100,
		TotalReturn:      total * 100,
		SharpeRatio:      risk.SharpeRatio(annualized, c.config.RiskFreeRate, volatility),
		Alpha:            alpha * 100,
		Beta:             beta,
		Volatility:       volatility * 100,
		MaxDrawdown:      risk.MaxDrawdown(returns) * 100,
		PercentFromHigh:  (current - high52) / high52 * 100,
		PercentFromLow:   (current - low52) / low52 * 100,
		RSI:              rsi,
		VolumeRatio:      volumeRatio,
		High52w:          high52,
		Low52w:           low52,
		SMA20:            SMA(closes, 20)[n-1],
		SMA50:            SMA(closes, 50)[n-1],
		DataPoints:       n,
	}, nil
}

// =============================================================================
// Benchmark alignment
// =============================================================================

// JoinReturns returns simple returns of both records on their common dates
// 두 시계열 모두 전일 종가가 있는 날짜만 사용
func JoinReturns(a, b *contracts.PriceRecord) ([]float64, []float64) {
	ra := returnsByDate(a)
	rb := returnsByDate(b)

	xs := make([]float64, 0, len(ra))
	ys := make([]float64, 0, len(ra))
	for _, bar := range a.Bars {
		x, ok := ra[bar.Date]
		if !ok {
			continue
		}
		y, ok := rb[bar.Date]
		if !ok {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// Beta Cov(x, y) / Var(y); 1.0 when Var(y) is 0
func Beta(stock, bench []float64) float64 {
	v := risk.Variance(bench)
	if v == 0 || math.IsNaN(v) {
		return 1.0
	}
	return risk.Covariance(stock, bench) / v
}

func returnsByDate(r *contracts.PriceRecord) map[time.Time]float64 {
	out := make(map[time.Time]float64, r.Len())
	aligned := risk.AlignedSimpleReturns(r.Closes())
	for i, bar := range r.Bars {
		if !math.IsNaN(aligned[i]) {
			out[bar.Date] = aligned[i]
		}
	}
	return out
}

// =============================================================================
// helpers
// =============================================================================

// completeRows keeps only bars without missing values
func completeRows(r *contracts.PriceRecord) *contracts.PriceRecord {
	idx := make([]int, 0, r.Len())
	for i, b := range r.Bars {
		if !b.HasMissing() {
			idx = append(idx, i)
		}
	}
	return r.SelectRows(idx)
}

// confidenceKey 0.95 → 95, 0.995 → 995
func confidenceKey(cl float64) int {
	k := cl * 100
	for math.Abs(k-math.Round(k)) > 1e-9 {
		k *= 10
	}
	return int(math.Round(k))
}

func symbolOf(r *contracts.PriceRecord) string {
	if r == nil {
		return ""
	}
	return r.Symbol
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}
