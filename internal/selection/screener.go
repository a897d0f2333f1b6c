package selection

import (
	"context"
	"math"
	"sort"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/metrics"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

// Screener builds the opportunity screening table
// ⭐ SSOT: 스크리닝 테이블 계산 로직은 여기서만
type Screener struct {
	config ScreenerConfig
	logger *logger.Logger
}

// ScreenerConfig defines screening parameters
type ScreenerConfig struct {
	RiskFreeRate  float64      `yaml:"risk_free_rate" json:"risk_free_rate"`     // 연율 (예: 0.03)
	LookbackYears int          `yaml:"lookback_years" json:"lookback_years"`     // 계산 구간 (년)
	WeekLookback  int          `yaml:"week_52_lookback" json:"week_52_lookback"` // 고점 구간 (주)
	MinDataPoints int          `yaml:"min_data_points" json:"min_data_points"`   // 최소 행 수
	Weights       WeightConfig `yaml:"weights" json:"weights"`
}

// Skip reasons
const (
	SkipInsufficientData = "insufficient_data"
	SkipInvalidPrice     = "invalid_price"
)

// NewScreener creates a new screener
func NewScreener(config ScreenerConfig, logger *logger.Logger) *Screener {
	return &Screener{
		config: config,
		logger: logger,
	}
}

// Config returns the screener configuration
func (s *Screener) Config() ScreenerConfig {
	return s.config
}

// Validate checks screening parameters
func (c ScreenerConfig) Validate() error {
	if c.RiskFreeRate < 0 || c.RiskFreeRate > 1 {
		return &contracts.ValidationError{Field: "risk_free_rate", Message: "must be between 0 and 1"}
	}
	if c.LookbackYears <= 0 {
		return &contracts.ValidationError{Field: "lookback_years", Message: "must be positive"}
	}
	if c.WeekLookback <= 0 {
		return &contracts.ValidationError{Field: "week_52_lookback", Message: "must be positive"}
	}
	if c.MinDataPoints <= 0 {
		return &contracts.ValidationError{Field: "min_data_points", Message: "must be positive"}
	}
	if !c.Weights.ValidateWeights() {
		return &contracts.ValidationError{Field: "weights", Message: "must sum to 1.0"}
	}
	return nil
}

// Screen computes one OpportunityRow per symbol, sorted by symbol
// min_data_points 미만 심볼은 제외하고 사유별로 집계
func (s *Screener) Screen(ctx context.Context, data map[string]*contracts.PriceRecord) ([]contracts.OpportunityRow, map[string]int, error) {
	rows := make([]contracts.OpportunityRow, 0, len(data))
	skipped := make(map[string]int)

	for symbol, record := range data {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if record == nil || record.Len() < s.config.MinDataPoints {
			skipped[SkipInsufficientData]++
			s.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"rows":   lenOf(record),
				"need":   s.config.MinDataPoints,
			}).Debug("Skipping symbol with insufficient data")
			continue
		}

		row, ok := s.opportunity(record)
		if !ok {
			skipped[SkipInvalidPrice]++
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Symbol < rows[j].Symbol
	})

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(data),
		"total_passed": len(rows),
		"skipped":      skipped,
	}).Info("Screening completed")

	return rows, skipped, nil
}

// opportunity computes the three screening columns for one record
func (s *Screener) opportunity(record *contracts.PriceRecord) (contracts.OpportunityRow, bool) {
	// lookback_years 구간으로 제한
	window := record
	if limit := s.config.LookbackYears * risk.TradingDaysPerYear; record.Len() > limit {
		idx := make([]int, limit)
		for i := range idx {
			idx[i] = record.Len() - limit + i
		}
		window = record.SelectRows(idx)
	}

	closes := window.Closes()
	first, last := closes[0], closes[len(closes)-1]
	if !(first > 0) || !(last > 0) {
		return contracts.OpportunityRow{}, false
	}

	return contracts.OpportunityRow{
		Symbol:           symbolOf(record),
		AnnualizedReturn: annualizedReturnPct(first, last, len(closes)),
		SharpeRatio:      logSharpe(closes, s.config.RiskFreeRate),
		PctFrom52wHigh:   pctFromHigh(window.Highs(), last, s.config.WeekLookback*5),
	}, true
}

// annualizedReturnPct ((last/first)^(1/years) − 1) × 100, years = rows / 252
func annualizedReturnPct(first, last float64, rows int) float64 {
	years := float64(rows) / risk.TradingDaysPerYear
	return (math.Pow(last/first, 1/years) - 1) * 100
}

// logSharpe 일간 로그수익률 기준 연율 Sharpe (표준편차 0이면 0)
func logSharpe(closes []float64, riskFreeRate float64) float64 {
	returns := risk.LogReturns(closes)
	std := risk.StdDev(returns)
	if std == 0 || math.IsNaN(std) {
		return 0.0
	}
	excess := risk.Mean(returns) - riskFreeRate/risk.TradingDaysPerYear
	return excess / std * math.Sqrt(risk.TradingDaysPerYear)
}

// pctFromHigh (last / max high over trailing rows − 1) × 100
func pctFromHigh(highs []float64, last float64, rows int) float64 {
	if rows > len(highs) {
		rows = len(highs)
	}
	maxHigh := math.NaN()
	for _, h := range highs[len(highs)-rows:] {
		if math.IsNaN(h) {
			continue
		}
		if math.IsNaN(maxHigh) || h > maxHigh {
			maxHigh = h
		}
	}
	if !(maxHigh > 0) {
		return math.NaN()
	}
	return (last/maxHigh - 1) * 100
}

// BuildScreeningRows runs the full metric set for every symbol
// 실패한 심볼은 errs에 담기고 행에서 제외, 결과는 심볼 순
func BuildScreeningRows(ctx context.Context, calc *metrics.Calculator, data map[string]*contracts.PriceRecord, benchmark string) ([]contracts.ScreeningRow, map[string]error) {
	bench := data[contracts.NormalizeSymbol(benchmark)]
	rows := make([]contracts.ScreeningRow, 0, len(data))
	errs := make(map[string]error)

	for symbol, record := range data {
		if err := ctx.Err(); err != nil {
			errs[symbol] = err
			continue
		}

		b := bench
		if contracts.NormalizeSymbol(symbol) == contracts.NormalizeSymbol(benchmark) {
			b = nil
		}

		row, err := calc.Calculate(record, b)
		if err != nil {
			errs[symbol] = err
			continue
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Symbol < rows[j].Symbol
	})

	return rows, errs
}

// DefaultScreenerConfig returns default screening configuration
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		RiskFreeRate:  0.03, // 3%
		LookbackYears: 5,
		WeekLookback:  52,
		MinDataPoints: 1000, // 약 4년
		Weights:       DefaultWeightConfig(),
	}
}

func symbolOf(record *contracts.PriceRecord) string {
	return contracts.NormalizeSymbol(record.Symbol)
}

func lenOf(record *contracts.PriceRecord) int {
	if record == nil {
		return 0
	}
	return record.Len()
}
