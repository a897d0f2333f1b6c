package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

// =============================================================================
// Report Types
// =============================================================================

// WindowPerformance performance over the trailing N returns
type WindowPerformance struct {
	Period           int     `json:"period"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	Sharpe           float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// SymbolPerformance per-symbol performance (퍼센트 값은 % 단위)
type SymbolPerformance struct {
	StartDate        time.Time            `json:"start_date"`
	EndDate          time.Time            `json:"end_date"`
	TotalReturn      float64              `json:"total_return"`
	AnnualizedReturn float64              `json:"annualized_return"`
	Volatility       float64              `json:"volatility"`
	Sharpe           float64              `json:"sharpe_ratio"`
	Sortino          float64              `json:"sortino_ratio"`
	MaxDrawdown      float64              `json:"max_drawdown"`
	Windows          []*WindowPerformance `json:"lookback_analysis,omitempty"`
	DataPoints       int                  `json:"data_points"`
	Error            string               `json:"error,omitempty"`
}

// Window returns the window for period if available
func (p *SymbolPerformance) Window(period int) (*WindowPerformance, bool) {
	for _, w := range p.Windows {
		if w.Period == period {
			return w, true
		}
	}
	return nil, false
}

// PerformanceSummary cross-symbol performance summary
type PerformanceSummary struct {
	SymbolCount       int     `json:"symbol_count"`
	AverageReturn     float64 `json:"average_return"`
	AverageVolatility float64 `json:"average_volatility"`
	AverageSharpe     float64 `json:"average_sharpe"`
	ComparisonWindow  int     `json:"comparison_window"` // 0이면 전체 구간
	BestPerformer     string  `json:"best_performer"`
	WorstPerformer    string  `json:"worst_performer"`
	HighestSharpe     string  `json:"highest_sharpe"`
	LowestVolatility  string  `json:"lowest_volatility"`
	Error             string  `json:"error,omitempty"`
}

// PerformanceReport represents performance analysis report
// ⭐ SSOT: 성과 분석 결과 구조
type PerformanceReport struct {
	AnalysisType string                        `json:"analysis_type"`
	Timestamp    time.Time                     `json:"timestamp"`
	Symbols      []string                      `json:"symbols"`
	Metrics      map[string]*SymbolPerformance `json:"metrics"`
	Summary      *PerformanceSummary           `json:"summary"`
}

// =============================================================================
// Performance Analyzer
// =============================================================================

// PerformanceAnalyzer computes multi-window performance per symbol
// ⭐ SSOT: 종목별 성과 분석 로직은 여기서만
type PerformanceAnalyzer struct {
	config Config
	logger *logger.Logger
}

// NewPerformanceAnalyzer creates a new performance analyzer
func NewPerformanceAnalyzer(config Config, log *logger.Logger) *PerformanceAnalyzer {
	periods := append([]int(nil), config.LookbackPeriods...)
	sort.Ints(periods)
	config.LookbackPeriods = periods
	return &PerformanceAnalyzer{config: config, logger: log}
}

// Name returns the processor name
func (a *PerformanceAnalyzer) Name() string {
	return "performance_analyzer"
}

// ValidateConfig reports whether the configuration is usable
func (a *PerformanceAnalyzer) ValidateConfig() bool {
	if err := a.config.Validate(); err != nil {
		a.logger.WithError(err).Error("Invalid performance analyzer configuration")
		return false
	}
	return true
}

// Process writes the report under "performance_analysis"; data passes through unchanged
func (a *PerformanceAnalyzer) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	report, err := a.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}
	return &contracts.StageOutput{
		Data:     data,
		Metadata: map[string]interface{}{"performance_analysis": report},
	}, nil
}

// Analyze performs performance analysis for every symbol
func (a *PerformanceAnalyzer) Analyze(ctx context.Context, data map[string]*contracts.PriceRecord) (*PerformanceReport, error) {
	startTime := time.Now()
	symbols := sortedSymbols(data)

	report := &PerformanceReport{
		AnalysisType: "performance",
		Timestamp:    startTime,
		Symbols:      symbols,
		Metrics:      make(map[string]*SymbolPerformance, len(data)),
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := a.analyzeSymbol(data[symbol])
		if p.Error != "" {
			a.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"reason": p.Error,
			}).Warn("Performance analysis unavailable")
		}
		report.Metrics[symbol] = p
	}

	report.Summary = a.summary(symbols, report.Metrics)

	a.logger.WithFields(map[string]interface{}{
		"symbols":        len(data),
		"best_performer": report.Summary.BestPerformer,
		"duration":       time.Since(startTime),
	}).Info("Performance analysis completed")

	return report, nil
}

// analyzeSymbol full-sample metrics plus every lookback window with enough data
func (a *PerformanceAnalyzer) analyzeSymbol(record *contracts.PriceRecord) *SymbolPerformance {
	if record == nil || record.Len() == 0 {
		return &SymbolPerformance{Error: "no price data available"}
	}

	sorted := sortedRecord(record)
	returns := risk.SimpleReturns(sorted.Closes())
	if len(returns) == 0 {
		return &SymbolPerformance{Error: "no returns data available"}
	}

	full := a.window(returns)
	p := &SymbolPerformance{
		StartDate:        sorted.Bars[0].Date,
		EndDate:          sorted.Bars[sorted.Len()-1].Date,
		TotalReturn:      full.TotalReturn,
		AnnualizedReturn: full.AnnualizedReturn,
		Volatility:       full.Volatility,
		Sharpe:           full.Sharpe,
		Sortino:          a.calculateSortino(returns),
		MaxDrawdown:      full.MaxDrawdown,
		DataPoints:       sorted.Len(),
	}

	for _, period := range a.config.LookbackPeriods {
		if len(returns) < period {
			break
		}
		w := a.window(returns[len(returns)-period:])
		w.Period = period
		p.Windows = append(p.Windows, w)
	}

	return p
}

// window metrics over a return slice
func (a *PerformanceAnalyzer) window(returns []float64) *WindowPerformance {
	total := calculateTotalReturn(returns)
	annualized := risk.AnnualizedReturnFromTotal(total, len(returns))
	vol := risk.AnnualizedVolatility(returns)
	if math.IsNaN(vol) {
		vol = 0
	}

	return &WindowPerformance{
		Period:           len(returns),
		TotalReturn:      total * 100,
		AnnualizedReturn: annualized * 100,
		Volatility:       vol * 100,
		Sharpe:           risk.SharpeRatio(annualized, a.config.RiskFreeRate, vol),
		MaxDrawdown:      risk.MaxDrawdown(returns) * 100,
	}
}

// calculateTotalReturn calculates cumulative return
func calculateTotalReturn(returns []float64) float64 {
	cumReturn := 1.0
	for _, r := range returns {
		cumReturn *= (1.0 + r)
	}
	return cumReturn - 1.0
}

// calculateSortino calculates Sortino ratio
// 하방 변동성 = 음수 수익률 제곱평균의 제곱근 × √252
func (a *PerformanceAnalyzer) calculateSortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sumSquaredNegative float64
	var countNegative int
	for _, r := range returns {
		if r < 0 {
			sumSquaredNegative += r * r
			countNegative++
		}
	}

	if countNegative == 0 {
		return 0
	}

	downsideVol := math.Sqrt(sumSquaredNegative/float64(countNegative)) * math.Sqrt(risk.TradingDaysPerYear)
	if downsideVol == 0 {
		return 0
	}

	annualReturn := risk.AnnualizedReturnFromTotal(calculateTotalReturn(returns), len(returns))
	return (annualReturn - a.config.RiskFreeRate) / downsideVol
}

// summary averages plus best/worst by total return over the longest window every valid symbol has
func (a *PerformanceAnalyzer) summary(symbols []string, metrics map[string]*SymbolPerformance) *PerformanceSummary {
	valid := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if metrics[s].Error == "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return &PerformanceSummary{Error: "no valid metrics available"}
	}

	s := &PerformanceSummary{SymbolCount: len(valid)}
	s.ComparisonWindow = a.commonWindow(valid, metrics)

	comparable := func(symbol string) float64 {
		if s.ComparisonWindow == 0 {
			return metrics[symbol].TotalReturn
		}
		w, _ := metrics[symbol].Window(s.ComparisonWindow)
		return w.TotalReturn
	}

	var best, worst, hiSharpe, loVol float64
	for i, symbol := range valid {
		m := metrics[symbol]
		s.AverageReturn += m.AnnualizedReturn
		s.AverageVolatility += m.Volatility
		s.AverageSharpe += m.Sharpe

		ret := comparable(symbol)
		if i == 0 || ret > best {
			s.BestPerformer, best = symbol, ret
		}
		if i == 0 || ret < worst {
			s.WorstPerformer, worst = symbol, ret
		}
		if i == 0 || m.Sharpe > hiSharpe {
			s.HighestSharpe, hiSharpe = symbol, m.Sharpe
		}
		if i == 0 || m.Volatility < loVol {
			s.LowestVolatility, loVol = symbol, m.Volatility
		}
	}

	n := float64(len(valid))
	s.AverageReturn /= n
	s.AverageVolatility /= n
	s.AverageSharpe /= n
	return s
}

// commonWindow longest configured period available to all symbols (0 if none)
func (a *PerformanceAnalyzer) commonWindow(symbols []string, metrics map[string]*SymbolPerformance) int {
	for i := len(a.config.LookbackPeriods) - 1; i >= 0; i-- {
		period := a.config.LookbackPeriods[i]
		all := true
		for _, s := range symbols {
			if _, ok := metrics[s].Window(period); !ok {
				all = false
				break
			}
		}
		if all {
			return period
		}
	}
	return 0
}

// ToSummary renders the report as plain text
func (report *PerformanceReport) ToSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Performance Report (%s) ===\n", report.Timestamp.Format("2006-01-02"))
	for _, symbol := range report.Symbols {
		m := report.Metrics[symbol]
		if m.Error != "" {
			fmt.Fprintf(&b, "%s: %s\n", symbol, m.Error)
			continue
		}
		fmt.Fprintf(&b, "%s (%s ~ %s)\n", symbol, m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"))
		fmt.Fprintf(&b, "  Total Return: %.2f%%  Annualized: %.2f%%\n", m.TotalReturn, m.AnnualizedReturn)
		fmt.Fprintf(&b, "  Volatility: %.2f%%  Sharpe: %.2f  Sortino: %.2f\n", m.Volatility, m.Sharpe, m.Sortino)
		fmt.Fprintf(&b, "  Max Drawdown: %.2f%%\n", m.MaxDrawdown)
		for _, w := range m.Windows {
			fmt.Fprintf(&b, "  %dd: return %.2f%%, volatility %.2f%%, sharpe %.2f\n", w.Period, w.TotalReturn, w.Volatility, w.Sharpe)
		}
	}

	if s := report.Summary; s != nil && s.Error == "" {
		b.WriteString("\nSummary\n")
		fmt.Fprintf(&b, "  Symbols: %d\n", s.SymbolCount)
		fmt.Fprintf(&b, "  Best: %s  Worst: %s\n", s.BestPerformer, s.WorstPerformer)
		fmt.Fprintf(&b, "  Highest Sharpe: %s  Lowest Volatility: %s\n", s.HighestSharpe, s.LowestVolatility)
	}

	return b.String()
}
