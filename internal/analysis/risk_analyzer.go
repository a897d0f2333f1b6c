package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/portfolio"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

// =============================================================================
// Report Types
// =============================================================================

// SymbolRisk per-symbol risk metrics (퍼센트 값은 % 단위)
type SymbolRisk struct {
	Volatility           float64          `json:"volatility"`
	VolatilityAnnualized float64          `json:"volatility_annualized"`
	MaxDrawdown          float64          `json:"max_drawdown"`
	DownsideDeviation    float64          `json:"downside_deviation"`
	Skewness             float64          `json:"skewness"`
	Kurtosis             float64          `json:"kurtosis"`
	VaR                  []risk.VaRResult `json:"var,omitempty"`
	ParametricVaR        []risk.VaRResult `json:"parametric_var,omitempty"` // 정규분포 가정
	DataPoints           int              `json:"data_points"`
	Error                string           `json:"error,omitempty"`
}

// RiskSummary cross-symbol risk summary
type RiskSummary struct {
	SymbolCount        int     `json:"symbol_count"`
	AverageVolatility  float64 `json:"average_volatility"`
	AverageMaxDrawdown float64 `json:"average_max_drawdown"`
	AverageSkewness    float64 `json:"average_skewness"`
	AverageKurtosis    float64 `json:"average_kurtosis"`
	HighestVolatility  string  `json:"highest_volatility"`
	LowestVolatility   string  `json:"lowest_volatility"`
	HighestSkewness    string  `json:"highest_skewness"`
	HighestKurtosis    string  `json:"highest_kurtosis"`
	Error              string  `json:"error,omitempty"`
}

// RiskReport risk analysis output
// ⭐ SSOT: 리스크 분석 결과 구조
type RiskReport struct {
	AnalysisType      string                        `json:"analysis_type"`
	Timestamp         time.Time                     `json:"timestamp"`
	Symbols           []string                      `json:"symbols"`
	Metrics           map[string]*SymbolRisk        `json:"metrics"`
	CorrelationMatrix map[string]map[string]float64 `json:"correlation_matrix,omitempty"`
	Summary           *RiskSummary                  `json:"summary"`
}

// =============================================================================
// Risk Analyzer
// =============================================================================

// RiskAnalyzer computes tail-risk metrics per symbol
// ⭐ SSOT: 종목별 리스크 분석은 여기서만
type RiskAnalyzer struct {
	config Config
	logger *logger.Logger
}

// NewRiskAnalyzer creates a new risk analyzer
func NewRiskAnalyzer(config Config, log *logger.Logger) *RiskAnalyzer {
	return &RiskAnalyzer{config: config, logger: log}
}

// Name returns the processor name
func (a *RiskAnalyzer) Name() string {
	return "risk_analyzer"
}

// ValidateConfig reports whether the configuration is usable
func (a *RiskAnalyzer) ValidateConfig() bool {
	if err := a.config.Validate(); err != nil {
		a.logger.WithError(err).Error("Invalid risk analyzer configuration")
		return false
	}
	return true
}

// Process writes the report under "risk_analysis"; data passes through unchanged
func (a *RiskAnalyzer) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	report, err := a.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}
	return &contracts.StageOutput{
		Data:     data,
		Metadata: map[string]interface{}{"risk_analysis": report},
	}, nil
}

// Analyze computes risk metrics, correlations and a summary
func (a *RiskAnalyzer) Analyze(ctx context.Context, data map[string]*contracts.PriceRecord) (*RiskReport, error) {
	startTime := time.Now()
	symbols := sortedSymbols(data)

	report := &RiskReport{
		AnalysisType: "risk",
		Timestamp:    startTime,
		Symbols:      symbols,
		Metrics:      make(map[string]*SymbolRisk, len(data)),
	}

	valid := make(map[string]*contracts.PriceRecord, len(data))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m := a.analyzeSymbol(data[symbol])
		report.Metrics[symbol] = m
		if m.Error != "" {
			a.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"reason": m.Error,
			}).Warn("Risk analysis unavailable")
			continue
		}
		valid[symbol] = data[symbol]
	}

	if len(valid) > 1 {
		report.CorrelationMatrix = a.correlationMatrix(valid)
	}
	report.Summary = riskSummary(symbols, report.Metrics)

	a.logger.WithFields(map[string]interface{}{
		"symbols":  len(data),
		"valid":    len(valid),
		"duration": time.Since(startTime),
	}).Info("Risk analysis completed")

	return report, nil
}

// analyzeSymbol risk metrics over the last LookbackDays returns
func (a *RiskAnalyzer) analyzeSymbol(record *contracts.PriceRecord) *SymbolRisk {
	if record == nil || record.Len() == 0 {
		return &SymbolRisk{Error: "no price data available"}
	}

	returns := risk.SimpleReturns(sortedRecord(record).Closes())
	if len(returns) == 0 {
		return &SymbolRisk{Error: "no returns data available"}
	}

	recent := tail(returns, a.config.LookbackDays)
	if len(recent) < a.config.MinObservations {
		return &SymbolRisk{Error: contracts.Insufficient("risk returns", len(recent), a.config.MinObservations).Error()}
	}

	vol := risk.AnnualizedVolatility(recent)
	downside := risk.DownsideDeviation(recent) * math.Sqrt(risk.TradingDaysPerYear)
	if math.IsNaN(downside) {
		downside = 0
	}

	mean, std := risk.Mean(recent), risk.StdDev(recent)
	vars := make([]risk.VaRResult, 0, len(a.config.ConfidenceLevels))
	parametric := make([]risk.VaRResult, 0, len(a.config.ConfidenceLevels))
	for _, cl := range a.config.ConfidenceLevels {
		v := risk.CalculateVaR(recent, cl)
		vars = append(vars, risk.VaRResult{Confidence: cl, VaR: v.VaR * 100, CVaR: v.CVaR * 100})
		p := risk.CalculateParametricVaR(mean, std, cl)
		parametric = append(parametric, risk.VaRResult{Confidence: cl, VaR: p.VaR * 100, CVaR: p.CVaR * 100})
	}

	return &SymbolRisk{
		Volatility:           vol * 100,
		VolatilityAnnualized: vol,
		MaxDrawdown:          risk.MaxDrawdown(recent) * 100,
		DownsideDeviation:    downside * 100,
		Skewness:             zeroIfNaN(risk.Skewness(recent)),
		Kurtosis:             zeroIfNaN(risk.Kurtosis(recent)),
		VaR:                  vars,
		ParametricVaR:        parametric,
		DataPoints:           len(recent),
	}
}

// correlationMatrix pairwise correlation over common dates (최근 LookbackDays 행)
func (a *RiskAnalyzer) correlationMatrix(data map[string]*contracts.PriceRecord) map[string]map[string]float64 {
	m := portfolio.AlignReturns(data, nil)
	cols := make([][]float64, len(m.Symbols))
	for i := range m.Symbols {
		cols[i] = tail(m.Column(i), a.config.LookbackDays)
	}

	out := make(map[string]map[string]float64, len(m.Symbols))
	for i, s1 := range m.Symbols {
		out[s1] = make(map[string]float64, len(m.Symbols))
		for j, s2 := range m.Symbols {
			if i == j {
				out[s1][s2] = 1.0
				continue
			}
			out[s1][s2] = zeroIfNaN(risk.Correlation(cols[i], cols[j]))
		}
	}
	return out
}

// riskSummary averages and extremes over symbols without errors
func riskSummary(symbols []string, metrics map[string]*SymbolRisk) *RiskSummary {
	s := &RiskSummary{}
	var hiVol, loVol, hiSkew, hiKurt float64

	for _, symbol := range symbols {
		m := metrics[symbol]
		if m.Error != "" {
			continue
		}
		if s.SymbolCount == 0 || m.Volatility > hiVol {
			s.HighestVolatility, hiVol = symbol, m.Volatility
		}
		if s.SymbolCount == 0 || m.Volatility < loVol {
			s.LowestVolatility, loVol = symbol, m.Volatility
		}
		if s.SymbolCount == 0 || m.Skewness > hiSkew {
			s.HighestSkewness, hiSkew = symbol, m.Skewness
		}
		if s.SymbolCount == 0 || m.Kurtosis > hiKurt {
			s.HighestKurtosis, hiKurt = symbol, m.Kurtosis
		}
		s.SymbolCount++
		s.AverageVolatility += m.Volatility
		s.AverageMaxDrawdown += m.MaxDrawdown
		s.AverageSkewness += m.Skewness
		s.AverageKurtosis += m.Kurtosis
	}

	if s.SymbolCount == 0 {
		return &RiskSummary{Error: "no valid metrics available"}
	}

	n := float64(s.SymbolCount)
	s.AverageVolatility /= n
	s.AverageMaxDrawdown /= n
	s.AverageSkewness /= n
	s.AverageKurtosis /= n
	return s
}

// ToSummary renders the report as plain text
func (report *RiskReport) ToSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Risk Report (%s) ===\n", report.Timestamp.Format("2006-01-02"))
	for _, symbol := range report.Symbols {
		m := report.Metrics[symbol]
		if m.Error != "" {
			fmt.Fprintf(&b, "%s: %s\n", symbol, m.Error)
			continue
		}
		fmt.Fprintf(&b, "%s (%d returns)\n", symbol, m.DataPoints)
		fmt.Fprintf(&b, "  Volatility: %.2f%%\n", m.Volatility)
		fmt.Fprintf(&b, "  Max Drawdown: %.2f%%\n", m.MaxDrawdown)
		fmt.Fprintf(&b, "  Downside Deviation: %.2f%%\n", m.DownsideDeviation)
		fmt.Fprintf(&b, "  Skewness: %.4f  Kurtosis: %.4f\n", m.Skewness, m.Kurtosis)
		for _, v := range m.VaR {
			fmt.Fprintf(&b, "  VaR %.0f%%: %.2f%%  CVaR: %.2f%%\n", v.Confidence*100, v.VaR, v.CVaR)
		}
		for _, v := range m.ParametricVaR {
			fmt.Fprintf(&b, "  Parametric VaR %.0f%%: %.2f%%  CVaR: %.2f%%\n", v.Confidence*100, v.VaR, v.CVaR)
		}
	}

	if s := report.Summary; s != nil && s.Error == "" {
		b.WriteString("\nSummary\n")
		fmt.Fprintf(&b, "  Symbols: %d\n", s.SymbolCount)
		fmt.Fprintf(&b, "  Average Volatility: %.2f%%\n", s.AverageVolatility)
		fmt.Fprintf(&b, "  Highest Volatility: %s  Lowest: %s\n", s.HighestVolatility, s.LowestVolatility)
	}

	return b.String()
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
