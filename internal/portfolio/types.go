package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/finfetch/internal/risk"
)

// Optimization methods
const (
	MethodEqualWeight     = "equal_weight"
	MethodMinimumVariance = "minimum_variance"
)

// Rebalance frequencies
const (
	RebalanceDaily     = "daily"
	RebalanceWeekly    = "weekly"
	RebalanceMonthly   = "monthly"
	RebalanceQuarterly = "quarterly"
)

// Config defines portfolio analysis parameters
type Config struct {
	RiskFreeRate       float64               `yaml:"risk_free_rate" json:"risk_free_rate"`
	RebalanceFrequency string                `yaml:"rebalance_frequency" json:"rebalance_frequency"`
	OptimizationMethod string                `yaml:"optimization_method" json:"optimization_method"`
	Benchmark          string                `yaml:"benchmark" json:"benchmark"`
	Constraints        Constraints           `yaml:"constraints" json:"constraints"`
	MonteCarlo         risk.MonteCarloConfig `yaml:"monte_carlo" json:"monte_carlo"`
	EnableMonteCarlo   bool                  `yaml:"enable_monte_carlo" json:"enable_monte_carlo"`
}

// DefaultConfig returns default portfolio configuration
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:       0.03,
		RebalanceFrequency: RebalanceMonthly,
		OptimizationMethod: MethodEqualWeight,
		Benchmark:          "SPY",
		Constraints:        DefaultConstraints(),
		MonteCarlo:         risk.DefaultMonteCarloConfig(),
		EnableMonteCarlo:   true,
	}
}

// Metrics equal-weight portfolio metrics (퍼센트 값은 % 단위)
type Metrics struct {
	TotalReturn      float64            `json:"total_return"`
	AnnualizedReturn float64            `json:"annualized_return"`
	Volatility       float64            `json:"volatility"`
	SharpeRatio      float64            `json:"sharpe_ratio"`
	MaxDrawdown      float64            `json:"max_drawdown"`
	AvgCorrelation   float64            `json:"avg_correlation"`
	DataPoints       int                `json:"data_points"`
	Weights          map[string]float64 `json:"weights"`
}

// Allocation is one optimization method's result
// 실패 시 Error만 채워지고 Weights는 nil
type Allocation struct {
	Method         string             `json:"method"`
	Weights        map[string]float64 `json:"weights,omitempty"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	Error          string             `json:"error,omitempty"`
}

// OK reports whether the allocation succeeded
func (a *Allocation) OK() bool {
	return a != nil && a.Error == ""
}

// Contribution is one asset's return and risk attribution
type Contribution struct {
	Weight               float64 `json:"weight"`
	IndividualReturn     float64 `json:"individual_return"`
	Contribution         float64 `json:"contribution"`
	MarginalContribution float64 `json:"marginal_contribution"`
	RiskContribution     float64 `json:"risk_contribution"`
}

// Attribution return and risk attribution of the equal-weight portfolio
type Attribution struct {
	Assets            map[string]Contribution `json:"assets"`
	PortfolioReturn   float64                 `json:"portfolio_return"`
	PortfolioVariance float64                 `json:"portfolio_variance"`
}

// Summary condenses the analysis
type Summary struct {
	NumAssets           int     `json:"num_assets"`
	Observations        int     `json:"observations"`
	BestAsset           string  `json:"best_asset"`
	BestAssetReturn     float64 `json:"best_asset_return"`
	WorstAsset          string  `json:"worst_asset"`
	WorstAssetReturn    float64 `json:"worst_asset_return"`
	PortfolioReturn     float64 `json:"portfolio_return"`
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	PortfolioSharpe     float64 `json:"portfolio_sharpe"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	PreferredMethod     string  `json:"preferred_method"`
	MinVarReturn        float64 `json:"min_var_return,omitempty"`
	MinVarVolatility    float64 `json:"min_var_volatility,omitempty"`
	MinVarSharpe        float64 `json:"min_var_sharpe,omitempty"`
}

// Analysis is the full portfolio analysis output
// ⭐ SSOT: 포트폴리오 분석 결과 구조
type Analysis struct {
	AnalysisType string                 `json:"analysis_type"`
	Timestamp    time.Time              `json:"timestamp"`
	Symbols      []string               `json:"symbols"`
	Metrics      *Metrics               `json:"portfolio_metrics,omitempty"`
	Optimization map[string]*Allocation `json:"optimization,omitempty"`
	Attribution  *Attribution           `json:"attribution,omitempty"`
	MonteCarlo   *risk.MonteCarloResult `json:"monte_carlo,omitempty"`
	Summary      *Summary               `json:"summary,omitempty"`
	Error        string                 `json:"error,omitempty"`

	err error
}

// Err returns the failure cause (wraps ErrInsufficientData when data is short)
func (a *Analysis) Err() error {
	return a.err
}

// OK reports whether the analysis produced results
func (a *Analysis) OK() bool {
	return a.err == nil
}

// ToSummary renders the analysis as plain text
func (a *Analysis) ToSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Portfolio Analysis (%s) ===\n", a.Timestamp.Format("2006-01-02"))
	if a.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", a.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(a.Symbols, ", "))

	if m := a.Metrics; m != nil {
		b.WriteString("\nPortfolio\n")
		fmt.Fprintf(&b, "  Total Return: %.2f%%  Annualized: %.2f%%\n", m.TotalReturn, m.AnnualizedReturn)
		fmt.Fprintf(&b, "  Volatility: %.2f%%  Sharpe: %.2f\n", m.Volatility, m.SharpeRatio)
		fmt.Fprintf(&b, "  Max Drawdown: %.2f%%  Avg Correlation: %.2f\n", m.MaxDrawdown, m.AvgCorrelation)
	}

	methods := make([]string, 0, len(a.Optimization))
	for method := range a.Optimization {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	for _, method := range methods {
		alloc := a.Optimization[method]
		if alloc == nil {
			continue
		}
		if !alloc.OK() {
			fmt.Fprintf(&b, "\n%s: %s\n", method, alloc.Error)
			continue
		}
		fmt.Fprintf(&b, "\n%s (return %.2f%%, volatility %.2f%%, sharpe %.2f)\n",
			method, alloc.ExpectedReturn, alloc.Volatility, alloc.SharpeRatio)
		for _, symbol := range a.Symbols {
			fmt.Fprintf(&b, "  %-8s %6.2f%%\n", symbol, alloc.Weights[symbol]*100)
		}
	}

	if s := a.Summary; s != nil {
		b.WriteString("\nSummary\n")
		fmt.Fprintf(&b, "  Best: %s (%.2f%%)  Worst: %s (%.2f%%)\n", s.BestAsset, s.BestAssetReturn, s.WorstAsset, s.WorstAssetReturn)
		fmt.Fprintf(&b, "  Observations: %d\n", s.Observations)
	}

	return b.String()
}
