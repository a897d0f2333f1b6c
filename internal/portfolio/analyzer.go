package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/risk"
	"github.com/wonny/finfetch/pkg/logger"
)

// Analyzer analyzes a set of symbols as one portfolio
// ⭐ SSOT: 포트폴리오 분석(지표·최적화·기여도)은 여기서만
type Analyzer struct {
	config      Config
	constructor *Constructor
	logger      *logger.Logger
}

// NewAnalyzer creates a new portfolio analyzer
func NewAnalyzer(config Config, log *logger.Logger) *Analyzer {
	return &Analyzer{
		config:      config,
		constructor: NewConstructor(config.RiskFreeRate, log),
		logger:      log,
	}
}

// Name returns the processor name
func (a *Analyzer) Name() string {
	return "portfolio_analyzer"
}

// Validate checks risk-free rate, rebalance frequency and method
func (c Config) Validate() error {
	if c.RiskFreeRate < 0 || c.RiskFreeRate > 1 {
		return &contracts.ValidationError{Field: "risk_free_rate", Message: "must be between 0 and 1"}
	}
	switch c.RebalanceFrequency {
	case RebalanceDaily, RebalanceWeekly, RebalanceMonthly, RebalanceQuarterly:
	default:
		return &contracts.ValidationError{Field: "rebalance_frequency", Message: fmt.Sprintf("unknown frequency %q", c.RebalanceFrequency)}
	}
	switch c.OptimizationMethod {
	case MethodEqualWeight, MethodMinimumVariance:
	default:
		return &contracts.ValidationError{Field: "optimization_method", Message: fmt.Sprintf("unknown method %q", c.OptimizationMethod)}
	}
	if c.EnableMonteCarlo {
		if err := risk.ValidateConfig(c.MonteCarlo); err != nil {
			return &contracts.ValidationError{Field: "monte_carlo", Message: err.Error()}
		}
	}
	return nil
}

// ValidateConfig reports whether the configuration is usable
func (a *Analyzer) ValidateConfig() bool {
	if err := a.config.Validate(); err != nil {
		a.logger.WithError(err).Error("Invalid portfolio configuration")
		return false
	}
	return true
}

// Process writes the analysis under "portfolio"; data passes through unchanged
func (a *Analyzer) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	analysis, err := a.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}
	return &contracts.StageOutput{
		Data:     data,
		Metadata: map[string]interface{}{"portfolio": analysis},
	}, nil
}

// Analyze computes metrics, optimization, attribution and summary
// 데이터 부족은 Analysis.Error로 태깅, 반환 error는 context 취소뿐
func (a *Analyzer) Analyze(ctx context.Context, data map[string]*contracts.PriceRecord) (*Analysis, error) {
	startTime := time.Now()
	a.logger.WithField("symbols", len(data)).Info("Starting portfolio analysis")

	m := AlignReturns(data, a.config.Constraints.IsBlackListed)
	analysis := &Analysis{
		AnalysisType: "portfolio",
		Timestamp:    startTime,
		Symbols:      m.Symbols,
	}

	if err := a.checkSufficient(m); err != nil {
		analysis.err = err
		analysis.Error = err.Error()
		a.logger.WithError(err).Warn("Portfolio analysis skipped")
		return analysis, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis.Metrics = a.portfolioMetrics(m)
	analysis.Optimization = a.constructor.Optimize(m)
	analysis.Attribution = a.attribution(m)

	if a.config.EnableMonteCarlo {
		weights := equalWeight(len(m.Symbols))
		sim := risk.NewMonteCarloSimulator(a.config.MonteCarlo)
		result, err := sim.Simulate(ctx, m.WeightedReturns(weights))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.WithError(err).Warn("Monte Carlo simulation skipped")
		} else {
			analysis.MonteCarlo = result
		}
	}

	analysis.Summary = a.summary(m, analysis)

	a.logger.WithFields(map[string]interface{}{
		"symbols":      len(m.Symbols),
		"observations": m.Rows(),
		"duration":     time.Since(startTime),
	}).Info("Portfolio analysis completed")

	return analysis, nil
}

func (a *Analyzer) checkSufficient(m *ReturnMatrix) error {
	minAssets := a.config.Constraints.MinAssets
	if minAssets < 2 {
		minAssets = 2
	}
	if len(m.Symbols) < minAssets {
		return contracts.Insufficient("portfolio symbols", len(m.Symbols), minAssets)
	}

	minObs := a.config.Constraints.MinObservations
	if minObs <= 0 {
		minObs = 30
	}
	if m.Rows() < minObs {
		return contracts.Insufficient("aligned observations", m.Rows(), minObs)
	}
	return nil
}

// portfolioMetrics equal-weight portfolio metrics
func (a *Analyzer) portfolioMetrics(m *ReturnMatrix) *Metrics {
	weights := equalWeight(len(m.Symbols))
	returns := m.WeightedReturns(weights)

	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	total := growth - 1
	annualized := risk.AnnualizedReturnFromTotal(total, len(returns))
	vol := risk.AnnualizedVolatility(returns)

	named := make(map[string]float64, len(weights))
	for i, s := range m.Symbols {
		named[s] = weights[i]
	}

	return &Metrics{
		TotalReturn:      total * 100,
		AnnualizedReturn: annualized * 100,
		Volatility:       vol * 100,
		SharpeRatio:      risk.SharpeRatio(annualized, a.config.RiskFreeRate, vol),
		MaxDrawdown:      risk.MaxDrawdown(returns) * 100,
		AvgCorrelation:   m.AvgCorrelation(),
		DataPoints:       len(returns),
		Weights:          named,
	}
}

// attribution return contribution (mean×252×w) and risk contribution
func (a *Analyzer) attribution(m *ReturnMatrix) *Attribution {
	weights := equalWeight(len(m.Symbols))
	cov := m.Covariance()
	means := m.MeanReturns()
	variance := quadForm(cov, weights)
	sigmaW := matVec(cov, weights)

	assets := make(map[string]Contribution, len(m.Symbols))
	for i, s := range m.Symbols {
		marginal := 2 * sigmaW[i]
		riskContribution := 0.0
		if variance > 0 {
			riskContribution = weights[i] * marginal / variance
		}
		assets[s] = Contribution{
			Weight:               weights[i],
			IndividualReturn:     means[i] * 100,
			Contribution:         means[i] * weights[i] * 100,
			MarginalContribution: marginal,
			RiskContribution:     riskContribution,
		}
	}

	return &Attribution{
		Assets:            assets,
		PortfolioReturn:   risk.Mean(m.WeightedReturns(weights)) * risk.TradingDaysPerYear * 100,
		PortfolioVariance: variance,
	}
}

// summary best/worst asset by annualized return plus headline numbers
func (a *Analyzer) summary(m *ReturnMatrix, analysis *Analysis) *Summary {
	s := &Summary{
		NumAssets:        len(m.Symbols),
		Observations:     m.Rows(),
		BestAssetReturn:  math.Inf(-1),
		WorstAssetReturn: math.Inf(1),
		PreferredMethod:  a.config.OptimizationMethod,
	}

	for i, ann := range m.MeanReturns() {
		pct := ann * 100
		if pct > s.BestAssetReturn {
			s.BestAsset, s.BestAssetReturn = m.Symbols[i], pct
		}
		if pct < s.WorstAssetReturn {
			s.WorstAsset, s.WorstAssetReturn = m.Symbols[i], pct
		}
	}

	if pm := analysis.Metrics; pm != nil {
		s.PortfolioReturn = pm.AnnualizedReturn
		s.PortfolioVolatility = pm.Volatility
		s.PortfolioSharpe = pm.SharpeRatio
		s.MaxDrawdown = pm.MaxDrawdown
	}

	if mv := analysis.Optimization[MethodMinimumVariance]; mv.OK() {
		s.MinVarReturn = mv.ExpectedReturn
		s.MinVarVolatility = mv.Volatility
		s.MinVarSharpe = mv.SharpeRatio
	}

	return s
}
