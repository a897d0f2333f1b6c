package portfolio

import (
	"errors"
	"math"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// Constructor computes optimized portfolio allocations
// ⭐ SSOT: 포트폴리오 비중 최적화 로직은 여기서만
type Constructor struct {
	riskFreeRate float64
	logger       *logger.Logger
}

// NewConstructor creates a new portfolio constructor
func NewConstructor(riskFreeRate float64, logger *logger.Logger) *Constructor {
	return &Constructor{
		riskFreeRate: riskFreeRate,
		logger:       logger,
	}
}

// Optimize runs every optimization method over the aligned returns
// 연율 공분산(cov×252)과 연율 평균수익률 기준
func (c *Constructor) Optimize(m *ReturnMatrix) map[string]*Allocation {
	cov := m.Covariance()
	means := m.MeanReturns()

	results := make(map[string]*Allocation, 2)
	for _, method := range []string{MethodEqualWeight, MethodMinimumVariance} {
		results[method] = c.allocate(method, m.Symbols, cov, means)
	}
	return results
}

// allocate computes one method's allocation; failures become an Error entry
func (c *Constructor) allocate(method string, symbols []string, cov [][]float64, means []float64) *Allocation {
	weights, err := c.calculateWeights(method, cov)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, contracts.ErrSingularMatrix) {
			msg = "singular covariance matrix"
		}
		c.logger.WithFields(map[string]interface{}{
			"method": method,
			"error":  err.Error(),
		}).Warn("Portfolio optimization failed")
		return &Allocation{Method: method, Error: msg}
	}

	expected := dot(weights, means)
	vol := math.Sqrt(quadForm(cov, weights))
	sharpe := 0.0
	if vol > 0 {
		sharpe = (expected - c.riskFreeRate) / vol
	}

	named := make(map[string]float64, len(symbols))
	for i, s := range symbols {
		named[s] = weights[i]
	}

	return &Allocation{
		Method:         method,
		Weights:        named,
		ExpectedReturn: expected * 100,
		Volatility:     vol * 100,
		SharpeRatio:    sharpe,
	}
}

// calculateWeights calculates weights based on optimization method
func (c *Constructor) calculateWeights(method string, cov [][]float64) ([]float64, error) {
	switch method {
	case MethodEqualWeight:
		return equalWeight(len(cov)), nil
	case MethodMinimumVariance:
		return minimumVariance(cov)
	default:
		return nil, &contracts.ValidationError{Field: "optimization_method", Message: "unknown method " + method}
	}
}

// equalWeight 1/N each
func equalWeight(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return weights
}

// minimumVariance w = Σ⁻¹1 / 1ᵀΣ⁻¹1
// Σx = 1 을 풀고 합으로 정규화 (역행렬을 직접 만들지 않음)
func minimumVariance(cov [][]float64) ([]float64, error) {
	ones := make([]float64, len(cov))
	for i := range ones {
		ones[i] = 1
	}

	x, err := solve(cov, ones)
	if err != nil {
		return nil, err
	}
	return normalizeWeights(x)
}

// normalizeWeights scales weights to sum to 1.0
func normalizeWeights(weights []float64) ([]float64, error) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, contracts.ErrSingularMatrix
	}

	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / total
	}
	return normalized, nil
}
