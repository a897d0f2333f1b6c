package risk

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MonteCarloSimulator Monte Carlo 시뮬레이터
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator 새 시뮬레이터 생성
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Simulate 포트폴리오 일간 수익률 시계열로 보유기간 수익률 분포를 생성
// Fail-closed: MinSamples 미만이면 ErrInsufficientData
func (mc *MonteCarloSimulator) Simulate(ctx context.Context, portfolioReturns []float64) (*MonteCarloResult, error) {
	if err := ValidateConfig(mc.config); err != nil {
		return nil, err
	}

	samples := dropNaN(portfolioReturns)
	if len(samples) < mc.config.MinSamples {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientData, len(samples), mc.config.MinSamples)
	}

	results := make([]float64, mc.config.NumSimulations)
	switch mc.config.Method {
	case MethodParametricNormal:
		mc.parametricSimulation(samples, results)
	default:
		mc.historicalSimulation(samples, results)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := mc.calculateResult(results)
	result.InputSampleCount = len(samples)
	return result, nil
}

// historicalSimulation 과거 수익률을 랜덤하게 재샘플링
func (mc *MonteCarloSimulator) historicalSimulation(samples, results []float64) {
	for i := range results {
		cumReturn := 1.0
		for d := 0; d < mc.config.HoldingPeriod; d++ {
			cumReturn *= 1 + samples[mc.rng.Intn(len(samples))]
		}
		results[i] = cumReturn - 1
	}
}

// parametricSimulation 정규분포 가정 (평균·분산을 보유기간으로 스케일)
func (mc *MonteCarloSimulator) parametricSimulation(samples, results []float64) {
	mean := Mean(samples)
	std := StdDev(samples)
	for i := range results {
		cumReturn := 1.0
		for d := 0; d < mc.config.HoldingPeriod; d++ {
			cumReturn *= 1 + mean + std*mc.rng.NormFloat64()
		}
		results[i] = cumReturn - 1
	}
}

// calculateResult 시뮬레이션 결과 통계 계산
func (mc *MonteCarloSimulator) calculateResult(simulated []float64) *MonteCarloResult {
	sorted := make([]float64, len(simulated))
	copy(sorted, simulated)
	sort.Float64s(sorted)

	vars := make([]VaRResult, 0, len(mc.config.ConfidenceLevels))
	for _, c := range mc.config.ConfidenceLevels {
		vars = append(vars, CalculateVaR(sorted, c))
	}

	percentiles := make(map[int]float64)
	for _, p := range []int{1, 5, 10, 25, 50, 75, 90, 95, 99} {
		percentiles[p] = Percentile(sorted, float64(p))
	}

	return &MonteCarloResult{
		RunID:       uuid.New().String(),
		Config:      mc.config,
		MeanReturn:  Mean(simulated),
		StdDev:      StdDev(simulated),
		VaR:         vars,
		Percentiles: percentiles,
		CreatedAt:   time.Now(),
	}
}

// ValidateConfig 설정 유효성 검사
func ValidateConfig(config MonteCarloConfig) error {
	if config.NumSimulations <= 0 {
		return fmt.Errorf("%w: NumSimulations must be > 0", ErrInvalidConfig)
	}
	if config.HoldingPeriod <= 0 {
		return fmt.Errorf("%w: HoldingPeriod must be > 0", ErrInvalidConfig)
	}
	if config.MinSamples <= 0 {
		return fmt.Errorf("%w: MinSamples must be > 0", ErrInvalidConfig)
	}
	if len(config.ConfidenceLevels) == 0 {
		return fmt.Errorf("%w: ConfidenceLevels cannot be empty", ErrInvalidConfig)
	}
	for _, cl := range config.ConfidenceLevels {
		if cl <= 0 || cl >= 1 {
			return fmt.Errorf("%w: ConfidenceLevel must be between 0 and 1", ErrInvalidConfig)
		}
	}
	return nil
}
