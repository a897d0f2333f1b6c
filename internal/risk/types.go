package risk

import "time"

// =============================================================================
// Return Type & Convention
// =============================================================================

// ReturnType 수익률 계산 방식
type ReturnType string

const (
	ReturnSimple ReturnType = "simple" // P1/P0 - 1
	ReturnLog    ReturnType = "log"    // ln(P1/P0)
)

// TradingDaysPerYear 연율화 상수
// ⭐ SSOT: 수익률 ×252, 표준편차 ×√252 (달력일 365 사용 금지)
const TradingDaysPerYear = 252

// VaRConvention VaR 부호 규약
// ⭐ SSOT: VaR는 수익률 분포의 (1-c) 분위수 그대로 (손실이면 음수)
// CVaR ≤ VaR 관계가 항상 성립
const VaRConvention = "signed_return"

// =============================================================================
// VaR/CVaR Types
// =============================================================================

// VaRResult VaR 계산 결과
// - VaR=-0.03 → 95% 신뢰수준에서 일간 수익률 하위 5% 경계가 -3%
// - CVaR=-0.045 → 그 경계 이하 수익률의 평균
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// =============================================================================
// Monte Carlo Types
// =============================================================================

// MonteCarloMethod 시뮬레이션 방법
type MonteCarloMethod string

const (
	MethodHistoricalBootstrap MonteCarloMethod = "historical_bootstrap" // 과거 수익률 Bootstrap
	MethodParametricNormal    MonteCarloMethod = "parametric_normal"    // 정규분포 가정
)

// MonteCarloConfig Monte Carlo 시뮬레이션 설정
// ⭐ SSOT: 재현성을 위해 모든 설정을 명시적으로 기록
type MonteCarloConfig struct {
	NumSimulations   int              `yaml:"num_simulations" json:"num_simulations"`     // 시뮬레이션 횟수 (기본: 10000)
	HoldingPeriod    int              `yaml:"holding_period" json:"holding_period"`       // 보유 기간 (일, 기본: 5)
	ConfidenceLevels []float64        `yaml:"confidence_levels" json:"confidence_levels"` // 신뢰수준 [0.95, 0.99]
	Method           MonteCarloMethod `yaml:"method" json:"method"`
	Seed             int64            `yaml:"seed" json:"seed"`               // 재현성용 시드 (0=랜덤)
	MinSamples       int              `yaml:"min_samples" json:"min_samples"` // 최소 샘플 수 (기본: 30)
}

// DefaultMonteCarloConfig 기본 Monte Carlo 설정
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumSimulations:   10000,
		HoldingPeriod:    5,
		ConfidenceLevels: []float64{0.95, 0.99},
		Method:           MethodHistoricalBootstrap,
		Seed:             0,
		MinSamples:       30,
	}
}

// MonteCarloResult Monte Carlo 시뮬레이션 결과
type MonteCarloResult struct {
	RunID            string           `json:"run_id"`
	Config           MonteCarloConfig `json:"config"`
	InputSampleCount int              `json:"input_sample_count"`
	MeanReturn       float64          `json:"mean_return"`
	StdDev           float64          `json:"std_dev"`
	VaR              []VaRResult      `json:"var"`         // ConfidenceLevels 순서
	Percentiles      map[int]float64  `json:"percentiles"` // 1, 5, 10, 25, 50, 75, 90, 95, 99
	CreatedAt        time.Time        `json:"created_at"`
}
