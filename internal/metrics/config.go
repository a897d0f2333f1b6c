package metrics

import (
	"fmt"

	"github.com/wonny/finfetch/internal/contracts"
)

// Config holds calculator parameters
// SSOT: options.yaml metrics / technical_indicators 섹션
type Config struct {
	RiskFreeRate     float64   `yaml:"risk_free_rate" json:"risk_free_rate"`       // 연율 (0~1)
	ConfidenceLevels []float64 `yaml:"confidence_levels" json:"confidence_levels"` // VaR/CVaR 신뢰수준
	LookbackDays     int       `yaml:"lookback_days" json:"lookback_days"`         // 52주 고가/저가 구간 (행 수)
	WeekLookback     int       `yaml:"week_52_lookback" json:"week_52_lookback"`   // N주 고가 (N×5 행)
	Benchmark        string    `yaml:"benchmark" json:"benchmark"`
	MinDataPoints    int       `yaml:"min_data_points" json:"min_data_points"` // Calculate 최소 행 수

	Indicators IndicatorConfig `yaml:"indicators" json:"indicators"`
}

// IndicatorConfig defines indicator periods
type IndicatorConfig struct {
	Enabled          []string `yaml:"indicators" json:"indicators"`
	SMAPeriods       []int    `yaml:"sma" json:"sma"`
	EMAPeriods       []int    `yaml:"ema" json:"ema"`
	RSIPeriod        int      `yaml:"rsi" json:"rsi"`
	MACDFast         int      `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow         int      `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal       int      `yaml:"macd_signal" json:"macd_signal"`
	BollingerPeriod  int      `yaml:"bollinger_period" json:"bollinger_period"`
	BollingerStdDev  float64  `yaml:"bollinger_std" json:"bollinger_std"`
	StochasticPeriod int      `yaml:"stochastic" json:"stochastic"`
	StochasticSmooth int      `yaml:"stochastic_smooth" json:"stochastic_smooth"`
	WilliamsRPeriod  int      `yaml:"williams_r" json:"williams_r"`
}

// Indicator names
const (
	IndicatorSMA        = "sma"
	IndicatorEMA        = "ema"
	IndicatorRSI        = "rsi"
	IndicatorMACD       = "macd"
	IndicatorBollinger  = "bollinger_bands"
	IndicatorStochastic = "stochastic"
	IndicatorWilliamsR  = "williams_r"
)

// AllIndicators lists every supported indicator
func AllIndicators() []string {
	return []string{
		IndicatorSMA, IndicatorEMA, IndicatorRSI, IndicatorMACD,
		IndicatorBollinger, IndicatorStochastic, IndicatorWilliamsR,
	}
}

// DefaultConfig returns the default calculator config
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:     0.0366,
		ConfidenceLevels: []float64{0.95, 0.99},
		LookbackDays:     252,
		WeekLookback:     52,
		Benchmark:        "SPY",
		MinDataPoints:    30,
		Indicators:       DefaultIndicatorConfig(),
	}
}

// DefaultIndicatorConfig returns the default indicator periods
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		Enabled:          []string{IndicatorSMA, IndicatorEMA, IndicatorRSI, IndicatorMACD, IndicatorBollinger},
		SMAPeriods:       []int{20, 50, 200},
		EMAPeriods:       []int{12, 26},
		RSIPeriod:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		BollingerPeriod:  20,
		BollingerStdDev:  2,
		StochasticPeriod: 14,
		StochasticSmooth: 3,
		WilliamsRPeriod:  14,
	}
}

// Validate checks the config; invalid values are reported, never clamped
func (c Config) Validate() error {
	if !(c.RiskFreeRate >= 0 && c.RiskFreeRate <= 1) {
		return contracts.ValidationError{Field: "risk_free_rate", Message: fmt.Sprintf("must be in [0,1], got %v", c.RiskFreeRate)}
	}
	if len(c.ConfidenceLevels) == 0 {
		return contracts.ValidationError{Field: "confidence_levels", Message: "must not be empty"}
	}
	for _, cl := range c.ConfidenceLevels {
		if !(cl > 0 && cl < 1) {
			return contracts.ValidationError{Field: "confidence_levels", Message: fmt.Sprintf("must be in (0,1), got %v", cl)}
		}
	}
	if c.LookbackDays <= 0 {
		return contracts.ValidationError{Field: "lookback_days", Message: "must be > 0"}
	}
	if c.WeekLookback <= 0 {
		return contracts.ValidationError{Field: "week_52_lookback", Message: "must be > 0"}
	}
	if c.MinDataPoints <= 0 {
		return contracts.ValidationError{Field: "min_data_points", Message: "must be > 0"}
	}
	return c.Indicators.Validate()
}

// Validate checks indicator names and periods
func (c IndicatorConfig) Validate() error {
	for _, name := range c.Enabled {
		if !isKnownIndicator(name) {
			return contracts.ValidationError{Field: "indicators", Message: fmt.Sprintf("unknown indicator %q", name)}
		}
	}

	periods := map[string]int{
		"rsi":               c.RSIPeriod,
		"macd_fast":         c.MACDFast,
		"macd_slow":         c.MACDSlow,
		"macd_signal":       c.MACDSignal,
		"bollinger_period":  c.BollingerPeriod,
		"stochastic":        c.StochasticPeriod,
		"stochastic_smooth": c.StochasticSmooth,
		"williams_r":        c.WilliamsRPeriod,
	}
	for field, p := range periods {
		if p <= 0 {
			return contracts.ValidationError{Field: field, Message: "period must be > 0"}
		}
	}
	for _, p := range append(append([]int{}, c.SMAPeriods...), c.EMAPeriods...) {
		if p <= 0 {
			return contracts.ValidationError{Field: "sma/ema", Message: "period must be > 0"}
		}
	}
	if c.MACDFast >= c.MACDSlow {
		return contracts.ValidationError{Field: "macd_fast", Message: "must be shorter than macd_slow"}
	}
	if !(c.BollingerStdDev > 0) {
		return contracts.ValidationError{Field: "bollinger_std", Message: "must be > 0"}
	}
	return nil
}

func isKnownIndicator(name string) bool {
	for _, known := range AllIndicators() {
		if name == known {
			return true
		}
	}
	return false
}
