package analysis

import (
	"sort"

	"github.com/wonny/finfetch/internal/contracts"
)

// Config defines analyzer parameters
type Config struct {
	RiskFreeRate     float64   `yaml:"risk_free_rate" json:"risk_free_rate"`
	ConfidenceLevels []float64 `yaml:"confidence_levels" json:"confidence_levels"`
	LookbackDays     int       `yaml:"lookback_days" json:"lookback_days"`       // 리스크 분석 구간
	LookbackPeriods  []int     `yaml:"lookback_periods" json:"lookback_periods"` // 성과 분석 구간들
	MinObservations  int       `yaml:"min_observations" json:"min_observations"`
}

// DefaultConfig returns default analyzer configuration
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:     0.03,
		ConfidenceLevels: []float64{0.95, 0.99},
		LookbackDays:     252,
		LookbackPeriods:  []int{30, 90, 252, 504}, // 1M, 3M, 1Y, 2Y
		MinObservations:  30,
	}
}

// Validate checks analyzer parameters
func (c Config) Validate() error {
	if c.RiskFreeRate < 0 || c.RiskFreeRate > 1 {
		return &contracts.ValidationError{Field: "risk_free_rate", Message: "must be between 0 and 1"}
	}
	if len(c.ConfidenceLevels) == 0 {
		return &contracts.ValidationError{Field: "confidence_levels", Message: "cannot be empty"}
	}
	for _, cl := range c.ConfidenceLevels {
		if cl <= 0 || cl >= 1 {
			return &contracts.ValidationError{Field: "confidence_levels", Message: "must be between 0 and 1"}
		}
	}
	if c.LookbackDays < 30 {
		return &contracts.ValidationError{Field: "lookback_days", Message: "must be at least 30"}
	}
	if len(c.LookbackPeriods) == 0 {
		return &contracts.ValidationError{Field: "lookback_periods", Message: "cannot be empty"}
	}
	for _, p := range c.LookbackPeriods {
		if p <= 0 {
			return &contracts.ValidationError{Field: "lookback_periods", Message: "must be positive"}
		}
	}
	if c.MinObservations <= 1 {
		return &contracts.ValidationError{Field: "min_observations", Message: "must be greater than 1"}
	}
	return nil
}

// sortedSymbols returns map keys in order
func sortedSymbols(data map[string]*contracts.PriceRecord) []string {
	symbols := make([]string, 0, len(data))
	for s := range data {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// sortedRecord returns the record ordered by date
func sortedRecord(record *contracts.PriceRecord) *contracts.PriceRecord {
	if record.IsSorted() {
		return record
	}
	idx := make([]int, record.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return record.Bars[idx[a]].Date.Before(record.Bars[idx[b]].Date)
	})
	return record.SelectRows(idx)
}

// tail returns the last n values (all when n >= len)
func tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
