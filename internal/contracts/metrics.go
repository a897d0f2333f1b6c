package contracts

import (
	"math"
	"sort"
)

// MetricsBundle holds one symbol's named metrics
// Error가 비어있지 않으면 {"error": reason} 형태의 태그된 결과
type MetricsBundle struct {
	Symbol  string             `json:"symbol"`
	Scalars map[string]float64 `json:"scalars,omitempty"`
	Series  map[string]Series  `json:"series,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// NewMetricsBundle creates an empty bundle
func NewMetricsBundle(symbol string) *MetricsBundle {
	return &MetricsBundle{
		Symbol:  symbol,
		Scalars: make(map[string]float64),
		Series:  make(map[string]Series),
	}
}

// ErrorBundle creates an error-tagged bundle
func ErrorBundle(symbol, reason string) *MetricsBundle {
	return &MetricsBundle{Symbol: symbol, Error: reason}
}

// OK reports whether the bundle carries metrics
func (b *MetricsBundle) OK() bool {
	return b.Error == ""
}

// Set stores a scalar
func (b *MetricsBundle) Set(name string, value float64) {
	b.Scalars[name] = value
}

// Get returns a scalar
func (b *MetricsBundle) Get(name string) (float64, bool) {
	v, ok := b.Scalars[name]
	return v, ok
}

// ToMap flattens the bundle for result metadata
// NaN/Inf 스칼라는 nil로 기록
func (b *MetricsBundle) ToMap() map[string]interface{} {
	if !b.OK() {
		return map[string]interface{}{"error": b.Error}
	}

	out := make(map[string]interface{}, len(b.Scalars))
	keys := make([]string, 0, len(b.Scalars))
	for k := range b.Scalars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := b.Scalars[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}
