package sources

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// MockSource generates a deterministic geometric random walk per symbol
// 같은 심볼/기간이면 항상 같은 데이터 (오케스트레이터 테스트, 오프라인 실행용)
type MockSource struct {
	base
	drift      float64
	volatility float64
}

// NewMockSource creates a mock adapter
func NewMockSource(log *logger.Logger) *MockSource {
	return &MockSource{
		base:       newBase(contracts.SourceConfig{Name: NameMock, Enabled: true}, log),
		drift:      0.0003,
		volatility: 0.015,
	}
}

// WithWalk overrides the daily drift and volatility
func (s *MockSource) WithWalk(drift, volatility float64) *MockSource {
	s.drift = drift
	s.volatility = volatility
	return s
}

// Collect generates weekday bars for every symbol over [from, to]
func (s *MockSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	return s.collect(ctx, symbols, from, to, s.generate)
}

func (s *MockSource) generate(_ context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	rng := rand.New(rand.NewSource(symbolSeed(symbol)))
	price := 50 + rng.Float64()*200

	var bars []contracts.Bar
	for d := truncateDay(from); !d.After(truncateDay(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}

		open := price * (1 + 0.002*rng.NormFloat64())
		price *= math.Exp(s.drift - 0.5*s.volatility*s.volatility + s.volatility*rng.NormFloat64())
		high := math.Max(open, price) * (1 + 0.005*math.Abs(rng.NormFloat64()))
		low := math.Min(open, price) * (1 - 0.005*math.Abs(rng.NormFloat64()))

		bars = append(bars, contracts.Bar{
			Date:   d,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: math.Round(1e6 * (1 + rng.Float64())),
		})
	}
	return bars, nil
}

// symbolSeed FNV-1a hash of the symbol
func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return int64(h.Sum64() & math.MaxInt64)
}
