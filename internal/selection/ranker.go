package selection

import (
	"context"
	"math"
	"sort"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// Ranker ranks screening rows by a weighted composite score
// ⭐ SSOT: 기회 점수 랭킹 로직은 여기서만
type Ranker struct {
	weights WeightConfig
	logger  *logger.Logger
}

// WeightConfig defines component weights for the composite score
type WeightConfig struct {
	Sharpe   float64 `yaml:"sharpe" json:"sharpe"`               // 샤프 (기본: 0.4)
	Return   float64 `yaml:"return" json:"return"`               // 연율 수익률 (기본: 0.3)
	FromHigh float64 `yaml:"pct_from_high" json:"pct_from_high"` // 52주 고점 대비 (기본: 0.3)
}

// NewRanker creates a new ranker
func NewRanker(weights WeightConfig, logger *logger.Logger) *Ranker {
	return &Ranker{
		weights: weights,
		logger:  logger,
	}
}

// Rank min-max normalizes each column, scores and ranks rows
// 동점은 입력 순서 유지 (stable sort)
func (r *Ranker) Rank(ctx context.Context, rows []contracts.OpportunityRow) ([]contracts.RankedRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := make([]contracts.RankedRow, len(rows))
	if len(rows) == 0 {
		return ranked, nil
	}

	sharpe := make([]float64, len(rows))
	ret := make([]float64, len(rows))
	high := make([]float64, len(rows))
	for i, row := range rows {
		sharpe[i] = row.SharpeRatio
		ret[i] = row.AnnualizedReturn
		high[i] = row.PctFrom52wHigh
	}
	normSharpe := normalize(sharpe)
	normReturn := normalize(ret)
	normHigh := normalize(high)

	for i, row := range rows {
		ranked[i] = contracts.RankedRow{
			OpportunityRow: row,
			NormSharpe:     normSharpe[i],
			NormReturn:     normReturn[i],
			NormHigh:       normHigh[i],
		}
		ranked[i].Score = r.calculateTotalScore(&ranked[i])
	}

	// Sort by score (descending)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	// Assign ranks
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	r.logger.WithFields(map[string]interface{}{
		"total_symbols": len(ranked),
		"top_score":     ranked[0].Score,
		"top_symbol":    ranked[0].Symbol,
	}).Info("Ranking completed")

	return ranked, nil
}

// calculateTotalScore calculates weighted composite score
func (r *Ranker) calculateTotalScore(row *contracts.RankedRow) float64 {
	return row.NormSharpe*r.weights.Sharpe +
		row.NormReturn*r.weights.Return +
		row.NormHigh*r.weights.FromHigh
}

// normalize min-max scales values to [0, 1]
// 범위가 0이면 모두 0.5, NaN은 0 (최하위)
func normalize(values []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = 0.0
		case hi-lo == 0:
			out[i] = 0.5
		default:
			out[i] = (v - lo) / (hi - lo)
		}
	}
	return out
}

// ValidateWeights checks if weights sum to 1.0
func (w *WeightConfig) ValidateWeights() bool {
	if w.Sharpe < 0 || w.Return < 0 || w.FromHigh < 0 {
		return false
	}
	sum := w.Sharpe + w.Return + w.FromHigh
	// Allow small floating point error
	return sum >= 0.99 && sum <= 1.01
}

// DefaultWeightConfig returns default weight configuration
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Sharpe:   0.4, // 40% - 위험 조정 수익
		Return:   0.3, // 30% - 연율 수익률
		FromHigh: 0.3, // 30% - 52주 고점 대비
	}
	// Total: 100%
}
