package portfolio

import (
	"slices"

	"github.com/wonny/finfetch/internal/contracts"
)

// Constraints defines which assets enter the portfolio
// ⭐ SSOT: 포트폴리오 편입 조건은 여기서만
type Constraints struct {
	MinAssets       int      `yaml:"min_assets" json:"min_assets"`             // 최소 종목 수
	MinObservations int      `yaml:"min_observations" json:"min_observations"` // 정렬 후 최소 행 수
	BlackList       []string `yaml:"exclude" json:"exclude"`                   // 제외 종목 리스트
}

// IsBlackListed checks if a symbol is in the blacklist
func (c *Constraints) IsBlackListed(symbol string) bool {
	return slices.ContainsFunc(c.BlackList, func(s string) bool {
		return contracts.NormalizeSymbol(s) == contracts.NormalizeSymbol(symbol)
	})
}

// DefaultConstraints returns default constraint configuration
func DefaultConstraints() Constraints {
	return Constraints{
		MinAssets:       2,
		MinObservations: 30,
		BlackList:       []string{},
	}
}
