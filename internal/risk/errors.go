package risk

import "github.com/wonny/finfetch/internal/contracts"

var (
	ErrInsufficientData = contracts.ErrInsufficientData
	ErrInvalidConfig    = contracts.ErrInvalidConfig
)
