package contracts

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrSingularMatrix   = errors.New("singular covariance matrix")
	ErrNoData           = errors.New("no data")
	ErrSourceDisabled   = errors.New("source disabled")
)

// ValidationError 설정 검증 실패
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidConfig
func (e ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Insufficient wraps ErrInsufficientData with counts
func Insufficient(what string, got, need int) error {
	return fmt.Errorf("%w: %s got %d, need %d", ErrInsufficientData, what, got, need)
}
