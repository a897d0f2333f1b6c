package contracts

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var sourceValidator = validator.New()

// SourceConfig holds one vendor's settings
// ⭐ SSOT: 로드 후 변경 불가, 어댑터만 사용
type SourceConfig struct {
	Name      string        `json:"name" validate:"required,oneof=yahoo polygon alpha_vantage fred html mock"`
	Enabled   bool          `json:"enabled"`
	APIKey    string        `json:"-" validate:"required_if=Name polygon,required_if=Name alpha_vantage,required_if=Name fred"`
	RateLimit int           `json:"rate_limit" validate:"gte=0"` // requests per minute, 0 = unlimited
	Timeout   time.Duration `json:"timeout" validate:"gte=0"`
	BaseURL   string        `json:"base_url" validate:"omitempty,url"`
}

// Validate checks struct tags; disabled sources are not validated
func (c SourceConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := sourceValidator.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q check for source %s", fe.Tag(), c.Name),
			}
		}
		return fmt.Errorf("validate source %s: %w", c.Name, err)
	}
	return nil
}
