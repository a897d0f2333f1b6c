package options

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/finfetch/internal/aggregate"
	"github.com/wonny/finfetch/internal/cleaner"
	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

var optionsValidator = newValidator()

// newValidator reports field names by their yaml key
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags, then each processor section
// 실패 시 contracts.ValidationError (errors.Is → ErrInvalidConfig)
func Validate(opts *Options) error {
	if err := optionsValidator.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return contracts.ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Options."),
				Message: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return fmt.Errorf("validate options: %w", err)
	}

	// === Pipeline ===
	nop := logger.NewNop()
	if !aggregate.New(opts.Pipeline.Aggregation, nop).ValidateConfig() {
		return contracts.ValidationError{Field: "pipeline.aggregation", Message: "unknown aggregation_method or conflict_resolution"}
	}

	// === Processors ===
	// 비활성 프로세서도 검증 (나중에 켰을 때 실패하지 않도록)
	p := opts.Processors
	if !cleaner.New(p.DataCleaner.Config, nop).ValidateConfig() {
		return contracts.ValidationError{Field: "processors.data_cleaner", Message: "unknown fill_method or non-positive outlier_threshold"}
	}
	if err := p.TechnicalIndicators.IndicatorConfig.Validate(); err != nil {
		return section("processors.technical_indicators", err)
	}
	if err := p.FinancialMetrics.Config.Validate(); err != nil {
		return section("processors.financial_metrics", err)
	}
	if err := p.StockScreening.ScreenerConfig.Validate(); err != nil {
		return section("processors.stock_screening", err)
	}
	if err := p.PortfolioAnalyzer.Config.Validate(); err != nil {
		return section("processors.portfolio_analyzer", err)
	}
	if err := p.Analysis.Config.Validate(); err != nil {
		return section("processors.analysis", err)
	}

	return nil
}

// section prefixes a component validation error with its options path
func section(prefix string, err error) error {
	var ptr *contracts.ValidationError
	if errors.As(err, &ptr) {
		return contracts.ValidationError{Field: prefix + "." + ptr.Field, Message: ptr.Message}
	}
	var val contracts.ValidationError
	if errors.As(err, &val) {
		return contracts.ValidationError{Field: prefix + "." + val.Field, Message: val.Message}
	}
	return contracts.ValidationError{Field: prefix, Message: err.Error()}
}
