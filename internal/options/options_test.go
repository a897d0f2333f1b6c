package options

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finfetch/internal/cleaner"
	"github.com/wonny/finfetch/internal/contracts"
)

func TestDefaultIsValid(t *testing.T) {
	opts := Default()
	require.NoError(t, Validate(opts))

	assert.Equal(t, []string{"yahoo"}, opts.Pipeline.Sources)
	assert.True(t, opts.IsEnabled(ProcessorCleaner))
	assert.False(t, opts.IsEnabled(ProcessorPortfolio))
	assert.True(t, opts.IsEnabled(ProcessorRisk), "analyzers have no enabled flag")
}

func TestParse(t *testing.T) {
	t.Run("empty document keeps defaults", func(t *testing.T) {
		opts, err := Parse([]byte(""))
		require.NoError(t, err)
		assert.Equal(t, Default(), opts)
	})

	t.Run("overrides merge onto defaults", func(t *testing.T) {
		doc := `
version: "1.1"
pipeline:
  sources: [yahoo, mock]
  days: 90
processors:
  data_cleaner:
    enabled: true
    fill_method: interpolate
  technical_indicators:
    enabled: true
    indicators: [sma, rsi]
    rsi: 21
output:
  default_format: table
`
		opts, err := Parse([]byte(doc))
		require.NoError(t, err)

		assert.Equal(t, "1.1", opts.Version)
		assert.Equal(t, []string{"yahoo", "mock"}, opts.Pipeline.Sources)
		assert.Equal(t, 90, opts.Pipeline.Days)
		assert.Equal(t, 4, opts.Pipeline.Workers, "untouched fields keep defaults")
		assert.Equal(t, cleaner.FillInterpolate, opts.Processors.DataCleaner.FillMethod)
		assert.Equal(t, 3.0, opts.Processors.DataCleaner.OutlierThreshold)
		assert.Equal(t, []string{"sma", "rsi"}, opts.Processors.TechnicalIndicators.IndicatorConfig.Enabled)
		assert.Equal(t, 21, opts.Processors.TechnicalIndicators.RSIPeriod)
		assert.Equal(t, "table", opts.Output.Format)
	})

	t.Run("unknown field fails", func(t *testing.T) {
		_, err := Parse([]byte("pipeline:\n  dayz: 10\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dayz")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		field  string
	}{
		{
			name:   "missing version",
			mutate: func(o *Options) { o.Version = "" },
			field:  "version",
		},
		{
			name:   "unknown source",
			mutate: func(o *Options) { o.Pipeline.Sources = []string{"bloomberg"} },
			field:  "pipeline.sources[0]",
		},
		{
			name:   "too few days",
			mutate: func(o *Options) { o.Pipeline.Days = 1 },
			field:  "pipeline.days",
		},
		{
			name:   "duplicate processor",
			mutate: func(o *Options) { o.Pipeline.Order = []string{ProcessorCleaner, ProcessorCleaner} },
			field:  "pipeline.order",
		},
		{
			name:   "empty order",
			mutate: func(o *Options) { o.Pipeline.Order = nil },
			field:  "pipeline.order",
		},
		{
			name:   "bad output format",
			mutate: func(o *Options) { o.Output.Format = "pdf" },
			field:  "output.default_format",
		},
		{
			name:   "bad aggregation method",
			mutate: func(o *Options) { o.Pipeline.Aggregation.Method = "median" },
			field:  "pipeline.aggregation",
		},
		{
			name:   "bad fill method",
			mutate: func(o *Options) { o.Processors.DataCleaner.FillMethod = "zero" },
			field:  "processors.data_cleaner",
		},
		{
			name:   "unknown indicator",
			mutate: func(o *Options) { o.Processors.TechnicalIndicators.IndicatorConfig.Enabled = []string{"ichimoku"} },
			field:  "processors.technical_indicators.indicators",
		},
		{
			name:   "metrics risk free rate",
			mutate: func(o *Options) { o.Processors.FinancialMetrics.RiskFreeRate = 2 },
			field:  "processors.financial_metrics.risk_free_rate",
		},
		{
			name:   "screening weights",
			mutate: func(o *Options) { o.Processors.StockScreening.Weights.Sharpe = 0.9 },
			field:  "processors.stock_screening.weights",
		},
		{
			name:   "portfolio method validated even when disabled",
			mutate: func(o *Options) { o.Processors.PortfolioAnalyzer.OptimizationMethod = "max_sharpe" },
			field:  "processors.portfolio_analyzer.optimization_method",
		},
		{
			name:   "analysis lookback",
			mutate: func(o *Options) { o.Processors.Analysis.LookbackDays = 5 },
			field:  "processors.analysis.lookback_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			tt.mutate(opts)

			err := Validate(opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrInvalidConfig))

			var ve contracts.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 2\n"), 0o644))

	opts, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, opts.Pipeline.Workers)
	assert.Contains(t, string(raw), "workers")

	_, _, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, _ := Hash(Default())
	assert.Equal(t, a, b, "hash not deterministic")

	changed := Default()
	changed.Pipeline.Days = 30
	c, _ := Hash(changed)
	assert.NotEqual(t, a, c)
}

func TestMarshal(t *testing.T) {
	out, err := Marshal(Default())
	require.NoError(t, err)
	assert.Contains(t, string(out), "default_format: csv")
	assert.Contains(t, string(out), "fill_method: forward")
}
