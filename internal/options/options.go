package options

import (
	"github.com/wonny/finfetch/internal/aggregate"
	"github.com/wonny/finfetch/internal/analysis"
	"github.com/wonny/finfetch/internal/cleaner"
	"github.com/wonny/finfetch/internal/metrics"
	"github.com/wonny/finfetch/internal/portfolio"
	"github.com/wonny/finfetch/internal/selection"
)

// Processor names (pipeline order에 사용)
const (
	ProcessorAggregator  = "data_aggregator"
	ProcessorCleaner     = "data_cleaner"
	ProcessorIndicators  = "technical_indicators"
	ProcessorMetrics     = "financial_metrics"
	ProcessorScreening   = "stock_screening"
	ProcessorPortfolio   = "portfolio_analyzer"
	ProcessorRisk        = "risk_analyzer"
	ProcessorPerformance = "performance_analyzer"
)

// Options is the whole pipeline options file
// ⭐ SSOT: 파이프라인 동작 설정은 이 구조에서만 (환경변수는 pkg/config)
type Options struct {
	Version    string     `yaml:"version" json:"version" validate:"required"`
	Pipeline   Pipeline   `yaml:"pipeline" json:"pipeline"`
	Processors Processors `yaml:"processors" json:"processors"`
	Output     Output     `yaml:"output" json:"output"`
}

// Pipeline controls collection and processor order
type Pipeline struct {
	Sources     []string         `yaml:"sources" json:"sources" validate:"dive,oneof=yahoo polygon alpha_vantage fred html mock"`
	Days        int              `yaml:"days" json:"days" validate:"gte=2"`
	Order       []string         `yaml:"order" json:"order" validate:"min=1,unique,dive,oneof=data_aggregator data_cleaner technical_indicators financial_metrics stock_screening portfolio_analyzer risk_analyzer performance_analyzer"`
	Workers     int              `yaml:"workers" json:"workers" validate:"gte=1,lte=16"` // 동시 수집 소스 수
	Aggregation aggregate.Config `yaml:"aggregation" json:"aggregation"`
}

// Processors holds per-processor settings
type Processors struct {
	DataCleaner         CleanerOptions   `yaml:"data_cleaner" json:"data_cleaner"`
	TechnicalIndicators IndicatorOptions `yaml:"technical_indicators" json:"technical_indicators"`
	FinancialMetrics    MetricsOptions   `yaml:"financial_metrics" json:"financial_metrics"`
	StockScreening      ScreeningOptions `yaml:"stock_screening" json:"stock_screening"`
	PortfolioAnalyzer   PortfolioOptions `yaml:"portfolio_analyzer" json:"portfolio_analyzer"`
	Analysis            AnalysisOptions  `yaml:"analysis" json:"analysis"`
}

// CleanerOptions data_cleaner 섹션
type CleanerOptions struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	cleaner.Config `yaml:",inline"`
}

// IndicatorOptions technical_indicators 섹션
type IndicatorOptions struct {
	Enabled                 bool `yaml:"enabled" json:"enabled"`
	metrics.IndicatorConfig `yaml:",inline"`
}

// MetricsOptions financial_metrics 섹션
type MetricsOptions struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	metrics.Config `yaml:",inline"`
}

// ScreeningOptions stock_screening 섹션
type ScreeningOptions struct {
	Enabled                  bool `yaml:"enabled" json:"enabled"`
	selection.ScreenerConfig `yaml:",inline"`
}

// PortfolioOptions portfolio_analyzer 섹션
type PortfolioOptions struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	portfolio.Config `yaml:",inline"`
}

// AnalysisOptions risk/performance analyzer 공용 섹션
type AnalysisOptions struct {
	analysis.Config `yaml:",inline"`
}

// Output controls report rendering
type Output struct {
	Format          string `yaml:"default_format" json:"default_format" validate:"oneof=table csv xlsx json"`
	DateFormat      string `yaml:"date_format" json:"date_format" validate:"required"`
	DecimalPlaces   int    `yaml:"decimal_places" json:"decimal_places" validate:"gte=0,lte=10"`
	IncludeMetadata bool   `yaml:"include_metadata" json:"include_metadata"`
}

// Default returns the built-in options
func Default() *Options {
	metricsCfg := metrics.DefaultConfig()
	indicators := metrics.DefaultIndicatorConfig()

	return &Options{
		Version: "1.0",
		Pipeline: Pipeline{
			Sources:     []string{"yahoo"},
			Days:        365,
			Order:       []string{ProcessorCleaner, ProcessorIndicators, ProcessorMetrics, ProcessorScreening},
			Workers:     4,
			Aggregation: aggregate.DefaultConfig(),
		},
		Processors: Processors{
			DataCleaner:         CleanerOptions{Enabled: true, Config: cleaner.DefaultConfig()},
			TechnicalIndicators: IndicatorOptions{Enabled: true, IndicatorConfig: indicators},
			FinancialMetrics:    MetricsOptions{Enabled: true, Config: metricsCfg},
			StockScreening:      ScreeningOptions{Enabled: true, ScreenerConfig: selection.DefaultScreenerConfig()},
			PortfolioAnalyzer:   PortfolioOptions{Enabled: false, Config: portfolio.DefaultConfig()},
			Analysis:            AnalysisOptions{Config: analysis.DefaultConfig()},
		},
		Output: Output{
			Format:          "csv",
			DateFormat:      "2006-01-02",
			DecimalPlaces:   2,
			IncludeMetadata: true,
		},
	}
}

// IsEnabled reports whether the named processor is switched on
// enabled 플래그가 없는 프로세서(aggregator, analyzers)는 order에 있으면 활성
func (o *Options) IsEnabled(name string) bool {
	p := o.Processors
	switch name {
	case ProcessorCleaner:
		return p.DataCleaner.Enabled
	case ProcessorIndicators:
		return p.TechnicalIndicators.Enabled
	case ProcessorMetrics:
		return p.FinancialMetrics.Enabled
	case ProcessorScreening:
		return p.StockScreening.Enabled
	case ProcessorPortfolio:
		return p.PortfolioAnalyzer.Enabled
	default:
		return true
	}
}
