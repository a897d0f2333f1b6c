package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// ComputeIndicators computes every enabled indicator for one record
// 키: sma_20, ema_12, rsi_14, macd, macd_signal, macd_histogram,
// bb_upper, bb_middle, bb_lower, stoch_k, stoch_d, williams_r
func ComputeIndicators(record *contracts.PriceRecord, config IndicatorConfig) map[string][]float64 {
	out := make(map[string][]float64)
	closes := record.Closes()

	for _, name := range config.Enabled {
		switch name {
		case IndicatorSMA:
			for _, p := range config.SMAPeriods {
				out[fmt.Sprintf("sma_%d", p)] = SMA(closes, p)
			}
		case IndicatorEMA:
			for _, p := range config.EMAPeriods {
				out[fmt.Sprintf("ema_%d", p)] = EMA(closes, p)
			}
		case IndicatorRSI:
			out[fmt.Sprintf("rsi_%d", config.RSIPeriod)] = RSI(closes, config.RSIPeriod)
		case IndicatorMACD:
			line, sig, hist := MACD(closes, config.MACDFast, config.MACDSlow, config.MACDSignal)
			out["macd"], out["macd_signal"], out["macd_histogram"] = line, sig, hist
		case IndicatorBollinger:
			mid, up, low := Bollinger(closes, config.BollingerPeriod, config.BollingerStdDev)
			out["bb_middle"], out["bb_upper"], out["bb_lower"] = mid, up, low
		case IndicatorStochastic:
			k, d := Stochastic(record.Highs(), record.Lows(), closes, config.StochasticPeriod, config.StochasticSmooth)
			out["stoch_k"], out["stoch_d"] = k, d
		case IndicatorWilliamsR:
			out["williams_r"] = WilliamsR(record.Highs(), record.Lows(), closes, config.WilliamsRPeriod)
		}
	}
	return out
}

// =============================================================================
// IndicatorsProcessor
// =============================================================================

// IndicatorsProcessor appends indicator series as derived columns
type IndicatorsProcessor struct {
	config IndicatorConfig
	logger *logger.Logger
}

// NewIndicatorsProcessor creates a new indicators processor
func NewIndicatorsProcessor(config IndicatorConfig, log *logger.Logger) *IndicatorsProcessor {
	return &IndicatorsProcessor{config: config, logger: log}
}

// Name returns the processor name
func (p *IndicatorsProcessor) Name() string {
	return "technical_indicators"
}

// ValidateConfig checks indicator names and periods
func (p *IndicatorsProcessor) ValidateConfig() bool {
	if err := p.config.Validate(); err != nil {
		p.logger.WithError(err).Error("Invalid indicator configuration")
		return false
	}
	return true
}

// Process adds derived columns to a copy of every record
func (p *IndicatorsProcessor) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	startTime := time.Now()
	out := &contracts.StageOutput{
		Data:     make(map[string]*contracts.PriceRecord, len(data)),
		Metadata: make(map[string]interface{}, len(data)),
	}

	for symbol, record := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		enriched := record.Clone()
		added := make([]string, 0)
		for name, series := range ComputeIndicators(record, p.config) {
			enriched.SetDerived(name, series)
			added = append(added, name)
		}
		out.Data[symbol] = enriched
		out.Metadata[symbol] = map[string]interface{}{
			"indicators_added": len(added),
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"symbols":    len(data),
		"indicators": p.config.Enabled,
		"duration":   time.Since(startTime),
	}).Info("Technical indicators added")

	return out, nil
}

// =============================================================================
// MetricsProcessor
// =============================================================================

// MetricsProcessor computes a MetricsBundle per symbol into stage metadata
// 데이터는 변경하지 않고 그대로 전달
type MetricsProcessor struct {
	calc   *Calculator
	logger *logger.Logger
}

// NewMetricsProcessor creates a new metrics processor
func NewMetricsProcessor(config Config, log *logger.Logger) *MetricsProcessor {
	return &MetricsProcessor{
		calc:   NewCalculator(config, log),
		logger: log,
	}
}

// Name returns the processor name
func (p *MetricsProcessor) Name() string {
	return "financial_metrics"
}

// ValidateConfig checks the calculator config
func (p *MetricsProcessor) ValidateConfig() bool {
	if err := p.calc.config.Validate(); err != nil {
		p.logger.WithError(err).Error("Invalid metrics configuration")
		return false
	}
	return true
}

// Process computes bundles; the benchmark symbol is read from the same data set
func (p *MetricsProcessor) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	benchSymbol := contracts.NormalizeSymbol(p.calc.config.Benchmark)
	benchmark := data[benchSymbol]

	out := &contracts.StageOutput{
		Data:     data,
		Metadata: make(map[string]interface{}, len(data)),
	}

	failed := 0
	for symbol, record := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bench := benchmark
		if symbol == benchSymbol {
			bench = nil
		}
		bundle := p.calc.Bundle(record, bench)
		if !bundle.OK() {
			failed++
			p.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"reason": bundle.Error,
			}).Warn("Metrics unavailable")
		}
		out.Metadata[symbol] = bundle.ToMap()
	}

	p.logger.WithFields(map[string]interface{}{
		"symbols": len(data),
		"failed":  failed,
	}).Info("Financial metrics calculated")

	return out, nil
}
