package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/finfetch/internal/aggregate"
	"github.com/wonny/finfetch/internal/analysis"
	"github.com/wonny/finfetch/internal/cleaner"
	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/metrics"
	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/portfolio"
	"github.com/wonny/finfetch/internal/selection"
	"github.com/wonny/finfetch/pkg/logger"
)

// BuildProcessor creates the named processor from options
func BuildProcessor(name string, opts *options.Options, repo *selection.Repository, log *logger.Logger) (contracts.Processor, error) {
	p := opts.Processors
	switch name {
	case options.ProcessorAggregator:
		return aggregate.New(opts.Pipeline.Aggregation, log), nil
	case options.ProcessorCleaner:
		return cleaner.New(p.DataCleaner.Config, log), nil
	case options.ProcessorIndicators:
		return metrics.NewIndicatorsProcessor(p.TechnicalIndicators.IndicatorConfig, log), nil
	case options.ProcessorMetrics:
		return metrics.NewMetricsProcessor(p.FinancialMetrics.Config, log), nil
	case options.ProcessorScreening:
		proc := selection.NewProcessor(p.StockScreening.ScreenerConfig, log)
		if repo != nil {
			proc.WithRepository(repo)
		}
		return proc, nil
	case options.ProcessorPortfolio:
		return portfolio.NewAnalyzer(p.PortfolioAnalyzer.Config, log), nil
	case options.ProcessorRisk:
		return analysis.NewRiskAnalyzer(p.Analysis.Config, log), nil
	case options.ProcessorPerformance:
		return analysis.NewPerformanceAnalyzer(p.Analysis.Config, log), nil
	default:
		return nil, contracts.ValidationError{Field: "pipeline.order", Message: fmt.Sprintf("unknown processor %q", name)}
	}
}

// process runs processors sequentially
// 실패(에러/패닉)한 단계는 "<stage>: <error>" 기록 후 이전 데이터를 다음 단계로 전달
func (o *Orchestrator) process(
	ctx context.Context,
	data map[string]*contracts.PriceRecord,
	order []string,
	result *contracts.ProcessingResult,
	tracker *tracker,
) map[string]*contracts.PriceRecord {
	current := data

	for _, name := range order {
		if ctx.Err() != nil {
			break
		}

		log := o.logger.WithField("processor", name)
		if !o.opts.IsEnabled(name) {
			log.Debug("Processor disabled, skipping")
			tracker.step(contracts.StageProcess, name)
			continue
		}

		stage := contracts.StageResult{
			Stage:      contracts.StageProcess,
			Name:       name,
			InputCount: len(current),
		}

		proc, err := BuildProcessor(name, o.opts, o.repo, o.logger)
		if err == nil && !proc.ValidateConfig() {
			err = fmt.Errorf("%w: %s", contracts.ErrInvalidConfig, name)
		}
		if err != nil {
			o.fail(result, &stage, name, err)
			tracker.step(contracts.StageProcess, name)
			continue
		}

		start := time.Now()
		out, err := runProcessor(ctx, proc, current)
		stage.Duration = time.Since(start).Milliseconds()

		if err != nil {
			o.fail(result, &stage, name, err)
			tracker.step(contracts.StageProcess, name)
			continue
		}

		if out.Data != nil {
			current = out.Data
		}
		if out.Metadata != nil {
			result.Metadata[name] = out.Metadata
		}
		stage.Success = true
		stage.OutputCount = len(current)
		result.Stages = append(result.Stages, stage)
		tracker.step(contracts.StageProcess, name)

		log.WithFields(map[string]interface{}{
			"input":       stage.InputCount,
			"output":      stage.OutputCount,
			"duration_ms": stage.Duration,
		}).Info("Processor completed")
	}

	return current
}

// fail records a failed stage; the data passed to the next stage is unchanged
func (o *Orchestrator) fail(result *contracts.ProcessingResult, stage *contracts.StageResult, name string, err error) {
	o.logger.WithError(err).WithField("processor", name).Error("Processor failed")
	stage.Success = false
	stage.Error = err.Error()
	stage.OutputCount = stage.InputCount
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
	result.Stages = append(result.Stages, *stage)
}

// runProcessor converts a panic into an error
func runProcessor(ctx context.Context, proc contracts.Processor, data map[string]*contracts.PriceRecord) (out *contracts.StageOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	out, err = proc.Process(ctx, data)
	if err == nil && out == nil {
		err = fmt.Errorf("%w: processor returned no output", contracts.ErrNoData)
	}
	return out, err
}

// Analyze runs one processor on data regardless of its enabled flag
// analyze 명령/API 전용, 결과는 해당 프로세서의 메타데이터
func (o *Orchestrator) Analyze(ctx context.Context, data map[string]*contracts.PriceRecord, name string) (map[string]interface{}, error) {
	proc, err := BuildProcessor(name, o.opts, o.repo, o.logger)
	if err != nil {
		return nil, err
	}
	if !proc.ValidateConfig() {
		return nil, fmt.Errorf("%w: %s", contracts.ErrInvalidConfig, name)
	}

	start := time.Now()
	out, err := runProcessor(ctx, proc, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	o.logger.WithFields(map[string]interface{}{
		"processor":   name,
		"symbols":     len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Analysis completed")

	return out.Metadata, nil
}

// AnalysisProcessor maps an analysis kind to its processor name
func AnalysisProcessor(kind string) (string, error) {
	switch kind {
	case "risk":
		return options.ProcessorRisk, nil
	case "performance":
		return options.ProcessorPerformance, nil
	case "portfolio":
		return options.ProcessorPortfolio, nil
	}
	return "", contracts.ValidationError{Field: "analysis", Message: fmt.Sprintf("unknown analysis %q (performance, risk, portfolio)", kind)}
}
