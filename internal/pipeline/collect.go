package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/finfetch/internal/aggregate"
	"github.com/wonny/finfetch/internal/contracts"
)

// sourceResult 소스 하나의 수집 결과 (소스별 버킷)
type sourceResult struct {
	name     string
	data     map[string]*contracts.PriceRecord
	err      error
	duration time.Duration
}

// collect fans out over sources, then merges the buckets
// 실패한 소스는 로그 후 제외, 다른 소스 수집은 계속
func (o *Orchestrator) collect(
	ctx context.Context,
	selected []contracts.Source,
	symbols []string,
	from, to time.Time,
	result *contracts.ProcessingResult,
	tracker *tracker,
) map[string]*contracts.PriceRecord {
	results := make([]sourceResult, len(selected))

	// 고루틴은 에러를 반환하지 않음 (형제 작업 취소 방지)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Pipeline.Workers)
	for i, src := range selected {
		g.Go(func() error {
			start := time.Now()
			data, err := src.Collect(gctx, symbols, from, to)
			results[i] = sourceResult{
				name:     src.Name(),
				data:     data,
				err:      err,
				duration: time.Since(start),
			}
			tracker.step(contracts.StageCollect, src.Name())
			return nil
		})
	}
	_ = g.Wait()

	buckets := make(map[string]map[string]*contracts.PriceRecord, len(results))
	succeeded := make([]string, 0, len(results))
	failed := make(map[string]string)

	for _, r := range results {
		stage := contracts.StageResult{
			Stage:       contracts.StageCollect,
			Name:        r.name,
			Success:     r.err == nil,
			InputCount:  len(symbols),
			OutputCount: len(r.data),
			Duration:    r.duration.Milliseconds(),
		}

		if r.err != nil {
			o.logger.WithError(r.err).WithField("source", r.name).Error("Source collection failed")
			stage.Error = r.err.Error()
			failed[r.name] = r.err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.name, r.err))
		}
		// 취소 등으로 실패해도 부분 결과는 병합
		if len(r.data) > 0 {
			buckets[r.name] = r.data
		}
		if r.err == nil {
			succeeded = append(succeeded, r.name)
		}
		result.Stages = append(result.Stages, stage)
	}

	// MERGE
	mergeStart := time.Now()
	merged := aggregate.Merge(buckets, o.opts.Pipeline.Aggregation.SourcePriority)
	result.Stages = append(result.Stages, contracts.StageResult{
		Stage:       contracts.StageMerge,
		Name:        "merge",
		Success:     true,
		InputCount:  len(buckets),
		OutputCount: len(merged),
		Duration:    time.Since(mergeStart).Milliseconds(),
	})
	tracker.step(contracts.StageMerge, "merge")

	missing := make([]string, 0)
	for _, symbol := range symbols {
		if _, ok := merged[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	sort.Strings(missing)

	result.Metadata["sources"] = succeeded
	result.Metadata["failed_sources"] = failed
	result.Metadata["missing_symbols"] = missing
	result.Data = merged

	o.logger.WithFields(map[string]interface{}{
		"sources":  len(succeeded),
		"failed":   len(failed),
		"symbols":  len(merged),
		"missing":  len(missing),
		"merge_ms": time.Since(mergeStart).Milliseconds(),
	}).Info("Collection merged")

	return merged
}
