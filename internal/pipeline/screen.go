package pipeline

import (
	"context"
	"errors"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/metrics"
	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/selection"
	"github.com/wonny/finfetch/internal/sources"
	"github.com/wonny/finfetch/pkg/logger"
)

// ScreenResult is a pipeline run plus its flattened screening table
type ScreenResult struct {
	Result  *contracts.ProcessingResult
	Rows    []contracts.ScreeningRow
	Skipped map[string]string // symbol → 사유
}

// Screen runs the pipeline with the benchmark added, then builds one ScreeningRow per requested symbol
// 벤치마크는 요청에 포함된 경우에만 행으로 출력
func (o *Orchestrator) Screen(ctx context.Context, req Request, cfg metrics.Config) (*ScreenResult, error) {
	requested := req.Symbols
	if cfg.Benchmark != "" {
		req.Symbols = append(append([]string{}, req.Symbols...), cfg.Benchmark)
	}

	result, err := o.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	rows, skipped := ScreeningTable(ctx, result.Data, requested, cfg, o.logger)
	return &ScreenResult{Result: result, Rows: rows, Skipped: skipped}, nil
}

// ScreeningTable computes screening rows for symbols, sorted by symbol
// 데이터 부족/누락 종목은 skipped에 사유와 함께 기록
func ScreeningTable(ctx context.Context, data map[string]*contracts.PriceRecord, symbols []string, cfg metrics.Config, log *logger.Logger) ([]contracts.ScreeningRow, map[string]string) {
	skipped := make(map[string]string)
	subset := make(map[string]*contracts.PriceRecord, len(symbols)+1)

	for _, symbol := range sources.NormalizeSymbols(symbols) {
		record, ok := data[symbol]
		if !ok || record.Len() == 0 {
			skipped[symbol] = "no data"
			continue
		}
		subset[symbol] = record
	}

	// 벤치마크는 beta 계산용으로만 전달, 요청에 없으면 행에서 제외
	benchmark := contracts.NormalizeSymbol(cfg.Benchmark)
	_, requested := subset[benchmark]
	withBench := subset
	if bench, ok := data[benchmark]; ok && !requested {
		withBench = make(map[string]*contracts.PriceRecord, len(subset)+1)
		for k, v := range subset {
			withBench[k] = v
		}
		withBench[benchmark] = bench
	}

	calc := metrics.NewCalculator(cfg, log)
	built, errs := selection.BuildScreeningRows(ctx, calc, withBench, benchmark)

	rows := make([]contracts.ScreeningRow, 0, len(built))
	for _, row := range built {
		if _, ok := subset[row.Symbol]; ok {
			rows = append(rows, row)
		}
	}

	for symbol, err := range errs {
		if _, ok := subset[symbol]; !ok {
			continue
		}
		reason := err.Error()
		if errors.Is(err, contracts.ErrInsufficientData) {
			reason = "insufficient data"
		}
		skipped[symbol] = reason
		log.WithError(err).WithField("symbol", symbol).Warn("Symbol skipped from screening")
	}
	return rows, skipped
}

// Ranking extracts the stock_screening ranking when that stage ran
func Ranking(result *contracts.ProcessingResult) []contracts.RankedRow {
	meta, ok := result.Metadata[options.ProcessorScreening].(map[string]interface{})
	if !ok {
		return nil
	}
	ranked, _ := meta["ranking"].([]contracts.RankedRow)
	return ranked
}
