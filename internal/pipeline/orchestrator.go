package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/selection"
	"github.com/wonny/finfetch/internal/sources"
	"github.com/wonny/finfetch/pkg/logger"
)

// SourceSelector resolves source names into adapters
// sources.Registry가 구현
type SourceSelector interface {
	Select(names []string) ([]contracts.Source, error)
}

// Progress is one completed step of a run
type Progress struct {
	Stage contracts.Stage
	Name  string
	Done  int
	Total int
}

// ProgressFunc receives step updates (called from collector goroutines too)
type ProgressFunc func(Progress)

// Request describes one pipeline run
type Request struct {
	Symbols []string
	Sources []string // 비어 있으면 options의 pipeline.sources
	Order   []string // 비어 있으면 options의 pipeline.order
	From    time.Time
	To      time.Time
}

// NewRequest builds a request covering the last days calendar days up to now
func NewRequest(symbols []string, days int, now time.Time) Request {
	to := now.UTC().Truncate(24 * time.Hour)
	return Request{
		Symbols: symbols,
		From:    to.AddDate(0, 0, -days),
		To:      to,
	}
}

// Orchestrator runs COLLECT → MERGE → PROCESS(n) → DONE
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	sources  SourceSelector
	opts     *options.Options
	repo     *selection.Repository
	progress ProgressFunc
	logger   *logger.Logger
}

// New creates a new orchestrator; nil opts means options.Default()
func New(src SourceSelector, opts *options.Options, log *logger.Logger) *Orchestrator {
	if opts == nil {
		opts = options.Default()
	}
	return &Orchestrator{
		sources: src,
		opts:    opts,
		logger:  log.WithField("module", "pipeline"),
	}
}

// WithRepository caches screening results produced by runs
func (o *Orchestrator) WithRepository(repo *selection.Repository) *Orchestrator {
	o.repo = repo
	return o
}

// WithProgress registers a progress callback
func (o *Orchestrator) WithProgress(fn ProgressFunc) *Orchestrator {
	o.progress = fn
	return o
}

// Options returns the options the orchestrator runs with
func (o *Orchestrator) Options() *options.Options {
	return o.opts
}

// Run executes the whole pipeline for req
// 설정/요청 오류만 error로 반환; 소스·프로세서 실패는 result.Errors에 기록
func (o *Orchestrator) Run(ctx context.Context, req Request) (*contracts.ProcessingResult, error) {
	startTime := time.Now()

	symbols := sources.NormalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		return nil, contracts.ValidationError{Field: "symbols", Message: "at least one symbol is required"}
	}
	if !req.From.Before(req.To) {
		return nil, contracts.ValidationError{Field: "date_range", Message: "from must be before to"}
	}

	names := req.Sources
	if len(names) == 0 {
		names = o.opts.Pipeline.Sources
	}
	selected, err := o.sources.Select(names)
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}

	order := o.order(req.Order, len(selected))
	result := o.newResult()
	tracker := newTracker(o.progress, len(selected)+1+len(order))

	o.logger.WithFields(map[string]interface{}{
		"run_id":  result.RunID,
		"symbols": len(symbols),
		"sources": len(selected),
		"from":    req.From.Format("2006-01-02"),
		"to":      req.To.Format("2006-01-02"),
		"order":   order,
	}).Info("Starting pipeline run")

	result.Metadata["symbols_requested"] = symbols
	result.Metadata["date_range"] = map[string]string{
		"start": req.From.Format("2006-01-02"),
		"end":   req.To.Format("2006-01-02"),
	}

	// COLLECT + MERGE
	data := o.collect(ctx, selected, symbols, req.From, req.To, result, tracker)
	if err := ctx.Err(); err != nil {
		o.finish(result, startTime)
		return result, err
	}

	// PROCESS(n)
	result.Data = o.process(ctx, data, order, result, tracker)
	o.finish(result, startTime)
	return result, ctx.Err()
}

// Process runs the processor chain on already collected data
// analyze 명령/API에서 사용 (COLLECT/MERGE 생략)
func (o *Orchestrator) Process(ctx context.Context, data map[string]*contracts.PriceRecord, order []string) (*contracts.ProcessingResult, error) {
	startTime := time.Now()
	if len(order) == 0 {
		order = o.opts.Pipeline.Order
	}

	result := o.newResult()
	tracker := newTracker(o.progress, len(order))
	result.Data = o.process(ctx, data, order, result, tracker)
	o.finish(result, startTime)
	return result, ctx.Err()
}

func (o *Orchestrator) newResult() *contracts.ProcessingResult {
	result := &contracts.ProcessingResult{
		RunID:    uuid.New().String(),
		Data:     make(map[string]*contracts.PriceRecord),
		Metadata: make(map[string]interface{}),
		Errors:   make([]string, 0),
		Stages:   make([]contracts.StageResult, 0),
	}
	if hash, err := options.Hash(o.opts); err == nil {
		result.Metadata["options_hash"] = hash
	}
	return result
}

// order returns the processor order for a run
// 소스가 둘 이상이고 aggregator가 없으면 맨 앞에 추가 (같은 날짜 행 병합)
func (o *Orchestrator) order(requested []string, sourceCount int) []string {
	order := requested
	if len(order) == 0 {
		order = o.opts.Pipeline.Order
	}
	if sourceCount > 1 && !containsName(order, options.ProcessorAggregator) {
		order = append([]string{options.ProcessorAggregator}, order...)
	}
	return order
}

// finish marks DONE and computes overall success
// 데이터가 있는 종목이 하나도 없을 때만 실패
func (o *Orchestrator) finish(result *contracts.ProcessingResult, startTime time.Time) {
	result.ProcessingTime = time.Since(startTime)
	result.Success = len(result.Symbols()) > 0
	result.Stages = append(result.Stages, contracts.StageResult{
		Stage:       contracts.StageDone,
		Name:        "done",
		Success:     result.Success,
		OutputCount: len(result.Data),
		Duration:    result.ProcessingTime.Milliseconds(),
	})

	log := o.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"symbols":  len(result.Symbols()),
		"errors":   len(result.Errors),
		"duration": result.ProcessingTime.Seconds(),
	})
	if result.Success {
		log.Info("Pipeline run completed")
	} else {
		log.Error("Pipeline run produced no data")
	}
}

// =============================================================================
// Progress
// =============================================================================

// tracker serializes progress callbacks
type tracker struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int
	total int
}

func newTracker(fn ProgressFunc, total int) *tracker {
	return &tracker{fn: fn, total: total}
}

func (t *tracker) step(stage contracts.Stage, name string) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	t.fn(Progress{Stage: stage, Name: name, Done: t.done, Total: t.total})
}

func containsName(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
