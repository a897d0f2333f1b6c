package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/internal/report"
	"github.com/wonny/finfetch/pkg/logger"
)

// ScreenConfig describes a scheduled screening report
type ScreenConfig struct {
	Symbols  []string
	Days     int
	Schedule string
	Dir      string
	Format   report.Format // csv, xlsx, json
}

// ScreenJob runs the full pipeline and writes a dated screening report
// 랭킹은 stock_screening 단계에서 redis에 저장됨
type ScreenJob struct {
	orchestrator *pipeline.Orchestrator
	writer       *report.Writer
	config       ScreenConfig
	now          func() time.Time
	logger       *logger.Logger
}

// NewScreenJob creates a new screening job
func NewScreenJob(orch *pipeline.Orchestrator, cfg ScreenConfig, log *logger.Logger) *ScreenJob {
	opts := orch.Options()
	if cfg.Schedule == "" {
		cfg.Schedule = "30 18 * * 1-5"
	}
	if cfg.Days <= 0 {
		cfg.Days = opts.Pipeline.Days
	}
	if cfg.Format == "" {
		cfg.Format = report.FormatCSV
	}
	return &ScreenJob{
		orchestrator: orch,
		writer:       report.NewWriter(opts.Output.DecimalPlaces),
		config:       cfg,
		now:          time.Now,
		logger:       log.WithField("job", "screen"),
	}
}

// Name returns the job name
func (j *ScreenJob) Name() string {
	return "screen"
}

// Schedule returns the cron schedule
func (j *ScreenJob) Schedule() string {
	return j.config.Schedule
}

// Run executes the screening and writes the report
func (j *ScreenJob) Run(ctx context.Context) error {
	now := j.now()
	j.logger.WithField("symbols", len(j.config.Symbols)).Info("Starting scheduled screening")

	req := pipeline.NewRequest(j.config.Symbols, j.config.Days, now)
	cfg := j.orchestrator.Options().Processors.FinancialMetrics.Config

	res, err := j.orchestrator.Screen(ctx, req, cfg)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	if len(res.Rows) == 0 {
		return fmt.Errorf("screen: no rows (%d skipped)", len(res.Skipped))
	}

	name := fmt.Sprintf("screening_%s.%s", now.UTC().Format("20060102"), j.config.Format)
	path := filepath.Join(j.config.Dir, name)
	if err := os.MkdirAll(j.config.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := j.writer.WriteFile(path, j.config.Format, res.Rows, pipeline.Ranking(res.Result)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"rows":    len(res.Rows),
		"skipped": len(res.Skipped),
		"path":    path,
	}).Info("Scheduled screening completed")

	return nil
}
