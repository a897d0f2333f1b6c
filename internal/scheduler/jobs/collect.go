package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/pkg/logger"
)

// CollectConfig describes what a scheduled collection fetches
type CollectConfig struct {
	Symbols  []string
	Sources  []string // 비어 있으면 options의 pipeline.sources
	Days     int
	Schedule string
	Dir      string // 스냅샷 저장 디렉터리
}

// CollectJob collects and cleans data, then writes a snapshot file
// ⭐ SSOT: 정기 수집 스케줄은 이 Job에서만
type CollectJob struct {
	orchestrator *pipeline.Orchestrator
	config       CollectConfig
	now          func() time.Time
	logger       *logger.Logger
}

// NewCollectJob creates a new collect job
func NewCollectJob(orch *pipeline.Orchestrator, cfg CollectConfig, log *logger.Logger) *CollectJob {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 18 * * 1-5" // 평일 장 마감 후
	}
	if cfg.Days <= 0 {
		cfg.Days = orch.Options().Pipeline.Days
	}
	return &CollectJob{
		orchestrator: orch,
		config:       cfg,
		now:          time.Now,
		logger:       log.WithField("job", "collect"),
	}
}

// Name returns the job name
func (j *CollectJob) Name() string {
	return "collect"
}

// Schedule returns the cron schedule
func (j *CollectJob) Schedule() string {
	return j.config.Schedule
}

// Run executes the collection
func (j *CollectJob) Run(ctx context.Context) error {
	now := j.now()
	j.logger.WithField("symbols", len(j.config.Symbols)).Info("Starting scheduled collection")

	req := pipeline.NewRequest(j.config.Symbols, j.config.Days, now)
	req.Sources = j.config.Sources
	req.Order = []string{options.ProcessorCleaner}

	result, err := j.orchestrator.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("collect: no data for %d symbols (%d errors)", len(j.config.Symbols), len(result.Errors))
	}

	path := SnapshotPath(j.config.Dir, now)
	if err := pipeline.NewSnapshot(result).Save(path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  result.RunID,
		"symbols": len(result.Data),
		"path":    path,
	}).Info("Scheduled collection completed")

	return nil
}

// SnapshotPath names a snapshot by its collection time
func SnapshotPath(dir string, t time.Time) string {
	return filepath.Join(dir, "snapshot_"+t.UTC().Format("20060102_150405")+".json")
}
