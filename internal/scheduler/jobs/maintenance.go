package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wonny/finfetch/pkg/logger"
)

// CleanupJob removes old snapshot and report files
type CleanupJob struct {
	dir       string
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewCleanupJob creates a new cleanup job
func NewCleanupJob(dir string, retention time.Duration, log *logger.Logger) *CleanupJob {
	return &CleanupJob{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		logger:    log.WithField("job", "cleanup"),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "cleanup"
}

// Schedule returns the cron schedule (every day at 3 AM)
func (j *CleanupJob) Schedule() string {
	return "0 3 * * *"
}

// Run deletes generated files older than the retention period
func (j *CleanupJob) Run(ctx context.Context) error {
	var files []string
	for _, pattern := range []string{"snapshot_*.json", "screening_*"} {
		matches, err := filepath.Glob(filepath.Join(j.dir, pattern))
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Cleanup completed")
	}
	return nil
}
