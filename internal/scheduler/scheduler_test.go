package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finfetch/pkg/logger"
)

// flakyJob fails the first failures runs
type flakyJob struct {
	name     string
	schedule string
	failures int32
	calls    int32
}

func (j *flakyJob) Name() string     { return j.name }
func (j *flakyJob) Schedule() string { return j.schedule }
func (j *flakyJob) Run(_ context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if n <= j.failures {
		return errors.New("upstream unavailable")
	}
	return nil
}

// blockingJob waits for cancellation
type blockingJob struct{}

func (blockingJob) Name() string     { return "blocking" }
func (blockingJob) Schedule() string { return "@daily" }
func (blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestScheduler(opts ...Option) *Scheduler {
	return New(logger.NewNop(), append([]Option{WithRetry(2, 0)}, opts...)...)
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 18 * * 1-5", false},
		{"0 30 18 * * 1-5", false},
		{"@daily", false},
		{"@every 1h", false},
		{"not a schedule", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&flakyJob{name: "b", schedule: "@daily"}))
	require.NoError(t, s.AddJob(&flakyJob{name: "a", schedule: "0 18 * * *"}))

	err := s.AddJob(&flakyJob{name: "a", schedule: "@hourly"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&flakyJob{name: "c", schedule: "bogus"})
	assert.ErrorContains(t, err, "failed to schedule")

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	_, ok := s.NextRun("a")
	assert.True(t, ok)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&flakyJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())

	_, ok := s.NextRun("a")
	assert.False(t, ok)
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunNowRetries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		wantSuccess  bool
		wantAttempts int
	}{
		{"first try", 0, true, 1},
		{"succeeds on retry", 2, true, 3},
		{"exhausts retries", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &flakyJob{name: "flaky", schedule: "@daily", failures: tt.failures}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunNow("flaky")
			require.NoError(t, err)

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, int32(tt.wantAttempts), atomic.LoadInt32(&job.calls))
			if tt.wantSuccess {
				assert.Empty(t, result.Error)
			} else {
				assert.Equal(t, "upstream unavailable", result.Error)
			}
		})
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := newTestScheduler()
	_, err := s.RunNow("missing")
	assert.Error(t, err)
	assert.Error(t, s.RunJob("missing"))
}

func TestRunNowTimeout(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(0, 0), WithTimeout(10*time.Millisecond))
	require.NoError(t, s.AddJob(blockingJob{}))

	result, err := s.RunNow("blocking")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, context.DeadlineExceeded.Error(), result.Error)
}

func TestStopInterruptsRetryDelay(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(3, time.Hour))
	require.NoError(t, s.AddJob(&flakyJob{name: "flaky", schedule: "@daily", failures: 10}))

	done := make(chan JobResult, 1)
	go func() {
		result, _ := s.RunNow("flaky")
		done <- result
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case result := <-done:
		assert.False(t, result.Success)
		assert.Equal(t, 1, result.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("retry delay was not interrupted by Stop")
	}
}

func TestJobStats(t *testing.T) {
	s := newTestScheduler(WithRetry(0, 0))
	require.NoError(t, s.AddJob(&flakyJob{name: "flaky", schedule: "@daily", failures: 1}))

	_, err := s.RunNow("flaky") // 실패
	require.NoError(t, err)
	_, err = s.RunNow("flaky") // 성공
	require.NoError(t, err)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, "@daily", stats.Schedule)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastRun)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.GetFailedResults(), 1)
	assert.Len(t, history.GetLatestResults(5), 2)
}

func TestJobHistoryKeepsLatest(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{JobName: "x", Attempts: i, Success: true})
	}

	require.Len(t, h.Results, maxHistory)
	assert.Equal(t, 10, h.Results[0].Attempts)
	assert.Equal(t, maxHistory+9, h.GetLatestResults(1)[0].Attempts)
}
