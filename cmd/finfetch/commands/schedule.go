package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finfetch/internal/report"
	"github.com/wonny/finfetch/internal/scheduler"
	"github.com/wonny/finfetch/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "정기 수집 스케줄러",
	Long: `cron 스케줄에 따라 수집(스냅샷 저장)과 스크리닝 리포트를 실행합니다.

등록되는 작업:
- collect: --cron (기본 평일 18:00), 스냅샷을 --dir에 저장
- screen:  --screen-cron 지정 시, 스크리닝 리포트를 --dir에 저장
- cleanup: --retention > 0이면 매일 03:00, 오래된 스냅샷/리포트 삭제

cron 식은 5필드(분 시 일 월 요일), 선택적 초 필드, @daily 등을 지원합니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/finfetch schedule -s AAPL,MSFT --cron "0 18 * * 1-5"
  go run ./cmd/finfetch schedule -s AAPL --screen-cron "30 18 * * 1-5" --dir reports
  go run ./cmd/finfetch schedule run collect -s AAPL,MSFT`,
	RunE: runScheduler,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run [job_name]",
	Short: "특정 작업 즉시 실행 (동기)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobNow,
}

var (
	scheduleCron       string
	scheduleScreenCron string
	scheduleSymbols    []string
	scheduleSources    []string
	scheduleDays       int
	scheduleDir        string
	scheduleFormat     string
	scheduleRetention  time.Duration
	scheduleRetries    int
	scheduleRetryDelay time.Duration
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)

	// Flags (run 서브커맨드와 공유)
	flags := scheduleCmd.PersistentFlags()
	flags.StringVar(&scheduleCron, "cron", "0 18 * * 1-5", "collect 작업 cron 식")
	flags.StringVar(&scheduleScreenCron, "screen-cron", "", "screen 작업 cron 식 (비어 있으면 미등록)")
	flags.StringSliceVarP(&scheduleSymbols, "symbols", "s", nil, "종목 코드 (반복 또는 콤마 구분)")
	flags.StringSliceVar(&scheduleSources, "sources", nil, "데이터 소스 (기본: options의 pipeline.sources)")
	flags.IntVar(&scheduleDays, "days", 0, "수집 기간 일수 (기본: options의 pipeline.days)")
	flags.StringVar(&scheduleDir, "dir", "data", "스냅샷/리포트 저장 디렉터리")
	flags.StringVar(&scheduleFormat, "format", "csv", "screen 리포트 형식 (csv|xlsx|json)")
	flags.DurationVar(&scheduleRetention, "retention", 30*24*time.Hour, "파일 보관 기간 (0 = 정리 안 함)")
	flags.IntVar(&scheduleRetries, "retries", 3, "실패 시 재시도 횟수")
	flags.DurationVar(&scheduleRetryDelay, "retry-delay", time.Minute, "재시도 간격")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintSuccess("Scheduler started")
	PrintInfo("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		PrintList([]string{fmt.Sprintf("%s (next: %s)", jobName, next.Format("2006-01-02 15:04:05"))})
	}
	PrintInfo("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	PrintInfo("Shutting down scheduler...")
	sched.Stop()
	printStats(sched)

	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunNow(args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %.2fs", result.JobName, result.Duration.Seconds()))
	return nil
}

// initScheduler registers collect, screen and cleanup jobs
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	if len(scheduleSymbols) == 0 {
		return nil, fmt.Errorf("--symbols is required")
	}
	format, err := report.ParseFormat(scheduleFormat)
	if err != nil {
		return nil, err
	}
	if format == report.FormatTable {
		return nil, fmt.Errorf("--format table is not a file format")
	}

	sched := scheduler.New(a.logger, scheduler.WithRetry(scheduleRetries, scheduleRetryDelay))

	collectJob := jobs.NewCollectJob(a.orchestrator, jobs.CollectConfig{
		Symbols:  scheduleSymbols,
		Sources:  scheduleSources,
		Days:     scheduleDays,
		Schedule: scheduleCron,
		Dir:      scheduleDir,
	}, a.logger)
	if err := sched.AddJob(collectJob); err != nil {
		return nil, err
	}

	if scheduleScreenCron != "" {
		screenJob := jobs.NewScreenJob(a.orchestrator, jobs.ScreenConfig{
			Symbols:  scheduleSymbols,
			Days:     scheduleDays,
			Schedule: scheduleScreenCron,
			Dir:      scheduleDir,
			Format:   format,
		}, a.logger)
		if err := sched.AddJob(screenJob); err != nil {
			return nil, err
		}
	}

	if scheduleRetention > 0 {
		if err := sched.AddJob(jobs.NewCleanupJob(scheduleDir, scheduleRetention, a.logger)); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func printStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		PrintSeparator()
		PrintKeyValue("Job", jobName, 12)
		PrintKeyValue("Schedule", stat.Schedule, 12)
		PrintKeyValue("Total Runs", fmt.Sprintf("%d", stat.TotalRuns), 12)
		PrintKeyValue("Success", fmt.Sprintf("%d (%.1f%%)", stat.SuccessCount, stat.SuccessRate*100), 12)
		PrintKeyValue("Failures", fmt.Sprintf("%d", stat.FailureCount), 12)
		if stat.LastRun != nil {
			PrintKeyValue("Last Run", stat.LastRun.Format("2006-01-02 15:04:05"), 12)
		}
	}
}
