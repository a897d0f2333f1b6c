package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/internal/scheduler/jobs"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "가격 데이터 수집",
	Long: `소스별 일봉 데이터를 병렬 수집하고 병합/정제 후 JSON 스냅샷으로 저장합니다.

스냅샷은 analyze 명령과 POST /api/analyze/{kind}의 입력으로 사용됩니다.

Example:
  go run ./cmd/finfetch collect -s AAPL -s MSFT --days 365
  go run ./cmd/finfetch collect -s AAPL --sources yahoo,polygon --output data/aapl.json
  go run ./cmd/finfetch collect -s DGS10 --sources fred --from 2023-01-01 --to 2023-12-31`,
	RunE: runCollect,
}

var (
	collectSymbols []string
	collectSources []string
	collectDays    int
	collectFrom    string
	collectTo      string
	collectOutput  string
)

func init() {
	rootCmd.AddCommand(collectCmd)

	// Flags
	collectCmd.Flags().StringSliceVarP(&collectSymbols, "symbols", "s", nil, "종목 코드 (반복 또는 콤마 구분)")
	collectCmd.Flags().StringSliceVar(&collectSources, "sources", nil, "데이터 소스 (기본: options의 pipeline.sources)")
	collectCmd.Flags().IntVar(&collectDays, "days", 0, "수집 기간 일수 (기본: options의 pipeline.days)")
	collectCmd.Flags().StringVar(&collectFrom, "from", "", "시작일 YYYY-MM-DD (--days보다 우선)")
	collectCmd.Flags().StringVar(&collectTo, "to", "", "종료일 YYYY-MM-DD (기본: 오늘)")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "스냅샷 경로 (기본: data/snapshot_<time>.json)")
	_ = collectCmd.MarkFlagRequired("symbols")
}

func runCollect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	req, err := buildRequest(collectSymbols, collectDays, collectFrom, collectTo, a.opts, now)
	if err != nil {
		return err
	}
	req.Sources = collectSources
	req.Order = []string{options.ProcessorCleaner}

	PrintRunHeader(RunMetadata{Command: "Collect", From: req.From, To: req.To, Symbols: req.Symbols})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.withProgress("collecting")
	result, err := a.orchestrator.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	PrintResultErrors(result)
	if !result.Success {
		return fmt.Errorf("collect: no data for any symbol")
	}

	path := collectOutput
	if path == "" {
		path = jobs.SnapshotPath("data", now)
	}
	snapshot := pipeline.NewSnapshot(result)
	if err := snapshot.Save(path); err != nil {
		return err
	}

	for _, symbol := range snapshot.Symbols {
		PrintKeyValue(symbol, fmt.Sprintf("%d rows", snapshot.Data[symbol].Len()), 8)
	}
	if missing, ok := result.Metadata["missing_symbols"].([]string); ok && len(missing) > 0 {
		PrintWarning("No data: " + strings.Join(missing, ", "))
	}
	PrintSuccess(fmt.Sprintf("Run %s saved to %s (%.2fs)", result.RunID, path, result.ProcessingTime.Seconds()))
	return nil
}

// buildRequest resolves symbols and the date range from flags
// --from/--to가 있으면 --days보다 우선
func buildRequest(symbols []string, days int, from, to string, opts *options.Options, now time.Time) (pipeline.Request, error) {
	if days <= 0 {
		days = opts.Pipeline.Days
	}
	req := pipeline.NewRequest(symbols, days, now)

	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return req, fmt.Errorf("invalid --to %q: %w", to, err)
		}
		req.To = t
		req.From = t.AddDate(0, 0, -days)
	}
	if from != "" {
		f, err := time.Parse("2006-01-02", from)
		if err != nil {
			return req, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		req.From = f
	}
	return req, nil
}
