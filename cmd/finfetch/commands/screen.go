package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/internal/report"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "종목 스크리닝",
	Long: `종목별 수익률/샤프/알파/베타/변동성/낙폭/RSI 등을 계산해 스크리닝 표를 출력합니다.

벤치마크(기본 SPY)는 알파/베타 계산을 위해 자동으로 함께 수집됩니다.
options에서 stock_screening이 활성이면 랭킹도 계산되어 redis에 저장됩니다.

Example:
  go run ./cmd/finfetch screen -s AAPL,MSFT,GOOGL
  go run ./cmd/finfetch screen -s AAPL -s MSFT --benchmark QQQ --risk-free-rate 0.04
  go run ./cmd/finfetch screen -s AAPL,MSFT --format xlsx --output screening.xlsx`,
	RunE: runScreen,
}

var (
	screenSymbols   []string
	screenSources   []string
	screenDays      int
	screenBenchmark string
	screenRiskFree  float64
	screenFormat    string
	screenOutput    string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	// Flags
	screenCmd.Flags().StringSliceVarP(&screenSymbols, "symbols", "s", nil, "종목 코드 (반복 또는 콤마 구분)")
	screenCmd.Flags().StringSliceVar(&screenSources, "sources", nil, "데이터 소스 (기본: options의 pipeline.sources)")
	screenCmd.Flags().IntVar(&screenDays, "days", 0, "수집 기간 일수 (기본: options의 pipeline.days)")
	screenCmd.Flags().StringVar(&screenBenchmark, "benchmark", "", "벤치마크 종목 (기본: options의 financial_metrics.benchmark)")
	screenCmd.Flags().Float64Var(&screenRiskFree, "risk-free-rate", 0, "무위험 수익률 연율 (기본: options 값)")
	screenCmd.Flags().StringVarP(&screenFormat, "format", "f", "", "table|csv|xlsx|json (기본: options의 output.default_format)")
	screenCmd.Flags().StringVarP(&screenOutput, "output", "o", "", "출력 파일 (기본: stdout, xlsx는 필수)")
	_ = screenCmd.MarkFlagRequired("symbols")
}

func runScreen(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	formatName := screenFormat
	if formatName == "" {
		formatName = a.opts.Output.Format
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if format == report.FormatXLSX && screenOutput == "" {
		return fmt.Errorf("--output is required for xlsx")
	}

	cfg := a.opts.Processors.FinancialMetrics.Config
	if cmd.Flags().Changed("benchmark") {
		cfg.Benchmark = screenBenchmark
	}
	if cmd.Flags().Changed("risk-free-rate") {
		cfg.RiskFreeRate = screenRiskFree
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	req, err := buildRequest(screenSymbols, screenDays, "", "", a.opts, time.Now())
	if err != nil {
		return err
	}
	req.Sources = screenSources

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.withProgress("screening")
	res, err := a.orchestrator.Screen(ctx, req, cfg)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	PrintResultErrors(res.Result)
	PrintSkipped(res.Skipped)

	writer := report.NewWriter(a.opts.Output.DecimalPlaces)
	ranked := pipeline.Ranking(res.Result)

	if screenOutput != "" {
		if err := writer.WriteFile(screenOutput, format, res.Rows, ranked); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("%d rows written to %s", len(res.Rows), screenOutput))
		return nil
	}

	if err := writer.Write(os.Stdout, format, res.Rows, ranked); err != nil {
		return err
	}
	if format == report.FormatTable && len(ranked) > 0 {
		printRanking(os.Stdout, ranked)
	}
	return nil
}

// printRanking prints the top opportunities under the screening table
func printRanking(w io.Writer, ranked []contracts.RankedRow) {
	const top = 10
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Top opportunities")
	for _, row := range ranked {
		if !row.IsTopRanked(top) {
			continue
		}
		fmt.Fprintf(w, "%3d. %-8s score %s  sharpe %s  return %s%%\n",
			row.Rank, row.Symbol,
			report.Fixed(row.Score, 3), report.Fixed(row.SharpeRatio, 2), report.Fixed(row.AnnualizedReturn, 2))
	}
}
