package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile  string
	optionsFile string
	debugLevel  int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "finfetch",
	Short: "finfetch - 금융 시계열 수집/분석 도구",
	Long: `finfetch Unified CLI

여러 데이터 소스(Yahoo, Polygon, Alpha Vantage, FRED, HTML)에서 일봉 OHLCV를 수집하고
정제 → 기술적/재무 지표 계산 → 스크리닝/랭킹 → 포트폴리오/리스크 분석까지 수행합니다.

Usage:
  go run ./cmd/finfetch [command]

Examples:
  go run ./cmd/finfetch config --show
  go run ./cmd/finfetch collect -s AAPL -s MSFT --days 365
  go run ./cmd/finfetch screen -s AAPL,MSFT,GOOGL --format table
  go run ./cmd/finfetch analyze --input data/snapshot.json --analysis risk
  go run ./cmd/finfetch serve --addr :8089`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&optionsFile, "options", "", "pipeline options YAML (default: built-in)")
	rootCmd.PersistentFlags().IntVar(&debugLevel, "debug-level", 0, "0=clean, 1=basic, 2=detailed, 3=debug, 4=verbose")
}
