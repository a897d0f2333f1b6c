package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/internal/report"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "스냅샷 분석",
	Long: `collect로 저장한 스냅샷에 성과/리스크/포트폴리오 분석을 실행합니다.

Analysis:
  performance - 기간별(30/90/252/504일) 수익률, 변동성, 샤프, 낙폭
  risk        - VaR/CVaR, 하방편차, 왜도/첨도, 상관행렬
  portfolio   - 동일가중/최소분산 배분, 기여도, 몬테카를로

Example:
  go run ./cmd/finfetch analyze --input data/snapshot.json --analysis risk
  go run ./cmd/finfetch analyze --input data/snapshot.json --analysis portfolio --json`,
	RunE: runAnalyze,
}

var (
	analyzeInput string
	analyzeKind  string
	analyzeJSON  bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Flags
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "", "collect 스냅샷 JSON 경로")
	analyzeCmd.Flags().StringVarP(&analyzeKind, "analysis", "a", "performance", "performance|risk|portfolio")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "텍스트 요약 대신 JSON 출력")
	_ = analyzeCmd.MarkFlagRequired("input")
}

// summarizer is implemented by every analysis report
type summarizer interface {
	ToSummary() string
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, err := pipeline.AnalysisProcessor(analyzeKind)
	if err != nil {
		return err
	}

	snapshot, err := pipeline.LoadSnapshot(analyzeInput)
	if err != nil {
		return fmt.Errorf("load %s: %w", analyzeInput, err)
	}
	PrintInfo(fmt.Sprintf("Snapshot %s: %d symbols", snapshot.RunID, len(snapshot.Data)))

	meta, err := a.orchestrator.Analyze(context.Background(), snapshot.Data, name)
	if err != nil {
		return err
	}

	if analyzeJSON {
		return report.WriteJSON(os.Stdout, meta)
	}

	keys := make([]string, 0, len(meta))
	for key := range meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if s, ok := meta[key].(summarizer); ok {
			fmt.Print(s.ToSummary())
			continue
		}
		if err := report.WriteJSON(os.Stdout, map[string]interface{}{key: meta[key]}); err != nil {
			return err
		}
	}
	return nil
}
