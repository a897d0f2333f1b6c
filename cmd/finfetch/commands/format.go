package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// 상태 메시지는 stderr, 결과물(표/CSV/JSON)은 stdout
// ═══════════════════════════════════════════════════════════

var status io.Writer = os.Stderr

// RunMetadata holds pipeline run metadata
type RunMetadata struct {
	RunID   string
	Command string
	From    time.Time
	To      time.Time
	Symbols []string
}

// PrintRunHeader prints a formatted run header
func PrintRunHeader(meta RunMetadata) {
	fmt.Fprintln(status)
	PrintDoubleSeparator()
	fmt.Fprintf(status, "  %s\n", meta.Command)
	PrintSeparator()
	if meta.RunID != "" {
		fmt.Fprintf(status, "  Run ID    : %s\n", meta.RunID)
	}
	fmt.Fprintf(status, "  Period    : %s ~ %s\n", meta.From.Format("2006-01-02"), meta.To.Format("2006-01-02"))
	fmt.Fprintf(status, "  Symbols   : %s\n", strings.Join(meta.Symbols, ", "))
	PrintSeparator()
}

// PrintResultErrors prints the run's error list as warnings
func PrintResultErrors(result *contracts.ProcessingResult) {
	for _, e := range result.Errors {
		PrintWarning(e)
	}
}

// PrintSkipped prints skipped symbols with their reasons
func PrintSkipped(skipped map[string]string) {
	symbols := make([]string, 0, len(skipped))
	for symbol := range skipped {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		PrintWarning(fmt.Sprintf("%s skipped: %s", symbol, skipped[symbol]))
	}
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Fprintln(status, "───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(status, "═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(status, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(status, "✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintf(status, "ℹ️  %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(status, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(status, "   • %s\n", item)
	}
}
