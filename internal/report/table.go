package report

import (
	"strings"

	"github.com/wonny/finfetch/internal/contracts"
)

// tableHeader 고정폭 표 컬럼
var tableHeader = []string{
	"Symbol", "Price", "Return%", "Sharpe", "Alpha%", "Beta",
	"Volatility%", "Max DD%", "From High%", "From Low%", "RSI", "Vol Ratio",
}

// Table renders rows as a left-aligned fixed-width text table
// 금액/퍼센트/비율 2자리, RSI 0자리, 거래량 비율 1자리 + "x"
func Table(rows []contracts.ScreeningRow) string {
	if len(rows) == 0 {
		return "No results"
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Symbol,
			"$" + orNA(Fixed(r.CurrentPrice, 2)),
			orNA(Fixed(r.AnnualizedReturn, 2)) + "%",
			orNA(Fixed(r.SharpeRatio, 2)),
			orNA(Fixed(r.Alpha, 2)) + "%",
			orNA(Fixed(r.Beta, 2)),
			orNA(Fixed(r.Volatility, 2)) + "%",
			orNA(Fixed(r.MaxDrawdown, 2)) + "%",
			orNA(Fixed(r.PercentFromHigh, 2)) + "%",
			orNA(Fixed(r.PercentFromLow, 2)) + "%",
			orNA(Fixed(r.RSI, 0)),
			orNA(Fixed(r.VolumeRatio, 1)) + "x",
		})
	}

	widths := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		widths[i] = len(h)
	}
	for _, row := range cells {
		for i, c := range row {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	var b strings.Builder
	header := joinPadded(tableHeader, widths)
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(header)))
	for _, row := range cells {
		b.WriteString("\n")
		b.WriteString(joinPadded(row, widths))
	}
	return b.String()
}

func joinPadded(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = c + strings.Repeat(" ", widths[i]-len(c))
	}
	return strings.Join(padded, " | ")
}
