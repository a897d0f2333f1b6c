package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/finfetch/internal/contracts"
)

// Format output format name
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name (대소문자 무시)
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", contracts.ValidationError{Field: "format", Message: fmt.Sprintf("unknown format %q (table, csv, xlsx, json)", s)}
}

// Columns CSV/XLSX 헤더 (고정 순서)
var Columns = []string{
	"symbol", "current_price", "annualized_return", "total_return",
	"sharpe_ratio", "alpha", "beta", "volatility", "max_drawdown",
	"percent_from_high", "percent_from_low", "rsi", "volume_ratio",
	"high_52w", "low_52w", "sma_20", "sma_50", "data_points",
}

// values returns the numeric columns of a row in Columns order (symbol, data_points 제외)
func values(r contracts.ScreeningRow) []float64 {
	return []float64{
		r.CurrentPrice, r.AnnualizedReturn, r.TotalReturn,
		r.SharpeRatio, r.Alpha, r.Beta, r.Volatility, r.MaxDrawdown,
		r.PercentFromHigh, r.PercentFromLow, r.RSI, r.VolumeRatio,
		r.High52w, r.Low52w, r.SMA20, r.SMA50,
	}
}

// Fixed rounds half away from zero and renders exactly places decimals
// NaN/Inf → "" (decimal은 NaN을 표현하지 못함)
func Fixed(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(int32(places))
}

// Round rounds half away from zero for numeric cells
func Round(v float64, places int) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64(), true
}

// orNA 표 출력용 결측 표시
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
