package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/finfetch/internal/contracts"
)

// Writer renders screening rows in the configured format
// ⭐ SSOT: 출력 반올림은 여기서만 (계산 단계는 원값 유지)
type Writer struct {
	places int
}

// NewWriter creates a writer that rounds CSV/XLSX numbers to places decimals
func NewWriter(places int) *Writer {
	if places < 0 {
		places = 0
	}
	return &Writer{places: places}
}

// Write renders rows to w in format
func (wr *Writer) Write(w io.Writer, format Format, rows []contracts.ScreeningRow, ranked []contracts.RankedRow) error {
	switch format {
	case FormatTable:
		_, err := fmt.Fprintln(w, Table(rows))
		return err
	case FormatCSV:
		return wr.WriteCSV(w, rows)
	case FormatXLSX:
		return wr.WriteXLSX(w, rows, ranked)
	case FormatJSON:
		return WriteJSON(w, map[string]interface{}{
			"screening": wr.Records(rows),
			"ranking":   ranked,
		})
	default:
		return contracts.ValidationError{Field: "format", Message: fmt.Sprintf("unknown format %q", format)}
	}
}

// WriteFile renders rows into path (파일 생성/덮어쓰기)
func (wr *Writer) WriteFile(path string, format Format, rows []contracts.ScreeningRow, ranked []contracts.RankedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := wr.Write(f, format, rows, ranked); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// =============================================================================
// CSV
// =============================================================================

// WriteCSV writes the header and one line per row
// 수치는 소수점 places 자리, data_points는 정수, 결측은 빈 칸
func (wr *Writer) WriteCSV(w io.Writer, rows []contracts.ScreeningRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	for _, r := range rows {
		record := make([]string, 0, len(Columns))
		record = append(record, r.Symbol)
		for _, v := range values(r) {
			record = append(record, Fixed(v, wr.places))
		}
		record = append(record, strconv.Itoa(r.DataPoints))
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// =============================================================================
// XLSX
// =============================================================================

const (
	sheetScreening = "Screening"
	sheetRanking   = "Ranking"
)

// WriteXLSX writes a workbook with a Screening sheet (and Ranking when ranked is set)
func (wr *Writer) WriteXLSX(w io.Writer, rows []contracts.ScreeningRow, ranked []contracts.RankedRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetScreening); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := wr.writeRow(f, sheetScreening, 1, header, bold); err != nil {
		return err
	}

	for i, r := range rows {
		line := make([]interface{}, 0, len(Columns))
		line = append(line, r.Symbol)
		for _, v := range values(r) {
			line = append(line, wr.cell(v))
		}
		line = append(line, r.DataPoints)
		if err := wr.writeRow(f, sheetScreening, i+2, line, 0); err != nil {
			return err
		}
	}

	if len(ranked) > 0 {
		if err := wr.writeRanking(f, ranked, bold); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func (wr *Writer) writeRanking(f *excelize.File, ranked []contracts.RankedRow, bold int) error {
	if _, err := f.NewSheet(sheetRanking); err != nil {
		return err
	}

	header := []interface{}{"rank", "symbol", "opportunity_score", "sharpe_ratio", "annualized_return", "pct_from_52w_high"}
	if err := wr.writeRow(f, sheetRanking, 1, header, bold); err != nil {
		return err
	}
	for i, r := range ranked {
		line := []interface{}{
			r.Rank, r.Symbol, wr.cell(r.Score),
			wr.cell(r.SharpeRatio), wr.cell(r.AnnualizedReturn), wr.cell(r.PctFrom52wHigh),
		}
		if err := wr.writeRow(f, sheetRanking, i+2, line, 0); err != nil {
			return err
		}
	}
	return nil
}

// writeRow writes values from column A; style 0 means default
func (wr *Writer) writeRow(f *excelize.File, sheet string, row int, line []interface{}, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &line); err != nil {
		return err
	}
	if style == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(line), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, start, end, style)
}

// cell rounds a numeric cell; NaN/Inf → 빈 셀
func (wr *Writer) cell(v float64) interface{} {
	rounded, ok := Round(v, wr.places)
	if !ok {
		return nil
	}
	return rounded
}

// =============================================================================
// JSON
// =============================================================================

// Records maps rows to Columns keys; NaN은 null (encoding/json은 NaN 미지원)
func (wr *Writer) Records(rows []contracts.ScreeningRow) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]interface{}, len(Columns))
		m["symbol"] = r.Symbol
		for i, v := range values(r) {
			m[Columns[i+1]] = wr.cell(v)
		}
		m["data_points"] = r.DataPoints
		out = append(out, m)
	}
	return out
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
