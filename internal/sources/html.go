package sources

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/httputil"
	"github.com/wonny/finfetch/pkg/logger"
)

// HTMLTableSource scrapes a price-history HTML table
// 헤더: Date | Open | High | Low | Close | (Adj Close) | Volume
type HTMLTableSource struct {
	base
	httpClient *httputil.Client
}

// NewHTMLTableSource creates an HTML history table adapter
func NewHTMLTableSource(cfg contracts.SourceConfig, log *logger.Logger) *HTMLTableSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finance.yahoo.com"
	}
	return &HTMLTableSource{
		base:       newBase(cfg, log),
		httpClient: newHTTPClient(cfg, log),
	}
}

// WithHTTPClient replaces the HTTP client
func (s *HTMLTableSource) WithHTTPClient(c *httputil.Client) *HTMLTableSource {
	s.httpClient = c
	return s
}

// Collect scrapes every symbol's history page over [from, to]
func (s *HTMLTableSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	return s.collect(ctx, symbols, from, to, s.fetch)
}

func (s *HTMLTableSource) fetch(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("filter", "history")

	fullURL := fmt.Sprintf("%s/quote/%s/history?%s", s.config.BaseURL, url.PathEscape(symbol), params.Encode())

	body, err := s.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	return parseHistoryTable(body, from, to)
}

// historyDateLayouts accepted date cell formats
var historyDateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"January 2, 2006",
	"2006.01.02",
	"01/02/2006",
}

// parseHistoryTable finds the first table whose header has Date and Close
// 배당/분할 행처럼 셀 수가 부족한 행은 건너뜀
func parseHistoryTable(html []byte, from, to time.Time) ([]contracts.Bar, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}

	var bars []contracts.Bar
	found := false

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := headerColumns(table)
		if _, ok := cols["date"]; !ok {
			return true
		}
		if _, ok := cols["close"]; !ok {
			return true
		}
		found = true

		cell := func(cells *goquery.Selection, name string) float64 {
			idx, ok := cols[name]
			if !ok || idx >= cells.Length() {
				return math.NaN()
			}
			return parseNumber(cells.Eq(idx).Text())
		}

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < len(cols) {
				return
			}

			date, ok := parseHistoryDate(cells.Eq(cols["date"]).Text())
			if !ok || !inRange(date, from, to) {
				return
			}

			bars = append(bars, contracts.Bar{
				Date:   date,
				Open:   cell(cells, "open"),
				High:   cell(cells, "high"),
				Low:    cell(cells, "low"),
				Close:  cell(cells, "close"),
				Volume: cell(cells, "volume"),
			})
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("history table: %w", contracts.ErrNoData)
	}
	return bars, nil
}

// headerColumns maps normalized header names to column index
// "Close*" → close, "Adj Close**" → adj_close
func headerColumns(table *goquery.Selection) map[string]int {
	cols := make(map[string]int)
	table.Find("th").Each(func(i int, th *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(th.Text()))
		name = strings.TrimRight(name, "*")
		name = strings.TrimSpace(name)
		if strings.HasPrefix(name, "adj") {
			name = "adj_close"
		}
		if _, exists := cols[name]; !exists {
			cols[name] = i
		}
	})
	return cols
}

func parseHistoryDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range historyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber parses "1,234.50"; 빈 값, "-", "null"은 NaN
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || s == "." || strings.EqualFold(s, "null") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
