package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// Method 동일 날짜 행 병합 방식
type Method string

const (
	MethodWeightedAverage Method = "weighted_average" // 가격 평균
	MethodLatest          Method = "latest"           // 마지막에 추가된 소스 우선
	MethodSourcePriority  Method = "source_priority"  // 우선순위 목록 순
)

// Config defines aggregation behaviour
// Method가 weighted_average가 아니면 ConflictResolution이 같은 날짜 가격 규칙을 정함
// 거래량은 어떤 규칙이든 합산
type Config struct {
	Method             Method   `yaml:"aggregation_method" json:"aggregation_method"`
	ConflictResolution Method   `yaml:"conflict_resolution" json:"conflict_resolution"`
	SourcePriority     []string `yaml:"source_priority" json:"source_priority"` // 앞일수록 우선
}

// DefaultConfig returns weighted average aggregation
func DefaultConfig() Config {
	return Config{
		Method:             MethodWeightedAverage,
		ConflictResolution: MethodLatest,
		SourcePriority:     []string{"polygon", "yahoo", "alpha_vantage", "html", "fred", "mock"},
	}
}

// Aggregator merges same-date rows coming from different sources
// ⭐ SSOT: 멀티소스 행 병합 규칙은 여기서만
type Aggregator struct {
	config Config
	logger *logger.Logger
}

// New creates a new aggregator
func New(config Config, log *logger.Logger) *Aggregator {
	return &Aggregator{config: config, logger: log}
}

// Name returns the processor name
func (a *Aggregator) Name() string {
	return "data_aggregator"
}

// ValidateConfig checks method and conflict resolution
func (a *Aggregator) ValidateConfig() bool {
	if !isValidMethod(a.config.Method) {
		a.logger.WithField("aggregation_method", a.config.Method).Error("Invalid aggregation_method")
		return false
	}
	if !isValidMethod(a.config.ConflictResolution) {
		a.logger.WithField("conflict_resolution", a.config.ConflictResolution).Error("Invalid conflict_resolution")
		return false
	}
	return true
}

func isValidMethod(m Method) bool {
	switch m {
	case MethodWeightedAverage, MethodLatest, MethodSourcePriority:
		return true
	}
	return false
}

// Process aggregates every multi-source record
func (a *Aggregator) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	startTime := time.Now()
	out := &contracts.StageOutput{
		Data:     make(map[string]*contracts.PriceRecord, len(data)),
		Metadata: make(map[string]interface{}, len(data)),
	}

	for symbol, record := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		aggregated, err := a.Aggregate(record)
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Error("Aggregation failed, keeping original record")
			aggregated = record
		}
		out.Data[symbol] = aggregated
		out.Metadata[symbol] = map[string]interface{}{
			"aggregation_method": string(a.config.Method),
			"conflict_policy":    string(a.policy()),
			"sources_aggregated": len(record.Sources),
			"original_records":   record.Len(),
			"aggregated_records": aggregated.Len(),
			"quality_score":      aggregated.QualityScore(),
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"symbols":  len(data),
		"method":   a.config.Method,
		"duration": time.Since(startTime),
	}).Info("Data aggregation completed")

	return out, nil
}

// Aggregate groups rows by date and resolves them with the configured method
// 단일 소스 레코드는 정렬만 하고 그대로 반환
func (a *Aggregator) Aggregate(record *contracts.PriceRecord) (*contracts.PriceRecord, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", contracts.ErrNoData)
	}
	if !isValidMethod(a.config.Method) {
		return nil, fmt.Errorf("%w: aggregation_method %q", contracts.ErrInvalidConfig, a.config.Method)
	}

	if len(record.Sources) <= 1 {
		return sortedCopy(record), nil
	}

	groups, order := groupByDate(record.Bars)
	result := record.Clone()
	result.Bars = make([]contracts.Bar, 0, len(order))
	// 행 수가 바뀌므로 파생 컬럼은 유지할 수 없음
	result.Derived = make(map[string]contracts.Series)

	for _, date := range order {
		rows := groups[date]
		var merged contracts.Bar
		switch a.policy() {
		case MethodLatest:
			merged = rows[len(rows)-1]
		case MethodSourcePriority:
			merged = a.highestPriority(rows)
		default:
			merged = averageRows(rows)
		}
		merged.Date = date
		merged.Volume = nanSum(rows, func(b contracts.Bar) float64 { return b.Volume })
		result.Bars = append(result.Bars, merged)
	}

	result.SetMeta("quality_score", result.QualityScore())
	return result, nil
}

// policy returns the rule applied to same-date price columns
func (a *Aggregator) policy() Method {
	if a.config.Method == MethodWeightedAverage || !isValidMethod(a.config.ConflictResolution) {
		return MethodWeightedAverage
	}
	return a.config.ConflictResolution
}

// highestPriority picks the row whose source ranks first in SourcePriority
// 목록에 없는 소스는 뒤로, 동순위면 나중에 추가된 행
func (a *Aggregator) highestPriority(rows []contracts.Bar) contracts.Bar {
	rank := func(source string) int {
		for i, s := range a.config.SourcePriority {
			if s == source {
				return i
			}
		}
		return len(a.config.SourcePriority)
	}

	best := rows[0]
	bestRank := rank(best.Source)
	for _, row := range rows[1:] {
		if r := rank(row.Source); r <= bestRank {
			best, bestRank = row, r
		}
	}
	return best
}

// averageRows mean of prices and sum of volume, ignoring missing values
func averageRows(rows []contracts.Bar) contracts.Bar {
	if len(rows) == 1 {
		return rows[0]
	}

	sources := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Source != "" {
			sources = append(sources, r.Source)
		}
	}

	return contracts.Bar{
		Open:   nanMean(rows, func(b contracts.Bar) float64 { return b.Open }),
		High:   nanMean(rows, func(b contracts.Bar) float64 { return b.High }),
		Low:    nanMean(rows, func(b contracts.Bar) float64 { return b.Low }),
		Close:  nanMean(rows, func(b contracts.Bar) float64 { return b.Close }),
		Volume: nanSum(rows, func(b contracts.Bar) float64 { return b.Volume }),
		Source: strings.Join(sources, "+"),
	}
}

func groupByDate(bars []contracts.Bar) (map[time.Time][]contracts.Bar, []time.Time) {
	groups := make(map[time.Time][]contracts.Bar)
	order := make([]time.Time, 0)
	for _, b := range bars {
		if _, ok := groups[b.Date]; !ok {
			order = append(order, b.Date)
		}
		groups[b.Date] = append(groups[b.Date], b)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	return groups, order
}

func sortedCopy(record *contracts.PriceRecord) *contracts.PriceRecord {
	if record.IsSorted() {
		return record
	}
	idx := make([]int, record.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return record.Bars[idx[a]].Date.Before(record.Bars[idx[b]].Date)
	})
	return record.SelectRows(idx)
}

func nanMean(rows []contracts.Bar, get func(contracts.Bar) float64) float64 {
	var sum float64
	n := 0
	for _, r := range rows {
		if v := get(r); !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func nanSum(rows []contracts.Bar, get func(contracts.Bar) float64) float64 {
	var sum float64
	for _, r := range rows {
		if v := get(r); !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}
