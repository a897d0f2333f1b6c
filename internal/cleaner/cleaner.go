package cleaner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// FillMethod 결측값 처리 방식
type FillMethod string

const (
	FillForward     FillMethod = "forward"
	FillBackward    FillMethod = "backward"
	FillInterpolate FillMethod = "interpolate"
	FillDrop        FillMethod = "drop"
)

// Config defines cleaning behaviour
type Config struct {
	FillMethod       FillMethod `yaml:"fill_method" json:"fill_method"`
	RemoveOutliers   bool       `yaml:"remove_outliers" json:"remove_outliers"`
	OutlierThreshold float64    `yaml:"outlier_threshold" json:"outlier_threshold"` // |z| 초과 시 제거
}

// DefaultConfig returns forward fill with 3σ outlier removal
func DefaultConfig() Config {
	return Config{
		FillMethod:       FillForward,
		RemoveOutliers:   true,
		OutlierThreshold: 3.0,
	}
}

// Cleaner repairs raw OHLCV records
// ⭐ SSOT: 정제 순서는 dedup → sort → fill → outlier → repair 고정
type Cleaner struct {
	config Config
	logger *logger.Logger
}

// New creates a new cleaner
func New(config Config, log *logger.Logger) *Cleaner {
	return &Cleaner{
		config: config,
		logger: log,
	}
}

// Name returns the processor name
func (c *Cleaner) Name() string {
	return "data_cleaner"
}

// ValidateConfig checks fill method and outlier threshold
func (c *Cleaner) ValidateConfig() bool {
	switch c.config.FillMethod {
	case FillForward, FillBackward, FillInterpolate, FillDrop:
	default:
		c.logger.WithField("fill_method", c.config.FillMethod).Error("Invalid fill_method")
		return false
	}

	if !(c.config.OutlierThreshold > 0) {
		c.logger.WithField("outlier_threshold", c.config.OutlierThreshold).Error("Invalid outlier_threshold")
		return false
	}

	return true
}

// Process cleans every record; a failing symbol keeps its original data
func (c *Cleaner) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	startTime := time.Now()
	out := &contracts.StageOutput{
		Data:     make(map[string]*contracts.PriceRecord, len(data)),
		Metadata: make(map[string]interface{}, len(data)),
	}

	for symbol, record := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cleaned := c.Clean(record)
		out.Data[symbol] = cleaned
		out.Metadata[symbol] = map[string]interface{}{
			"original_records": record.Len(),
			"cleaned_records":  cleaned.Len(),
			"quality_score":    cleaned.QualityScore(),
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"symbols":  len(data),
		"duration": time.Since(startTime),
	}).Info("Data cleaning completed")

	return out, nil
}

// Clean runs every cleaning step on one record
// 실패(패닉 포함) 시 원본을 그대로 반환
func (c *Cleaner) Clean(record *contracts.PriceRecord) (result *contracts.PriceRecord) {
	if record == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(map[string]interface{}{
				"symbol": record.Symbol,
				"panic":  fmt.Sprint(r),
			}).Error("Cleaning failed, keeping original record")
			result = record
		}
	}()

	cleaned, err := c.clean(record)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"symbol": record.Symbol,
			"error":  err.Error(),
		}).Error("Cleaning failed, keeping original record")
		return record
	}
	return cleaned
}

func (c *Cleaner) clean(record *contracts.PriceRecord) (*contracts.PriceRecord, error) {
	r := dropDuplicates(record)
	r = sortByDate(r)

	var err error
	if r, err = c.fillMissing(r); err != nil {
		return nil, fmt.Errorf("fill missing: %w", err)
	}

	if c.config.RemoveOutliers {
		r = c.removeOutliers(r)
	}

	c.repair(r)
	r.SetMeta("quality_score", r.QualityScore())
	return r, nil
}

// =============================================================================
// Steps
// =============================================================================

// dropDuplicates keeps the first of rows with identical date and OHLCV
func dropDuplicates(record *contracts.PriceRecord) *contracts.PriceRecord {
	type rowKey struct {
		date                           time.Time
		open, high, low, close, volume uint64
	}

	keep := make([]int, 0, record.Len())
	seen := make(map[rowKey]struct{}, record.Len())
	for i, b := range record.Bars {
		k := rowKey{
			date:   b.Date,
			open:   floatKey(b.Open),
			high:   floatKey(b.High),
			low:    floatKey(b.Low),
			close:  floatKey(b.Close),
			volume: floatKey(b.Volume),
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	return record.SelectRows(keep)
}

// floatKey NaN끼리는 같은 값으로 취급
func floatKey(v float64) uint64 {
	if math.IsNaN(v) {
		return math.Float64bits(math.NaN())
	}
	return math.Float64bits(v)
}

// sortByDate stable ascending sort
func sortByDate(record *contracts.PriceRecord) *contracts.PriceRecord {
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

func (c *Cleaner) fillMissing(r *contracts.PriceRecord) (*contracts.PriceRecord, error) {
	switch c.config.FillMethod {
	case FillForward:
		mapColumns(r, forwardFill)
	case FillBackward:
		mapColumns(r, backwardFill)
	case FillInterpolate:
		mapColumns(r, interpolate)
	case FillDrop:
		keep := make([]int, 0, r.Len())
		for i, b := range r.Bars {
			if !b.HasMissing() {
				keep = append(keep, i)
			}
		}
		if len(keep) != r.Len() {
			r = r.SelectRows(keep)
		}
	default:
		return nil, fmt.Errorf("unknown fill method %q", c.config.FillMethod)
	}
	return r, nil
}

// removeOutliers drops rows with |z| > threshold, one column at a time
// 컬럼 순서: open, high, low, close, volume (직전 컬럼 제거 후 통계 재계산)
func (c *Cleaner) removeOutliers(r *contracts.PriceRecord) *contracts.PriceRecord {
	for _, col := range columns {
		values := col.get(r)
		mean, std, ok := meanStd(values)
		if !ok || std == 0 {
			continue
		}

		keep := make([]int, 0, len(values))
		for i, v := range values {
			// NaN은 z-score가 정의되지 않으므로 유지
			if !math.IsNaN(v) && math.Abs(v-mean)/std > c.config.OutlierThreshold {
				continue
			}
			keep = append(keep, i)
		}

		if removed := len(values) - len(keep); removed > 0 {
			c.logger.WithFields(map[string]interface{}{
				"symbol":  r.Symbol,
				"column":  col.name,
				"removed": removed,
			}).Info("Removing outliers")
			r = r.SelectRows(keep)
		}
	}
	return r
}

// repair fixes negative prices and OHLC violations in place
func (c *Cleaner) repair(r *contracts.PriceRecord) {
	negatives, highFixes, lowFixes := 0, 0, 0

	for i := range r.Bars {
		b := &r.Bars[i]
		for _, p := range []*float64{&b.Open, &b.High, &b.Low, &b.Close} {
			if *p < 0 {
				*p = math.NaN()
				negatives++
			}
		}

		// NaN 비교는 항상 false이므로 결측 행은 수정되지 않음
		if upper := nanMax(b.Open, b.Close); b.High < upper {
			b.High = upper
			highFixes++
		}
		if lower := nanMin(b.Open, b.Close); b.Low > lower {
			b.Low = lower
			lowFixes++
		}
	}

	if negatives+highFixes+lowFixes > 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol":          r.Symbol,
			"negative_prices": negatives,
			"high_violations": highFixes,
			"low_violations":  lowFixes,
		}).Warn("Repaired price consistency violations")
	}
}
