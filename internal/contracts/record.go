package contracts

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Bar is one dated OHLCV row
// 결측값은 NaN (JSON에서는 null)
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Source string    `json:"source,omitempty"`
}

// HasMissing reports whether any numeric field is NaN
func (b Bar) HasMissing() bool {
	return math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) ||
		math.IsNaN(b.Close) || math.IsNaN(b.Volume)
}

type barJSON struct {
	Date   time.Time `json:"date"`
	Open   *float64  `json:"open"`
	High   *float64  `json:"high"`
	Low    *float64  `json:"low"`
	Close  *float64  `json:"close"`
	Volume *float64  `json:"volume"`
	Source string    `json:"source,omitempty"`
}

// MarshalJSON encodes NaN fields as null
func (b Bar) MarshalJSON() ([]byte, error) {
	return json.Marshal(barJSON{
		Date:   b.Date,
		Open:   nullable(b.Open),
		High:   nullable(b.High),
		Low:    nullable(b.Low),
		Close:  nullable(b.Close),
		Volume: nullable(b.Volume),
		Source: b.Source,
	})
}

// UnmarshalJSON decodes null fields as NaN
func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw barJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Bar{
		Date:   raw.Date,
		Open:   fromNullable(raw.Open),
		High:   fromNullable(raw.High),
		Low:    fromNullable(raw.Low),
		Close:  fromNullable(raw.Close),
		Volume: fromNullable(raw.Volume),
		Source: raw.Source,
	}
	return nil
}

// Series is a derived column aligned with a record's bars
type Series []float64

// MarshalJSON encodes NaN entries as null
func (s Series) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i, v := range s {
		out[i] = nullable(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null entries as NaN
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		out[i] = fromNullable(v)
	}
	*s = out
	return nil
}

// Last returns the last non-NaN value
func (s Series) Last() (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if !math.IsNaN(s[i]) {
			return s[i], true
		}
	}
	return math.NaN(), false
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// PriceRecord is one symbol's dated OHLCV table plus provenance
// ⭐ SSOT: 파이프라인의 모든 단계는 이 구조를 주고받음
// 파생 컬럼(Derived)은 추가만 되고 OHLCV 원본은 교체되지 않음
type PriceRecord struct {
	Symbol      string                 `json:"symbol"`
	Bars        []Bar                  `json:"bars"`
	Sources     []string               `json:"sources"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Derived     map[string]Series      `json:"derived,omitempty"`
	LastUpdated time.Time              `json:"last_updated"`
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NewPriceRecord creates an empty record for symbol from source
func NewPriceRecord(symbol, source string) *PriceRecord {
	r := &PriceRecord{
		Symbol:      NormalizeSymbol(symbol),
		Bars:        make([]Bar, 0),
		Sources:     make([]string, 0, 1),
		Metadata:    make(map[string]interface{}),
		Derived:     make(map[string]Series),
		LastUpdated: time.Now(),
	}
	if source != "" {
		r.Sources = append(r.Sources, source)
	}
	return r
}

// Len returns the number of bars
func (r *PriceRecord) Len() int {
	return len(r.Bars)
}

// AddSource records a provenance source once
func (r *PriceRecord) AddSource(name string) {
	if r.HasSource(name) {
		return
	}
	r.Sources = append(r.Sources, name)
}

// HasSource reports whether name is in the provenance set
func (r *PriceRecord) HasSource(name string) bool {
	for _, s := range r.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// SetDerived stores a derived column; values must align with bars
func (r *PriceRecord) SetDerived(name string, values []float64) {
	if r.Derived == nil {
		r.Derived = make(map[string]Series)
	}
	r.Derived[name] = Series(values)
}

// SetMeta stores one metadata entry
func (r *PriceRecord) SetMeta(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
}

// Dates returns the bar dates
func (r *PriceRecord) Dates() []time.Time {
	out := make([]time.Time, len(r.Bars))
	for i, b := range r.Bars {
		out[i] = b.Date
	}
	return out
}

// Opens returns the open column
func (r *PriceRecord) Opens() []float64 { return r.column(func(b Bar) float64 { return b.Open }) }

// Highs returns the high column
func (r *PriceRecord) Highs() []float64 { return r.column(func(b Bar) float64 { return b.High }) }

// Lows returns the low column
func (r *PriceRecord) Lows() []float64 { return r.column(func(b Bar) float64 { return b.Low }) }

// Closes returns the close column
func (r *PriceRecord) Closes() []float64 { return r.column(func(b Bar) float64 { return b.Close }) }

// Volumes returns the volume column
func (r *PriceRecord) Volumes() []float64 { return r.column(func(b Bar) float64 { return b.Volume }) }

func (r *PriceRecord) column(get func(Bar) float64) []float64 {
	out := make([]float64, len(r.Bars))
	for i, b := range r.Bars {
		out[i] = get(b)
	}
	return out
}

// Clone returns a deep copy
func (r *PriceRecord) Clone() *PriceRecord {
	if r == nil {
		return nil
	}

	c := &PriceRecord{
		Symbol:      r.Symbol,
		Bars:        append([]Bar(nil), r.Bars...),
		Sources:     append([]string(nil), r.Sources...),
		Metadata:    make(map[string]interface{}, len(r.Metadata)),
		Derived:     make(map[string]Series, len(r.Derived)),
		LastUpdated: r.LastUpdated,
	}
	if c.Bars == nil {
		c.Bars = make([]Bar, 0)
	}
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	for k, v := range r.Derived {
		c.Derived[k] = append(Series(nil), v...)
	}
	return c
}

// SelectRows returns a copy keeping only the bars at idx (in order)
// 파생 컬럼도 같은 인덱스로 재정렬
func (r *PriceRecord) SelectRows(idx []int) *PriceRecord {
	c := r.Clone()
	c.Bars = make([]Bar, len(idx))
	for i, j := range idx {
		c.Bars[i] = r.Bars[j]
	}
	for name, col := range r.Derived {
		if len(col) != len(r.Bars) {
			delete(c.Derived, name)
			continue
		}
		sel := make(Series, len(idx))
		for i, j := range idx {
			sel[i] = col[j]
		}
		c.Derived[name] = sel
	}
	return c
}

// IsSorted reports whether dates are strictly increasing
func (r *PriceRecord) IsSorted() bool {
	for i := 1; i < len(r.Bars); i++ {
		if !r.Bars[i].Date.After(r.Bars[i-1].Date) {
			return false
		}
	}
	return true
}

// QualityScore returns (completeness + date consistency) / 2 in [0, 1]
// completeness: 결측이 아닌 OHLCV 셀 비율, consistency: 중복되지 않은 날짜 비율
func (r *PriceRecord) QualityScore() float64 {
	n := len(r.Bars)
	if n == 0 {
		return 0.0
	}

	missing := 0
	seen := make(map[time.Time]struct{}, n)
	duplicates := 0
	for _, b := range r.Bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) {
				missing++
			}
		}
		if _, ok := seen[b.Date]; ok {
			duplicates++
			continue
		}
		seen[b.Date] = struct{}{}
	}

	completeness := 1.0 - float64(missing)/float64(n*5)
	consistency := 1.0 - float64(duplicates)/float64(n)
	return (completeness + consistency) / 2.0
}
