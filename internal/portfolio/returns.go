package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/risk"
)

// ReturnMatrix holds pct-change returns aligned on common dates
// Returns[t][i] = 날짜 t의 Symbols[i] 수익률
type ReturnMatrix struct {
	Symbols []string
	Dates   []time.Time
	Returns [][]float64
}

// Rows returns the number of aligned observations
func (m *ReturnMatrix) Rows() int {
	return len(m.Returns)
}

// Column returns one symbol's aligned returns
func (m *ReturnMatrix) Column(i int) []float64 {
	out := make([]float64, len(m.Returns))
	for t, row := range m.Returns {
		out[t] = row[i]
	}
	return out
}

// AlignReturns builds the return matrix over dates every symbol shares
// 종가가 없는 심볼은 제외, 심볼 순서는 정렬
func AlignReturns(data map[string]*contracts.PriceRecord, exclude func(string) bool) *ReturnMatrix {
	symbols := make([]string, 0, len(data))
	series := make(map[string]map[time.Time]float64, len(data))

	for symbol, record := range data {
		if record == nil || (exclude != nil && exclude(symbol)) {
			continue
		}
		rets := pctChange(record)
		if len(rets) == 0 {
			continue
		}
		symbols = append(symbols, symbol)
		series[symbol] = rets
	}
	sort.Strings(symbols)

	m := &ReturnMatrix{Symbols: symbols}
	if len(symbols) == 0 {
		return m
	}

	// 첫 심볼 날짜 중 모든 심볼에 존재하는 날짜만
	for date := range series[symbols[0]] {
		common := true
		for _, s := range symbols[1:] {
			if _, ok := series[s][date]; !ok {
				common = false
				break
			}
		}
		if common {
			m.Dates = append(m.Dates, date)
		}
	}
	sort.Slice(m.Dates, func(i, j int) bool { return m.Dates[i].Before(m.Dates[j]) })

	m.Returns = make([][]float64, len(m.Dates))
	for t, date := range m.Dates {
		row := make([]float64, len(symbols))
		for i, s := range symbols {
			row[i] = series[s][date]
		}
		m.Returns[t] = row
	}
	return m
}

// pctChange close[t]/close[t-1] - 1 keyed by date; NaN 결과는 제외
func pctChange(record *contracts.PriceRecord) map[time.Time]float64 {
	out := make(map[time.Time]float64, record.Len())
	for i := 1; i < record.Len(); i++ {
		prev, cur := record.Bars[i-1].Close, record.Bars[i].Close
		r := cur/prev - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out[record.Bars[i].Date] = r
	}
	return out
}

// WeightedReturns combines each row with weights
func (m *ReturnMatrix) WeightedReturns(weights []float64) []float64 {
	out := make([]float64, len(m.Returns))
	for t, row := range m.Returns {
		var sum float64
		for i, r := range row {
			sum += r * weights[i]
		}
		out[t] = sum
	}
	return out
}

// MeanReturns annualized mean return per symbol (mean × 252)
func (m *ReturnMatrix) MeanReturns() []float64 {
	out := make([]float64, len(m.Symbols))
	for i := range m.Symbols {
		out[i] = risk.Mean(m.Column(i)) * risk.TradingDaysPerYear
	}
	return out
}

// Covariance annualized sample covariance matrix (cov × 252)
func (m *ReturnMatrix) Covariance() [][]float64 {
	n := len(m.Symbols)
	cols := make([][]float64, n)
	for i := range cols {
		cols[i] = m.Column(i)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := risk.Covariance(cols[i], cols[j]) * risk.TradingDaysPerYear
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov
}

// AvgCorrelation mean of the upper-triangle pairwise correlations
// 정의되는 쌍이 없으면 0
func (m *ReturnMatrix) AvgCorrelation() float64 {
	n := len(m.Symbols)
	var sum float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := risk.Correlation(m.Column(i), m.Column(j))
			if math.IsNaN(c) {
				continue
			}
			sum += c
			pairs++
		}
	}
	if pairs == 0 {
		return 0.0
	}
	return sum / float64(pairs)
}

// =============================================================================
// Matrix helpers
// =============================================================================

// matVec Σw
func matVec(a [][]float64, v []float64) []float64 {
	out := make([]float64, len(a))
	for i, row := range a {
		for j, x := range row {
			out[i] += x * v[j]
		}
	}
	return out
}

// quadForm wᵀΣw
func quadForm(a [][]float64, w []float64) float64 {
	var sum float64
	for i, x := range matVec(a, w) {
		sum += w[i] * x
	}
	return sum
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// solve Gauss-Jordan elimination with partial pivoting for Ax = b
// 피벗이 상대 허용오차 이하이면 ErrSingularMatrix
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	scale := 0.0
	for i := range a {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
		scale = math.Max(scale, math.Abs(a[i][i]))
	}
	tol := 1e-12 * scale
	if scale == 0 {
		return nil, contracts.ErrSingularMatrix
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) <= tol || math.IsNaN(m[pivot][col]) {
			return nil, contracts.ErrSingularMatrix
		}
		m[col], m[pivot] = m[pivot], m[col]

		p := m[col][col]
		for k := col; k <= n; k++ {
			m[col][k] /= p
		}
		for r := 0; r < n; r++ {
			if r == col || m[r][col] == 0 {
				continue
			}
			f := m[r][col]
			for k := col; k <= n; k++ {
				m[r][k] -= f * m[col][k]
			}
		}
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = m[i][n]
	}
	return x, nil
}
