package risk

import "math"

// =============================================================================
// Descriptive Statistics (NaN은 모두 제외하고 계산)
// =============================================================================

// Mean 평균 계산
func Mean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// StdDev 표본 표준편차 (n-1)
func StdDev(values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) < 2 {
		return 0
	}
	mean := Mean(clean)
	var sumSq float64
	for _, v := range clean {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(clean)-1))
}

// Percentile 백분위수 계산 (p: 0-100, 선형 보간)
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// 선형 보간
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Skewness 표본 왜도 (bias-adjusted Fisher-Pearson G1)
// n < 3 또는 분산 0이면 0
func Skewness(values []float64) float64 {
	clean := dropNaN(values)
	n := float64(len(clean))
	if n < 3 {
		return 0
	}

	mean := Mean(clean)
	var m2, m3 float64
	for _, v := range clean {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}

	g1 := m3 / math.Pow(m2, 1.5)
	return math.Sqrt(n*(n-1)) / (n - 2) * g1
}

// Kurtosis 표본 초과 첨도 (bias-adjusted G2, 정규분포=0)
// n < 4 또는 분산 0이면 0
func Kurtosis(values []float64) float64 {
	clean := dropNaN(values)
	n := float64(len(clean))
	if n < 4 {
		return 0
	}

	mean := Mean(clean)
	var s2, s4 float64
	for _, v := range clean {
		d := v - mean
		s2 += d * d
		s4 += d * d * d * d
	}
	if s2 == 0 {
		return 0
	}

	a := (n + 1) * n * (n - 1) / ((n - 2) * (n - 3))
	b := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return a*s4/(s2*s2) - b
}

// Covariance 표본 공분산 (길이가 같은 두 시계열, NaN 쌍은 제외)
func Covariance(x, y []float64) float64 {
	xs, ys := pairwise(x, y)
	if len(xs) < 2 {
		return 0
	}
	mx, my := Mean(xs), Mean(ys)
	var sum float64
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)-1)
}

// Variance 표본 분산
func Variance(values []float64) float64 {
	s := StdDev(values)
	return s * s
}

// Correlation 피어슨 상관계수 (분산 0이면 0)
func Correlation(x, y []float64) float64 {
	xs, ys := pairwise(x, y)
	sx, sy := StdDev(xs), StdDev(ys)
	if sx == 0 || sy == 0 {
		return 0
	}
	return Covariance(xs, ys) / (sx * sy)
}

// DownsideDeviation 음수 수익률의 표본 표준편차
func DownsideDeviation(returns []float64) float64 {
	neg := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			neg = append(neg, r)
		}
	}
	return StdDev(neg)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func pairwise(x, y []float64) ([]float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
