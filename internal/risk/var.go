package risk

import (
	"math"
	"sort"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 일별 수익률 배열 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
// VaR = (1-confidence) 분위수 (선형 보간), CVaR = VaR 이하 수익률 평균
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	clean := dropNaN(returns)
	if len(clean) == 0 {
		return VaRResult{Confidence: confidence, VaR: 0, CVaR: 0}
	}

	// 수익률 정렬 (오름차순: 손실이 앞에)
	sorted := make([]float64, len(clean))
	copy(sorted, clean)
	sort.Float64s(sorted)

	varValue := Percentile(sorted, (1.0-confidence)*100)

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       CalculateCVaR(sorted, varValue),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall) 계산
// sorted: 오름차순 정렬된 수익률
// tail이 비어 있으면 VaR 자체를 반환
func CalculateCVaR(sorted []float64, varValue float64) float64 {
	var sum float64
	count := 0
	for _, r := range sorted {
		if r > varValue {
			break
		}
		sum += r
		count++
	}

	if count == 0 {
		return varValue
	}
	return sum / float64(count)
}

// =============================================================================
// Parametric VaR (정규분포 가정)
// =============================================================================

// CalculateParametricVaR 정규분포 가정 VaR 계산
// VaR = mean - z·σ, CVaR = mean - σ·φ(z)/(1-c)
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	z := NormInv(confidence)
	phi := NormPDF(z)

	return VaRResult{
		Confidence: confidence,
		VaR:        mean - z*stdDev,
		CVaR:       mean - stdDev*phi/(1-confidence),
	}
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// NormInv 정규분포 역함수 (Quantile Function)
// Acklam rational approximation
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}

	a := []float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}
	b := []float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}
	c := []float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}
	d := []float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}

	pLow := 0.02425
	pHigh := 1 - pLow

	var q, r float64

	if p < pLow {
		q = math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	} else if p <= pHigh {
		q = p - 0.5
		r = q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
	q = math.Sqrt(-2 * math.Log(1-p))
	return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
		((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
}

// NormPDF 정규분포 확률밀도함수
func NormPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
