package risk

import "math"

// =============================================================================
// Return Series
// =============================================================================

// SimpleReturns close[t]/close[t-1] - 1
// 결측 또는 0 이하 가격이 포함된 구간은 건너뜀
func SimpleReturns(prices []float64) []float64 {
	return computeReturns(prices, ReturnSimple)
}

// LogReturns ln(close[t]/close[t-1])
func LogReturns(prices []float64) []float64 {
	return computeReturns(prices, ReturnLog)
}

func computeReturns(prices []float64, kind ReturnType) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
			continue
		}
		if kind == ReturnLog {
			if cur <= 0 {
				continue
			}
			out = append(out, math.Log(cur/prev))
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// AlignedSimpleReturns 길이를 유지하는 수익률 (첫 값과 계산 불가 구간은 NaN)
func AlignedSimpleReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
			continue
		}
		out[i] = cur/prev - 1
	}
	return out
}

// AnnualizedVolatility 일간 수익률 표준편차 × √252
func AnnualizedVolatility(returns []float64) float64 {
	return StdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualizedReturnFromTotal (1+total)^(252/n) - 1, n = 관측 행 수
func AnnualizedReturnFromTotal(total float64, rows int) float64 {
	if rows <= 0 || 1+total <= 0 {
		return 0
	}
	return math.Pow(1+total, float64(TradingDaysPerYear)/float64(rows)) - 1
}

// AnnualizedReturnFromReturns compounds daily returns, then annualizes over len(returns)+1 price rows
func AnnualizedReturnFromReturns(returns []float64) float64 {
	clean := dropNaN(returns)
	if len(clean) == 0 {
		return 0
	}
	growth := 1.0
	for _, r := range clean {
		growth *= 1 + r
	}
	return AnnualizedReturnFromTotal(growth-1, len(clean)+1)
}

// SharpeRatio (annualized - rf) / volatility, 변동성 0이면 0
func SharpeRatio(annualizedReturn, riskFreeRate, volatility float64) float64 {
	if volatility == 0 || math.IsNaN(volatility) {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / volatility
}

// MaxDrawdown 누적 (1+r) 곱 기준 최대 낙폭 (음수 비율, 예: -0.25)
func MaxDrawdown(returns []float64) float64 {
	cum := 1.0
	peak := math.Inf(-1)
	mdd := 0.0
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if peak > 0 {
			if dd := (cum - peak) / peak; dd < mdd {
				mdd = dd
			}
		}
	}
	return mdd
}
