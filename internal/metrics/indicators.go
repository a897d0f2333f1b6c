package metrics

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// =============================================================================
// Rolling-window indicators
// 모든 함수는 입력과 같은 길이를 반환하고, 창이 차기 전 구간은 NaN
// =============================================================================

// SMA simple moving average
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	return padLeft(len(values), out)
}

// EMA exponential moving average seeded with the first SMA
func EMA(values []float64, period int) []float64 {
	// 짧은 입력에서 시드 SMA가 없으면 0이 나오므로 먼저 차단
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
	return padLeft(len(values), out)
}

// MACD returns the line (fast EMA - slow EMA), the signal EMA and the histogram
func MACD(values []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(values)
	line, sig, hist = nanSlice(n), nanSlice(n), nanSlice(n)
	if fast <= 0 || slow <= 0 || signal <= 0 || n < slow {
		return line, sig, hist
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	start := slow - 1
	for i := start; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signalPart := EMA(line[start:], signal)
	for i, v := range signalPart {
		sig[start+i] = v
		if !math.IsNaN(v) {
			hist[start+i] = line[start+i] - v
		}
	}
	return line, sig, hist
}

// RSI rolling-mean relative strength index
// 첫 행의 변화량은 0으로 취급, 평균 손실이 0이면 100
func RSI(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)
	if period <= 0 || n < period {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := values[i] - values[i-1]
		switch {
		case delta > 0:
			gains[i] = delta
		case delta < 0:
			losses[i] = -delta
		case math.IsNaN(delta):
			gains[i], losses[i] = math.NaN(), math.NaN()
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// Bollinger returns middle (SMA), upper and lower bands using sample std
func Bollinger(values []float64, period int, k float64) (middle, upper, lower []float64) {
	n := len(values)
	middle = SMA(values, period)
	std := rollingStd(values, period)
	upper, lower = nanSlice(n), nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(middle[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = middle[i] + k*std[i]
		lower[i] = middle[i] - k*std[i]
	}
	return middle, upper, lower
}

// Stochastic returns %K and its smooth-period SMA %D
func Stochastic(highs, lows, closes []float64, period, smooth int) (k, d []float64) {
	n := len(closes)
	k = nanSlice(n)
	hh := rollingMax(highs, period)
	ll := rollingMin(lows, period)
	for i := 0; i < n; i++ {
		if rng := hh[i] - ll[i]; rng != 0 && !math.IsNaN(rng) {
			k[i] = 100 * (closes[i] - ll[i]) / rng
		}
	}
	return k, rollingMean(k, smooth)
}

// WilliamsR returns -100 × (highest high - close) / (highest high - lowest low)
func WilliamsR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	hh := rollingMax(highs, period)
	ll := rollingMin(lows, period)
	for i := 0; i < n; i++ {
		if rng := hh[i] - ll[i]; rng != 0 && !math.IsNaN(rng) {
			out[i] = -100 * (hh[i] - closes[i]) / rng
		}
	}
	return out
}

// =============================================================================
// helpers
// =============================================================================

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// padLeft aligns a trimmed indicator output with its input
func padLeft(n int, values []float64) []float64 {
	out := nanSlice(n)
	copy(out[n-len(values):], values)
	return out
}

// window calls fn for every full window; a window containing NaN yields NaN
func window(values []float64, period int, fn func([]float64) float64) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		w := values[i-period+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func rollingMean(values []float64, period int) []float64 {
	return window(values, period, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

func rollingStd(values []float64, period int) []float64 {
	return window(values, period, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(len(w))
		var sq float64
		for _, v := range w {
			sq += (v - mean) * (v - mean)
		}
		return math.Sqrt(sq / float64(len(w)-1))
	})
}

func rollingMax(values []float64, period int) []float64 {
	return window(values, period, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

func rollingMin(values []float64, period int) []float64 {
	return window(values, period, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
