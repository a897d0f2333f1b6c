package cleaner

import (
	"math"

	"github.com/wonny/finfetch/internal/contracts"
)

type column struct {
	name string
	get  func(*contracts.PriceRecord) []float64
	set  func(*contracts.Bar, float64)
}

var columns = []column{
	{"open", (*contracts.PriceRecord).Opens, func(b *contracts.Bar, v float64) { b.Open = v }},
	{"high", (*contracts.PriceRecord).Highs, func(b *contracts.Bar, v float64) { b.High = v }},
	{"low", (*contracts.PriceRecord).Lows, func(b *contracts.Bar, v float64) { b.Low = v }},
	{"close", (*contracts.PriceRecord).Closes, func(b *contracts.Bar, v float64) { b.Close = v }},
	{"volume", (*contracts.PriceRecord).Volumes, func(b *contracts.Bar, v float64) { b.Volume = v }},
}

// mapColumns applies fn to every OHLCV column and writes the result back
func mapColumns(r *contracts.PriceRecord, fn func([]float64) []float64) {
	for _, col := range columns {
		filled := fn(col.get(r))
		for i := range r.Bars {
			col.set(&r.Bars[i], filled[i])
		}
	}
}

func forwardFill(values []float64) []float64 {
	out := make([]float64, len(values))
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = last
			continue
		}
		out[i] = v
		last = v
	}
	return out
}

func backwardFill(values []float64) []float64 {
	out := make([]float64, len(values))
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			out[i] = next
			continue
		}
		out[i] = values[i]
		next = values[i]
	}
	return out
}

// interpolate fills interior gaps linearly by position
// 앞뒤 끝의 결측은 그대로 둠
func interpolate(values []float64) []float64 {
	out := append([]float64(nil), values...)
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				out[j] = values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	return out
}

// meanStd returns mean and sample std over non-NaN values
func meanStd(values []float64) (float64, float64, bool) {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n < 2 {
		return 0, 0, false
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sq += (v - mean) * (v - mean)
		}
	}
	return mean, math.Sqrt(sq / float64(n-1)), true
}

func nanMax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Max(a, b)
}

func nanMin(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Min(a, b)
}
