// Package indicators computes technical indicators over cached series.
// Thin wrappers around go-talib and gonum so handlers get scalar results
// with the insufficient-data cases handled.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Summary bundles the standard indicator set computed for one series.
type Summary struct {
	SMA       *float64 `json:"sma,omitempty"`
	EMA       *float64 `json:"ema,omitempty"`
	RSI       *float64 `json:"rsi,omitempty"`
	Bollinger *Bands   `json:"bollinger,omitempty"`
	Momentum  *float64 `json:"momentum,omitempty"`
	ZScore    *float64 `json:"zscore,omitempty"`
}

// Bands holds Bollinger band values at the latest observation.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Compute calculates the indicator summary for a value series using the
// given lookback window. Indicators with insufficient data are left nil.
func Compute(values []float64, window int) Summary {
	return Summary{
		SMA:       SMA(values, window),
		EMA:       EMA(values, window),
		RSI:       RSI(values, window),
		Bollinger: Bollinger(values, window, 2),
		Momentum:  Momentum(values, window),
		ZScore:    ZScore(values, window),
	}
}

// SMA returns the latest simple moving average, or nil if there are fewer
// than length values.
func SMA(values []float64, length int) *float64 {
	if len(values) < length || length < 1 {
		return nil
	}
	out := talib.Sma(values, length)
	return lastValid(out)
}

// EMA returns the latest exponential moving average.
func EMA(values []float64, length int) *float64 {
	if len(values) < length || length < 2 {
		return nil
	}
	out := talib.Ema(values, length)
	return lastValid(out)
}

// RSI returns the latest relative strength index (0-100).
func RSI(values []float64, length int) *float64 {
	if len(values) < length+1 || length < 2 {
		return nil
	}
	out := talib.Rsi(values, length)
	return lastValid(out)
}

// Bollinger returns the bands at the latest observation.
func Bollinger(values []float64, length int, stdDevMultiplier float64) *Bands {
	if len(values) < length || length < 2 {
		return nil
	}
	upper, middle, lower := talib.BBands(values, length, stdDevMultiplier, stdDevMultiplier, talib.SMA)
	u, m, l := lastValid(upper), lastValid(middle), lastValid(lower)
	if u == nil || m == nil || l == nil {
		return nil
	}
	return &Bands{Upper: *u, Middle: *m, Lower: *l}
}

// Momentum returns the percentage change over the window.
func Momentum(values []float64, window int) *float64 {
	if len(values) < window+1 || window < 1 {
		return nil
	}
	prev := values[len(values)-1-window]
	if prev == 0 {
		return nil
	}
	momentum := (values[len(values)-1] - prev) / prev * 100
	return &momentum
}

// ZScore returns how many standard deviations the latest value sits from
// the window mean.
func ZScore(values []float64, window int) *float64 {
	if len(values) < window || window < 2 {
		return nil
	}
	tail := values[len(values)-window:]
	mean := stat.Mean(tail, nil)
	stddev := stat.StdDev(tail, nil)
	if stddev == 0 || math.IsNaN(stddev) {
		return nil
	}
	z := (values[len(values)-1] - mean) / stddev
	return &z
}

// Correlation returns the Pearson correlation of two equal-length series,
// or nil when undefined.
func Correlation(x, y []float64) *float64 {
	if len(x) == 0 || len(x) != len(y) {
		return nil
	}
	corr := stat.Correlation(x, y, nil)
	if math.IsNaN(corr) {
		return nil
	}
	return &corr
}

// lastValid returns the final output value. talib pads the warm-up period
// at the head, so with enough input the last element is always the live one.
func lastValid(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
