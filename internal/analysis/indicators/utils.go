// Package indicators provides the numeric building blocks of level analysis
// and the Fibonacci, volume profile and pivot channel providers.
package indicators

import (
	"math"

	"github.com/montanaflynn/stats"

	"levelscope/internal/models"
)

// TradingDaysPerYear annualizes per-candle volatility.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64. Empty input yields 0.
func Mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil || math.IsNaN(m) {
		return 0
	}
	return m
}

// StdDev calculates the population standard deviation. Empty input yields 0.
func StdDev(values []float64) float64 {
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd
}

// SampleStdDev calculates the sample standard deviation. Fewer than two values yield 0.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd
}

// Clamp01 bounds v to [0, 1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SafeDiv returns a/b, or 0 when b is zero.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// ClosePrices extracts close prices from candles.
func ClosePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// Volumes extracts volumes from candles.
func Volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = c.Volume
	}
	return vols
}

// highest returns the highest value in a slice.
func highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// lowest returns the lowest value in a slice.
func lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// highestIndex returns the index of the highest value in a slice.
func highestIndex(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	idx := 0
	h := values[0]
	for i, v := range values[1:] {
		if v > h {
			h = v
			idx = i + 1
		}
	}
	return idx
}

// lowestIndex returns the index of the lowest value in a slice.
func lowestIndex(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	idx := 0
	l := values[0]
	for i, v := range values[1:] {
		if v < l {
			l = v
			idx = i + 1
		}
	}
	return idx
}

func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}
