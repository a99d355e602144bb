package indicators

import (
	"math"

	"levelscope/internal/models"
)

// LogReturns returns ln(close_t/close_{t-1}) for consecutive candles.
func LogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns
}

// AnnualizedVolatility is the sample standard deviation of log returns
// scaled by sqrt(252). Flat or single-candle input yields 0.
func AnnualizedVolatility(candles []models.Candle) float64 {
	return SampleStdDev(LogReturns(candles)) * math.Sqrt(TradingDaysPerYear)
}

// AdaptiveStep is the price grid step used by the horizontal cluster and
// volume node detectors: avgClose * 0.001 * (1 + volatility*0.5).
func AdaptiveStep(candles []models.Candle, volatility float64) float64 {
	return Mean(ClosePrices(candles)) * 0.001 * (1 + volatility*0.5)
}

// AverageVolume returns the mean volume of candles.
func AverageVolume(candles []models.Candle) float64 {
	return Mean(Volumes(candles))
}

// TrailingAverageVolume returns the mean volume of up to n candles before idx.
func TrailingAverageVolume(candles []models.Candle, idx, n int) float64 {
	start := idx - n
	if start < 0 {
		start = 0
	}
	if idx <= start {
		return 0
	}
	return Mean(Volumes(candles[start:idx]))
}

// WickToBodyRatio is total wick length relative to body size, capped at 1.
// A doji with a non-zero range counts as full rejection.
func WickToBodyRatio(c models.Candle) float64 {
	rng := c.Range()
	if rng <= 0 {
		return 0
	}
	body := c.Body()
	if body == 0 {
		return 1
	}
	return Clamp01((rng - body) / body)
}
