// Package levels detects, merges and scores support and resistance levels.
package levels

import (
	"math"
	"time"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	"levelscope/internal/models"
)

// Window is the read-only view of one analysis window shared by the level
// sources and the scorer. It is built once per call.
type Window struct {
	Candles     []models.Candle
	Config      analysis.Config
	Volatility  float64
	AvgVolume   float64
	TotalVolume float64
	Step        float64 // adaptive price grid step
	LastClose   float64
	High        float64
	Low         float64
	Reference   time.Time // "now" for level age
}

// NewWindow precomputes the window statistics. A zero reference time means
// the timestamp of the last candle.
func NewWindow(candles []models.Candle, cfg analysis.Config, reference time.Time) Window {
	w := Window{
		Candles:   candles,
		Config:    cfg,
		Reference: reference,
	}
	if len(candles) == 0 {
		return w
	}

	w.Volatility = indicators.AnnualizedVolatility(candles)
	w.AvgVolume = indicators.AverageVolume(candles)
	w.Step = indicators.AdaptiveStep(candles, w.Volatility)
	w.LastClose = candles[len(candles)-1].Close
	w.High, w.Low = candles[0].High, candles[0].Low
	for _, c := range candles {
		w.TotalVolume += c.Volume
		w.High = math.Max(w.High, c.High)
		w.Low = math.Min(w.Low, c.Low)
	}
	if w.Reference.IsZero() {
		w.Reference = candles[len(candles)-1].Timestamp
	}
	return w
}

// Span is the high-low range of the whole window.
func (w Window) Span() float64 {
	return w.High - w.Low
}

// touchWeight is the contribution of one touching candle: 1, or its
// relative volume capped at 2 when volume weighting is on.
func (w Window) touchWeight(c models.Candle) float64 {
	if !w.Config.VolumeWeighting || w.AvgVolume <= 0 {
		return 1
	}
	return math.Min(2, c.Volume/w.AvgVolume)
}

// touches reports whether the candle's extreme on the level side lies
// within tol of price.
func touches(c models.Candle, price, tol float64, typ analysis.LevelType) bool {
	if typ == analysis.LevelSupport {
		return math.Abs(c.Low-price) <= tol
	}
	return math.Abs(c.High-price) <= tol
}

// near reports whether the candle traded inside [price-tol, price+tol].
func near(c models.Candle, price, tol float64) bool {
	return c.Low <= price+tol && c.High >= price-tol
}

// touchesFactor is min(1, touches / (5 + 2*volatility)).
func touchesFactor(touches int, volatility float64) float64 {
	return indicators.Clamp01(float64(touches) / (5 + 2*volatility))
}
