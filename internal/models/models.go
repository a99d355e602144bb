// Package models provides domain models shared across the analysis pipeline.
package models

import (
	"time"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Symbol    string    `json:"symbol" csv:"symbol"`
	Timeframe string    `json:"timeframe" csv:"timeframe"`
	Timestamp time.Time `json:"timestamp" csv:"timestamp"`
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    float64   `json:"volume" csv:"volume"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-low range of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick returns the distance between the high and the top of the body.
func (c Candle) UpperWick() float64 {
	top := c.Close
	if c.Open > top {
		top = c.Open
	}
	return c.High - top
}

// LowerWick returns the distance between the bottom of the body and the low.
func (c Candle) LowerWick() float64 {
	bottom := c.Close
	if c.Open < bottom {
		bottom = c.Open
	}
	return bottom - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}
