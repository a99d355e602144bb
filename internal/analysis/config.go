package analysis

import (
	"math"

	apperrors "levelscope/internal/errors"
)

// StrengthWeights are the per-factor weights of the strength score.
type StrengthWeights struct {
	Touches     float64 `mapstructure:"touches" json:"touches"`
	Volume      float64 `mapstructure:"volume" json:"volume"`
	Time        float64 `mapstructure:"time" json:"time"`
	PriceAction float64 `mapstructure:"price_action" json:"price_action"`
	Rejection   float64 `mapstructure:"rejection" json:"rejection"`
}

// Sum returns the total weight.
func (w StrengthWeights) Sum() float64 {
	return w.Touches + w.Volume + w.Time + w.PriceAction + w.Rejection
}

// ConfluenceConfig controls zone grouping.
type ConfluenceConfig struct {
	MinFactors        int     `mapstructure:"min_factors" json:"min_factors"`
	PriceTolerancePct float64 `mapstructure:"price_tolerance_pct" json:"price_tolerance_pct"`
}

// Config holds the tunable parameters of one analysis call. It is passed by
// value and never mutated by the components that read it.
type Config struct {
	MinTouches                 int              `mapstructure:"min_touches" json:"min_touches"`
	TouchTolerancePct          float64          `mapstructure:"touch_tolerance_pct" json:"touch_tolerance_pct"` // percent of price
	MinStrength                float64          `mapstructure:"min_strength" json:"min_strength"`
	LookbackPeriod             int              `mapstructure:"lookback_period" json:"lookback_period"`
	VolumeWeighting            bool             `mapstructure:"volume_weighting" json:"volume_weighting"`
	LiquidityGrabThreshold     float64          `mapstructure:"liquidity_grab_threshold" json:"liquidity_grab_threshold"` // percent of price
	ReversalConfirmationPeriod int              `mapstructure:"reversal_confirmation_period" json:"reversal_confirmation_period"`
	PivotWindow                int              `mapstructure:"pivot_window" json:"pivot_window"`
	StrengthWeights            StrengthWeights  `mapstructure:"strength_weights" json:"strength_weights"`
	Confluence                 ConfluenceConfig `mapstructure:"confluence" json:"confluence"`
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() Config {
	return Config{
		MinTouches:                 2,
		TouchTolerancePct:          0.5,
		MinStrength:                0.3,
		LookbackPeriod:             50,
		VolumeWeighting:            true,
		LiquidityGrabThreshold:     0.5,
		ReversalConfirmationPeriod: 3,
		PivotWindow:                5,
		StrengthWeights: StrengthWeights{
			Touches:     0.25,
			Volume:      0.20,
			Time:        0.15,
			PriceAction: 0.20,
			Rejection:   0.20,
		},
		Confluence: ConfluenceConfig{
			MinFactors:        2,
			PriceTolerancePct: 0.5,
		},
	}
}

// TouchTolerance returns the absolute touch tolerance at price.
func (c Config) TouchTolerance(price float64) float64 {
	return price * c.TouchTolerancePct / 100
}

// GrabTolerance returns the absolute penetration tolerance for liquidity grabs at price.
func (c Config) GrabTolerance(price float64) float64 {
	return price * c.LiquidityGrabThreshold / 100
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.MinTouches < 1 {
		return apperrors.NewValidationError("min_touches", c.MinTouches, "must be at least 1")
	}
	if !finiteNonNegative(c.TouchTolerancePct) {
		return apperrors.NewValidationError("touch_tolerance_pct", c.TouchTolerancePct, "must be a non-negative number")
	}
	if math.IsNaN(c.MinStrength) || c.MinStrength < 0 || c.MinStrength > 1 {
		return apperrors.NewValidationError("min_strength", c.MinStrength, "must be within [0, 1]")
	}
	if c.LookbackPeriod < 2 {
		return apperrors.NewValidationError("lookback_period", c.LookbackPeriod, "must be at least 2")
	}
	if !finiteNonNegative(c.LiquidityGrabThreshold) {
		return apperrors.NewValidationError("liquidity_grab_threshold", c.LiquidityGrabThreshold, "must be a non-negative number")
	}
	if c.ReversalConfirmationPeriod < 1 {
		return apperrors.NewValidationError("reversal_confirmation_period", c.ReversalConfirmationPeriod, "must be at least 1")
	}
	if c.PivotWindow < 1 {
		return apperrors.NewValidationError("pivot_window", c.PivotWindow, "must be at least 1")
	}

	w := c.StrengthWeights
	weights := []struct {
		name  string
		value float64
	}{
		{"strength_weights.touches", w.Touches},
		{"strength_weights.volume", w.Volume},
		{"strength_weights.time", w.Time},
		{"strength_weights.price_action", w.PriceAction},
		{"strength_weights.rejection", w.Rejection},
	}
	for _, f := range weights {
		if !finiteNonNegative(f.value) {
			return apperrors.NewValidationError(f.name, f.value, "must be a non-negative number")
		}
	}
	if w.Sum() == 0 {
		return apperrors.NewValidationError("strength_weights", w, "at least one weight must be positive")
	}

	if c.Confluence.MinFactors < 1 {
		return apperrors.NewValidationError("confluence.min_factors", c.Confluence.MinFactors, "must be at least 1")
	}
	if !finiteNonNegative(c.Confluence.PriceTolerancePct) {
		return apperrors.NewValidationError("confluence.price_tolerance_pct", c.Confluence.PriceTolerancePct, "must be a non-negative number")
	}

	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
