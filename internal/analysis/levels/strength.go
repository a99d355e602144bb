package levels

import (
	"time"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
)

// Scorer turns merged candidate levels into scored levels against one window.
type Scorer struct {
	w Window
}

// NewScorer creates a scorer bound to the window.
func NewScorer(w Window) *Scorer {
	return &Scorer{w: w}
}

// Score computes the five strength factors and the weighted strength score.
func (s *Scorer) Score(level analysis.Level) analysis.EnhancedLevel {
	cfg := s.w.Config
	tol := cfg.TouchTolerance(level.Price)

	var nearVolume float64
	var wickSum, rejectionSum float64
	touching := 0
	for _, c := range s.w.Candles {
		if near(c, level.Price, tol) {
			nearVolume += c.Volume
		}
		if !touches(c, level.Price, tol, level.Type) {
			continue
		}
		touching++
		wickSum += indicators.WickToBodyRatio(c)
		if r := c.Range(); r > 0 {
			if level.Type == analysis.LevelSupport {
				rejectionSum += c.LowerWick() / r
			} else {
				rejectionSum += c.UpperWick() / r
			}
		}
	}

	el := analysis.EnhancedLevel{Level: level}
	el.VolumeConfirmation = indicators.Clamp01(indicators.SafeDiv(nearVolume, s.w.TotalVolume))
	el.TimeStrength = TimeFactor(s.w.Reference, level.LastTouch)
	if touching > 0 {
		el.PriceActionStrength = indicators.Clamp01(wickSum / float64(touching))
		el.RejectionStrength = indicators.Clamp01(rejectionSum / float64(touching))
	}

	touchScore := touchesFactor(level.Touches, s.w.Volatility)
	wt := cfg.StrengthWeights
	el.StrengthScore = indicators.Clamp01(
		wt.Touches*touchScore +
			wt.Volume*el.VolumeConfirmation +
			wt.Time*el.TimeStrength +
			wt.PriceAction*el.PriceActionStrength +
			wt.Rejection*el.RejectionStrength,
	)
	el.ReversalPotential = indicators.Clamp01(0.5 * el.RejectionStrength)
	return el
}

// TimeFactor rates a level by the age of its last touch in days: fresh
// touches score 0.3, 7-14 days peaks at 1.0, and anything older than 30
// days decays to 0.1. A zero last touch counts as stale.
func TimeFactor(reference, lastTouch time.Time) float64 {
	if lastTouch.IsZero() {
		return 0.1
	}
	age := reference.Sub(lastTouch).Hours() / 24
	switch {
	case age < 1:
		return 0.3
	case age < 7:
		return 0.3 + (age-1)/6*0.7
	case age <= 14:
		return 1.0
	case age <= 30:
		return 1.0 - (age-14)/16*0.9
	default:
		return 0.1
	}
}
