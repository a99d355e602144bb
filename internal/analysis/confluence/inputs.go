// Package confluence groups levels from independent sources into price
// zones and derives a market bias from the strong ones.
package confluence

import (
	"fmt"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
)

// Factor types of the built-in inputs.
const (
	FactorSupport             = "support"
	FactorResistance          = "resistance"
	FactorFibonacci           = "fibonacci"
	FactorFibonacciExtension  = "fibonacci_extension"
	FactorPointOfControl      = "volume_poc"
	FactorValueAreaHigh       = "value_area_high"
	FactorValueAreaLow        = "value_area_low"
	FactorPivotChannelUpper   = "pivot_channel_upper"
	FactorPivotChannelLower   = "pivot_channel_lower"
	FactorPivotChannelCenter  = "pivot_channel_center"
	maxDiversityFactorTypes   = 5
	pointOfControlStrength    = 0.8
	valueAreaBoundaryStrength = 0.6
	channelCenterDiscount     = 0.8
)

// Input is the common projection of every level source fed to the builder.
type Input struct {
	Price       float64 `json:"price"`
	Type        string  `json:"type"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description"`
}

// FromLevels projects scored levels. The factor type is the level type.
func FromLevels(levels []analysis.EnhancedLevel) []Input {
	out := make([]Input, 0, len(levels))
	for _, l := range levels {
		typ := FactorResistance
		if l.Type == analysis.LevelSupport {
			typ = FactorSupport
		}
		out = append(out, Input{
			Price:       l.Price,
			Type:        typ,
			Strength:    l.StrengthScore,
			Description: fmt.Sprintf("%s level at %.2f (%d touches)", l.Type, l.Price, l.Touches),
		})
	}
	return out
}

// FromFibonacci projects retracement and extension levels. Key ratios are
// weighted higher.
func FromFibonacci(fib *indicators.FibonacciLevels) []Input {
	if fib == nil {
		return nil
	}
	out := make([]Input, 0, len(fib.Retracements)+len(fib.Extensions))
	for _, r := range fib.Retracements {
		out = append(out, Input{
			Price:       r.Price,
			Type:        FactorFibonacci,
			Strength:    indicators.FibRatioStrength(r.Ratio),
			Description: fmt.Sprintf("Fibonacci %.1f%% retracement", r.Ratio*100),
		})
	}
	for _, e := range fib.Extensions {
		out = append(out, Input{
			Price:       e.Price,
			Type:        FactorFibonacciExtension,
			Strength:    indicators.FibRatioStrength(e.Ratio),
			Description: fmt.Sprintf("Fibonacci %.1f%% extension", e.Ratio*100),
		})
	}
	return out
}

// FromVolumeProfile projects the point of control and value area bounds.
func FromVolumeProfile(vp *indicators.VolumeProfileResult) []Input {
	if vp == nil {
		return nil
	}
	return []Input{
		{Price: vp.POC, Type: FactorPointOfControl, Strength: pointOfControlStrength, Description: "Volume point of control"},
		{Price: vp.VAH, Type: FactorValueAreaHigh, Strength: valueAreaBoundaryStrength, Description: "Value area high"},
		{Price: vp.VAL, Type: FactorValueAreaLow, Strength: valueAreaBoundaryStrength, Description: "Value area low"},
	}
}

// FromPivotChannel projects the channel bounds and its center line.
func FromPivotChannel(ch *indicators.PivotChannelResult) []Input {
	if ch == nil {
		return nil
	}
	return []Input{
		{Price: ch.UpperChannel, Type: FactorPivotChannelUpper, Strength: ch.Strength, Description: "Pivot channel upper bound"},
		{Price: ch.LowerChannel, Type: FactorPivotChannelLower, Strength: ch.Strength, Description: "Pivot channel lower bound"},
		{Price: ch.CenterLine, Type: FactorPivotChannelCenter, Strength: ch.Strength * channelCenterDiscount, Description: "Pivot channel center line"},
	}
}
