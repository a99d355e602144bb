package indicators

import (
	"levelscope/internal/analysis"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

// Standard Fibonacci ratios.
var (
	RetracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	ExtensionRatios   = []float64{1.272, 1.618}
)

// FibLevel is one Fibonacci price.
type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// FibonacciLevels represents Fibonacci retracement and extension levels.
type FibonacciLevels struct {
	SwingHigh    float64    `json:"swing_high"`
	SwingLow     float64    `json:"swing_low"`
	IsUptrend    bool       `json:"is_uptrend"`
	Retracements []FibLevel `json:"retracements"`
	Extensions   []FibLevel `json:"extensions"`
}

// FibonacciRetracement calculates Fibonacci retracement levels.
type FibonacciRetracement struct {
	lookbackPeriod int
}

// NewFibonacciRetracement creates a new Fibonacci Retracement calculator.
func NewFibonacciRetracement(lookbackPeriod int) *FibonacciRetracement {
	return &FibonacciRetracement{lookbackPeriod: lookbackPeriod}
}

func (f *FibonacciRetracement) Name() string {
	return "FibonacciRetracement"
}

func (f *FibonacciRetracement) Period() int {
	return f.lookbackPeriod
}

// Calculate finds swing high/low and calculates Fibonacci levels.
func (f *FibonacciRetracement) Calculate(candles []models.Candle) (*FibonacciLevels, error) {
	if len(candles) == 0 || len(candles) < f.lookbackPeriod {
		return nil, apperrors.NewInsufficientDataError("fibonacci", f.lookbackPeriod, len(candles))
	}

	lookbackCandles := candles
	if f.lookbackPeriod > 0 && len(candles) > f.lookbackPeriod {
		lookbackCandles = candles[len(candles)-f.lookbackPeriod:]
	}

	highs := highPrices(lookbackCandles)
	lows := lowPrices(lookbackCandles)

	// Trend direction follows which extreme came first.
	isUptrend := lowestIndex(lows) < highestIndex(highs)

	return f.CalculateLevels(highest(highs), lowest(lows), isUptrend), nil
}

// CalculateLevels calculates Fibonacci levels from given swing points.
func (f *FibonacciRetracement) CalculateLevels(swingHigh, swingLow float64, isUptrend bool) *FibonacciLevels {
	diff := swingHigh - swingLow

	levels := &FibonacciLevels{
		SwingHigh: swingHigh,
		SwingLow:  swingLow,
		IsUptrend: isUptrend,
	}

	for _, r := range RetracementRatios {
		price := swingLow + diff*r
		if isUptrend {
			// price went up, now retracing down from the high
			price = swingHigh - diff*r
		}
		levels.Retracements = append(levels.Retracements, FibLevel{Ratio: r, Price: price})
	}
	for _, r := range ExtensionRatios {
		price := swingHigh + diff*(r-1)
		if isUptrend {
			price = swingLow - diff*(r-1)
		}
		levels.Extensions = append(levels.Extensions, FibLevel{Ratio: r, Price: price})
	}

	return levels
}

// Levels projects the Fibonacci prices onto support/resistance levels
// relative to currentPrice.
func (l *FibonacciLevels) Levels(currentPrice float64) []analysis.Level {
	if l == nil {
		return nil
	}
	out := make([]analysis.Level, 0, len(l.Retracements)+len(l.Extensions))
	add := func(fl FibLevel, kind analysis.SourceKind, strength float64) {
		if fl.Price <= 0 {
			return
		}
		typ := analysis.LevelSupport
		if fl.Price > currentPrice {
			typ = analysis.LevelResistance
		}
		out = append(out, analysis.Level{
			Price:    fl.Price,
			Type:     typ,
			Strength: strength,
			Sources:  []analysis.SourceKind{kind},
		})
	}
	for _, r := range l.Retracements {
		add(r, analysis.SourceFibonacci, FibRatioStrength(r.Ratio))
	}
	for _, e := range l.Extensions {
		add(e, analysis.SourceFibExtension, FibRatioStrength(e.Ratio))
	}
	return out
}

// FibRatioStrength weights the golden ratios above the rest.
func FibRatioStrength(ratio float64) float64 {
	switch ratio {
	case 0.618, 1.618:
		return 0.8
	case 0.5, 0.382:
		return 0.7
	default:
		return 0.5
	}
}
