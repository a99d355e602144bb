package indicators

import (
	"math"

	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

// PivotChannelResult is a regression channel through swing points,
// projected to the last candle.
type PivotChannelResult struct {
	UpperChannel float64 `json:"upper_channel"`
	LowerChannel float64 `json:"lower_channel"`
	CenterLine   float64 `json:"center_line"`
	Strength     float64 `json:"strength"`
	UpperSlope   float64 `json:"upper_slope"`
	LowerSlope   float64 `json:"lower_slope"`
}

// PivotChannel fits lines through swing highs and swing lows.
type PivotChannel struct {
	pivotStrength int     // bars on each side for swing confirmation
	tolerance     float64 // fraction of price a swing may deviate from its line
}

// NewPivotChannel creates a new pivot channel detector.
func NewPivotChannel(pivotStrength int) *PivotChannel {
	return &PivotChannel{pivotStrength: pivotStrength, tolerance: 0.005}
}

func (p *PivotChannel) Name() string {
	return "PivotChannel"
}

func (p *PivotChannel) Period() int {
	return p.pivotStrength*2 + 1
}

type swingPoint struct {
	index int
	price float64
}

// Calculate fits the channel. With fewer than two swings on a side the
// side collapses to the window extreme and contributes no strength.
func (p *PivotChannel) Calculate(candles []models.Candle) (*PivotChannelResult, error) {
	if len(candles) < p.Period() {
		return nil, apperrors.NewInsufficientDataError("pivot channel", p.Period(), len(candles))
	}

	n := len(candles)
	var swingHighs, swingLows []swingPoint
	for i := p.pivotStrength; i < n-p.pivotStrength; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= p.pivotStrength; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isHigh = false
			}
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isLow = false
			}
		}
		if isHigh {
			swingHighs = append(swingHighs, swingPoint{i, candles[i].High})
		}
		if isLow {
			swingLows = append(swingLows, swingPoint{i, candles[i].Low})
		}
	}

	last := float64(n - 1)
	result := &PivotChannelResult{}

	upperFit := 0.0
	if slope, intercept, ok := fitLine(swingHighs); ok {
		result.UpperSlope = slope
		result.UpperChannel = slope*last + intercept
		upperFit = p.fitQuality(swingHighs, slope, intercept)
	} else {
		result.UpperChannel = highest(highPrices(candles))
	}

	lowerFit := 0.0
	if slope, intercept, ok := fitLine(swingLows); ok {
		result.LowerSlope = slope
		result.LowerChannel = slope*last + intercept
		lowerFit = p.fitQuality(swingLows, slope, intercept)
	} else {
		result.LowerChannel = lowest(lowPrices(candles))
	}

	if result.LowerChannel > result.UpperChannel {
		result.LowerChannel, result.UpperChannel = result.UpperChannel, result.LowerChannel
	}
	result.CenterLine = (result.UpperChannel + result.LowerChannel) / 2
	result.Strength = Clamp01((upperFit + lowerFit) / 2)

	return result, nil
}

// fitQuality is the share of swings lying within tolerance of the line.
func (p *PivotChannel) fitQuality(points []swingPoint, slope, intercept float64) float64 {
	if len(points) == 0 {
		return 0
	}
	hits := 0
	for _, pt := range points {
		linePrice := slope*float64(pt.index) + intercept
		if linePrice > 0 && math.Abs(pt.price-linePrice)/linePrice <= p.tolerance {
			hits++
		}
	}
	return float64(hits) / float64(len(points))
}

// fitLine is an ordinary least squares fit of price over bar index.
func fitLine(points []swingPoint) (slope, intercept float64, ok bool) {
	if len(points) < 2 {
		return 0, 0, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for _, pt := range points {
		x := float64(pt.index)
		sumX += x
		sumY += pt.price
		sumXY += x * pt.price
		sumXX += x * x
	}
	count := float64(len(points))
	denom := count*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (count*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / count
	return slope, intercept, true
}
