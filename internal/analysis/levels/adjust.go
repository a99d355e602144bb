package levels

import (
	"strings"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	"levelscope/internal/models"
)

// Adjustment nudges, as fractions of the level price.
const (
	highVolumeNudge  = 0.02
	rejectionNudge   = 0.01
	retracementNudge = -0.005
)

// AdjustLevels nudges level prices using recent price action and the
// market bias. A level is adjusted when the volume traded at it exceeds
// 1.5x the window average, when it rejected price more than twice, or when
// it is a Fibonacci retracement while the bias is bullish. Only levels with
// a non-zero total nudge are returned, in input order.
func AdjustLevels(levels []analysis.EnhancedLevel, candles []models.Candle, bias analysis.MarketBias, cfg analysis.Config) ([]analysis.LevelAdjustment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	if err := analysis.RequireCandles("level adjustment", candles, 1); err != nil {
		return nil, err
	}

	avgVolume := indicators.AverageVolume(candles)

	var out []analysis.LevelAdjustment
	for _, level := range levels {
		tol := cfg.TouchTolerance(level.Price)

		var touchVolume float64
		touching, rejections := 0, 0
		for _, c := range candles {
			if !near(c, level.Price, tol) {
				continue
			}
			touching++
			touchVolume += c.Volume
			if rejected(c, level) {
				rejections++
			}
		}

		volumeRatio := 0.0
		if touching > 0 {
			volumeRatio = indicators.SafeDiv(touchVolume/float64(touching), avgVolume)
		}

		var factor float64
		var reasons []string
		if volumeRatio > 1.5 {
			factor += highVolumeNudge
			reasons = append(reasons, "high_volume")
		}
		if rejections > 2 {
			factor += rejectionNudge
			reasons = append(reasons, "multiple_rejections")
		}
		if bias == analysis.BiasBullish && level.HasSource(analysis.SourceFibonacci) {
			factor += retracementNudge
			reasons = append(reasons, "retracement_vs_trend")
		}
		if factor == 0 {
			continue
		}

		adjusted := level
		adjusted.Sources = append([]analysis.SourceKind(nil), level.Sources...)
		adjusted.Price = level.Price * (1 + factor)

		out = append(out, analysis.LevelAdjustment{
			OriginalLevel:    level,
			AdjustedLevel:    adjusted,
			AdjustmentFactor: factor,
			Reason:           strings.Join(reasons, ", "),
			Confidence: indicators.Clamp01(
				0.3 + 0.1*float64(rejections) + 0.2*indicators.Clamp01(volumeRatio-1),
			),
		})
	}
	return out, nil
}

// rejected reports a close back on the level's side after trading at it.
func rejected(c models.Candle, level analysis.EnhancedLevel) bool {
	if level.Type == analysis.LevelSupport {
		return c.Close > level.Price && c.IsBullish()
	}
	return c.Close < level.Price && c.Close < c.Open
}
