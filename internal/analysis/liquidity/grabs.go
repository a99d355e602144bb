// Package liquidity detects liquidity grabs: a wick that pierces a known
// level, closes back on the level's side and is then confirmed or refuted
// by the candles that follow.
package liquidity

import (
	"sort"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

// VolumeLookback is the number of prior candles averaged for the volume spike.
const VolumeLookback = 10

// Detect scans every candle after the first against every level. Grabs whose
// confirmation window runs past the last candle are reported as pending.
// Results are sorted by strength descending, then timestamp, then price.
func Detect(candles []models.Candle, levels []analysis.EnhancedLevel, cfg analysis.Config) ([]analysis.LiquidityGrab, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	if len(candles) < 2 {
		return nil, apperrors.NewInsufficientDataError("liquidity grabs", 2, len(candles))
	}

	var grabs []analysis.LiquidityGrab
	for _, level := range levels {
		if level.Price <= 0 {
			continue
		}
		for i := 1; i < len(candles); i++ {
			avg := indicators.TrailingAverageVolume(candles, i, VolumeLookback)
			grab, ok := matchGrab(level, candles[i-1], candles[i], avg, cfg)
			if !ok {
				continue
			}
			grab.Status = resolve(grab, candles[i+1:], cfg.ReversalConfirmationPeriod)
			grab.ReversalConfirmed = grab.Status == analysis.ConfirmationConfirmed
			grabs = append(grabs, grab)
		}
	}

	SortGrabs(grabs)
	return grabs, nil
}

// SortGrabs orders grabs by strength descending, then timestamp, then price.
func SortGrabs(grabs []analysis.LiquidityGrab) {
	sort.SliceStable(grabs, func(i, j int) bool {
		a, b := grabs[i], grabs[j]
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Price < b.Price
	})
}

// matchGrab tests cur for a grab at level. The previous candle must not already
// be beyond the tolerance, so one sweep is reported once.
func matchGrab(level analysis.EnhancedLevel, prev, cur models.Candle, trailingAvg float64, cfg analysis.Config) (analysis.LiquidityGrab, bool) {
	price := level.Price
	tol := cfg.GrabTolerance(price)

	var extreme float64
	switch level.Type {
	case analysis.LevelSupport:
		if !(cur.Low < price-tol && prev.Low >= price-tol && cur.Close > price) {
			return analysis.LiquidityGrab{}, false
		}
		extreme = cur.Low
	case analysis.LevelResistance:
		if !(cur.High > price+tol && prev.High <= price+tol && cur.Close < price) {
			return analysis.LiquidityGrab{}, false
		}
		extreme = cur.High
	default:
		return analysis.LiquidityGrab{}, false
	}

	spike := indicators.SafeDiv(cur.Volume, trailingAvg)
	return analysis.LiquidityGrab{
		Timestamp:   cur.Timestamp,
		Price:       price,
		Type:        level.Type,
		Strength:    indicators.Clamp01(spike * level.StrengthScore),
		Status:      analysis.ConfirmationPending,
		VolumeSpike: spike,
		Extreme:     extreme,
	}, true
}

// holds reports whether c closed on the level's side.
func holds(grab analysis.LiquidityGrab, c models.Candle) bool {
	if grab.Type == analysis.LevelSupport {
		return c.Close > grab.Price
	}
	return c.Close < grab.Price
}

// resolve checks up to period following candles. Any close on the wrong side
// fails the grab; a window cut short by the end of data stays pending.
func resolve(grab analysis.LiquidityGrab, after []models.Candle, period int) analysis.ConfirmationStatus {
	checked := 0
	for _, c := range after {
		if checked == period {
			break
		}
		if !holds(grab, c) {
			return analysis.ConfirmationFailed
		}
		checked++
	}
	if checked < period {
		return analysis.ConfirmationPending
	}
	return analysis.ConfirmationConfirmed
}
