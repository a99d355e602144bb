package analysis

import (
	"math"

	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

// ValidateCandles rejects candles that would poison the scoring math. It
// reports the first offending candle.
func ValidateCandles(candles []models.Candle) error {
	for i, c := range candles {
		fields := [...]struct {
			name  string
			value float64
		}{
			{"open", c.Open},
			{"high", c.High},
			{"low", c.Low},
			{"close", c.Close},
			{"volume", c.Volume},
		}
		for _, f := range fields {
			if math.IsNaN(f.value) {
				return apperrors.NewInvalidInputError(i, f.name, f.value, "value is NaN")
			}
			if math.IsInf(f.value, 0) {
				return apperrors.NewInvalidInputError(i, f.name, f.value, "value is infinite")
			}
		}
		if c.Volume < 0 {
			return apperrors.NewInvalidInputError(i, "volume", c.Volume, "negative volume")
		}
		for _, f := range fields[:4] {
			if f.value <= 0 {
				return apperrors.NewInvalidInputError(i, f.name, f.value, "price must be positive")
			}
		}
		if c.High < math.Max(c.Open, c.Close) {
			return apperrors.NewInvalidInputError(i, "high", c.High, "high below open/close")
		}
		if c.Low > math.Min(c.Open, c.Close) {
			return apperrors.NewInvalidInputError(i, "low", c.Low, "low above open/close")
		}
	}
	return nil
}

// RequireCandles fails fast when fewer than required candles are available.
func RequireCandles(operation string, candles []models.Candle, required int) error {
	if len(candles) == 0 || len(candles) < required {
		return apperrors.NewInsufficientDataError(operation, required, len(candles))
	}
	return nil
}
