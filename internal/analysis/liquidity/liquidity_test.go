package liquidity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelscope/internal/analysis"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

var t0 = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func supportLevel(price, score float64) analysis.EnhancedLevel {
	return analysis.EnhancedLevel{
		Level:         analysis.Level{Price: price, Type: analysis.LevelSupport, Touches: 3},
		StrengthScore: score,
	}
}

// sweepSeries is eleven quiet candles with lows at 95.2, then a candle that
// wicks to 94.5 on double volume and closes at 95.3, then the given closes.
func sweepSeries(after ...float64) []models.Candle {
	candles := make([]models.Candle, 0, 12+len(after))
	for i := 0; i < 11; i++ {
		candles = append(candles, models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      96, High: 97, Low: 95.2, Close: 96.5, Volume: 1000,
		})
	}
	candles = append(candles, models.Candle{
		Timestamp: t0.Add(11 * time.Hour),
		Open:      95.5, High: 96, Low: 94.5, Close: 95.3, Volume: 2000,
	})
	for i, cl := range after {
		candles = append(candles, models.Candle{
			Timestamp: t0.Add(time.Duration(12+i) * time.Hour),
			Open:      cl, High: cl + 0.3, Low: cl - 0.3, Close: cl, Volume: 1000,
		})
	}
	return candles
}

func TestDetect_ConfirmedGrab(t *testing.T) {
	cfg := analysis.DefaultConfig()
	grabs, err := Detect(sweepSeries(96, 96.2, 96.4), []analysis.EnhancedLevel{supportLevel(95, 0.6)}, cfg)
	require.NoError(t, err)
	require.Len(t, grabs, 1)

	g := grabs[0]
	assert.Equal(t, analysis.LevelSupport, g.Type)
	assert.Equal(t, 95.0, g.Price)
	assert.Equal(t, 94.5, g.Extreme)
	assert.True(t, t0.Add(11*time.Hour).Equal(g.Timestamp))
	assert.GreaterOrEqual(t, g.VolumeSpike, 2.0)
	assert.Greater(t, g.Strength, 0.0)
	assert.LessOrEqual(t, g.Strength, 1.0)
	assert.True(t, g.ReversalConfirmed)
	assert.Equal(t, analysis.ConfirmationConfirmed, g.Status)
}

func TestDetect_Resolution(t *testing.T) {
	level := []analysis.EnhancedLevel{supportLevel(95, 0.6)}
	cfg := analysis.DefaultConfig()

	tests := []struct {
		name   string
		after  []float64
		status analysis.ConfirmationStatus
	}{
		{"window cut by end of data", []float64{96}, analysis.ConfirmationPending},
		{"no following candles", nil, analysis.ConfirmationPending},
		{"close back below level", []float64{96, 94.9, 96}, analysis.ConfirmationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grabs, err := Detect(sweepSeries(tt.after...), level, cfg)
			require.NoError(t, err)
			require.Len(t, grabs, 1)
			assert.Equal(t, tt.status, grabs[0].Status)
			assert.False(t, grabs[0].ReversalConfirmed)
		})
	}
}

func TestDetect_NoGrabWhenClosingBelow(t *testing.T) {
	candles := sweepSeries(96, 96, 96)
	candles[11].Close = 94.8
	candles[11].Open = 95
	grabs, err := Detect(candles, []analysis.EnhancedLevel{supportLevel(95, 0.6)}, analysis.DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, grabs)
}

func TestDetect_Resistance(t *testing.T) {
	candles := make([]models.Candle, 0, 15)
	for i := 0; i < 11; i++ {
		candles = append(candles, models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      103.5, High: 104.8, Low: 103, Close: 104, Volume: 1000,
		})
	}
	candles = append(candles, models.Candle{
		Timestamp: t0.Add(11 * time.Hour),
		Open:      104.5, High: 105.8, Low: 104.2, Close: 104.7, Volume: 3000,
	})
	for i := 0; i < 3; i++ {
		candles = append(candles, models.Candle{
			Timestamp: t0.Add(time.Duration(12+i) * time.Hour),
			Open:      104, High: 104.4, Low: 103.6, Close: 104, Volume: 1000,
		})
	}
	level := analysis.EnhancedLevel{
		Level:         analysis.Level{Price: 105, Type: analysis.LevelResistance, Touches: 3},
		StrengthScore: 0.2,
	}

	grabs, err := Detect(candles, []analysis.EnhancedLevel{level}, analysis.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, grabs, 1)
	assert.Equal(t, 105.8, grabs[0].Extreme)
	assert.InDelta(t, 3.0, grabs[0].VolumeSpike, 1e-9)
	assert.InDelta(t, 0.6, grabs[0].Strength, 1e-9)
	assert.Equal(t, analysis.ConfirmationConfirmed, grabs[0].Status)
}

func TestDetect_Errors(t *testing.T) {
	cfg := analysis.DefaultConfig()
	level := []analysis.EnhancedLevel{supportLevel(95, 0.6)}

	_, err := Detect(sweepSeries()[:1], level, cfg)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))

	_, err = Detect(nil, level, cfg)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))

	bad := sweepSeries(96)
	bad[3].Low = 99
	_, err = Detect(bad, level, cfg)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestDetect_SortedByStrength(t *testing.T) {
	levels := []analysis.EnhancedLevel{supportLevel(95, 0.1), supportLevel(95.1, 0.4)}
	grabs, err := Detect(sweepSeries(96, 96, 96), levels, analysis.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, grabs, 2)
	assert.Equal(t, 95.1, grabs[0].Price)
	assert.GreaterOrEqual(t, grabs[0].Strength, grabs[1].Strength)
}

func newTestTracker(t *testing.T, tcfg TrackerConfig) *Tracker {
	t.Helper()
	tr, err := NewTracker(analysis.DefaultConfig(), tcfg, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestTracker_MatchesBatch(t *testing.T) {
	candles := sweepSeries(96, 96.2, 96.4)
	level := []analysis.EnhancedLevel{supportLevel(95, 0.6)}

	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.SetLevels(level)

	var events []analysis.LiquidityGrab
	for i, c := range candles {
		out, err := tr.Observe(c)
		require.NoError(t, err)
		if i == 11 {
			require.Len(t, out, 1)
			assert.Equal(t, analysis.ConfirmationPending, out[0].Status)
			assert.Len(t, tr.Pending(), 1)
		}
		events = append(events, out...)
	}

	require.Len(t, events, 2)
	final := events[1]
	assert.Equal(t, analysis.ConfirmationConfirmed, final.Status)
	assert.True(t, final.ReversalConfirmed)
	assert.Empty(t, tr.Pending())

	batch, err := Detect(candles, level, analysis.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, batch[0], final)

	stats := tr.Stats()
	assert.Equal(t, uint64(len(candles)), stats.CandlesObserved)
	assert.Equal(t, uint64(1), stats.GrabsDetected)
	assert.Equal(t, uint64(1), stats.GrabsConfirmed)
}

func TestTracker_Failure(t *testing.T) {
	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.SetLevels([]analysis.EnhancedLevel{supportLevel(95, 0.6)})

	var last []analysis.LiquidityGrab
	for _, c := range sweepSeries(96, 94.8) {
		out, err := tr.Observe(c)
		require.NoError(t, err)
		if len(out) > 0 {
			last = out
		}
	}
	require.Len(t, last, 1)
	assert.Equal(t, analysis.ConfirmationFailed, last[0].Status)
	assert.Equal(t, uint64(1), tr.Stats().GrabsFailed)
}

func TestTracker_EvictsOldest(t *testing.T) {
	tr := newTestTracker(t, TrackerConfig{MaxPending: 1, BufferSize: 1})
	tr.SetLevels([]analysis.EnhancedLevel{supportLevel(95, 0.6), supportLevel(95.1, 0.6)})

	var out []analysis.LiquidityGrab
	for _, c := range sweepSeries() {
		got, err := tr.Observe(c)
		require.NoError(t, err)
		out = append(out, got...)
	}

	require.Len(t, out, 3)
	failed := 0
	for _, g := range out {
		if g.Status == analysis.ConfirmationFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, tr.Pending(), 1)
	assert.Equal(t, uint64(1), tr.Stats().GrabsEvicted)
}

func TestTracker_RejectsInvalidCandle(t *testing.T) {
	tr := newTestTracker(t, DefaultTrackerConfig())
	_, err := tr.Observe(models.Candle{Open: 10, High: 9, Low: 8, Close: 10})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestTracker_Run(t *testing.T) {
	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.SetLevels([]analysis.EnhancedLevel{supportLevel(95, 0.6)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := make(chan models.Candle)
	out := tr.Run(ctx, in)
	go func() {
		defer close(in)
		for _, c := range sweepSeries(96, 96.2, 96.4) {
			select {
			case in <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	var got []analysis.LiquidityGrab
	for g := range out {
		got = append(got, g)
	}
	require.Len(t, got, 2)
	assert.Equal(t, analysis.ConfirmationPending, got[0].Status)
	assert.Equal(t, analysis.ConfirmationConfirmed, got[1].Status)
}
