package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"levelscope/internal/models"
)

// Saving candles and reading them back yields the same series.
func TestProperty_CandleRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "property.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	timeframeGen := gen.OneConstOf("1m", "5m", "15m", "1h", "4h", "1d")
	run := 0

	properties.Property("save then get returns equivalent candles", prop.ForAll(
		func(timeframe string, count int, basePrice, baseVolume float64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("SYM%d", run)

			candles := generateTestCandles(count, basePrice, baseVolume)
			if err := s.SaveCandles(ctx, symbol, timeframe, candles); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			from := candles[0].Timestamp.Add(-time.Second)
			to := candles[len(candles)-1].Timestamp.Add(time.Second)
			retrieved, err := s.GetCandles(ctx, symbol, timeframe, from, to)
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}
			if len(retrieved) != len(candles) {
				t.Logf("Count mismatch: expected %d, got %d", len(candles), len(retrieved))
				return false
			}
			for i, orig := range candles {
				if !candlesEqual(orig, retrieved[i]) {
					t.Logf("Candle mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}
			return true
		},
		timeframeGen,
		gen.IntRange(1, 20),
		gen.Float64Range(1, 5000),
		gen.Float64Range(0, 1e6),
	))

	properties.Property("latest n is the tail of the full series", prop.ForAll(
		func(count, n int) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("TAIL%d", run)

			candles := generateTestCandles(count, 100, 1000)
			if err := s.SaveCandles(ctx, symbol, "1m", candles); err != nil {
				return false
			}
			tail, err := s.LatestCandles(ctx, symbol, "1m", n)
			if err != nil {
				return false
			}
			want := candles[max(0, count-n):]
			if len(tail) != len(want) {
				return false
			}
			for i := range want {
				if !candlesEqual(want[i], tail[i]) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

func generateTestCandles(count int, basePrice, baseVolume float64) []models.Candle {
	candles := make([]models.Candle, count)
	baseTime := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		close := basePrice + variation*0.5

		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      math.Max(open, close) * 1.01,
			Low:       math.Min(open, close) * 0.99,
			Close:     close,
			Volume:    baseVolume + float64(i*1000),
		}
	}

	return candles
}

// REAL columns hold float64 exactly, so equality is exact.
func candlesEqual(a, b models.Candle) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		a.Open == b.Open &&
		a.High == b.High &&
		a.Low == b.Low &&
		a.Close == b.Close &&
		a.Volume == b.Volume
}
