package confluence

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

func candlesAt(closes ...float64) []models.Candle {
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100,
		}
	}
	return out
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(analysis.DefaultConfig())
	require.NoError(t, err)
	return b
}

func TestBuild_SingleZone(t *testing.T) {
	inputs := []Input{
		{Price: 100, Type: FactorSupport, Strength: 0.8, Description: "support"},
		{Price: 100.3, Type: FactorFibonacci, Strength: 0.8, Description: "fib 61.8"},
		{Price: 110, Type: FactorResistance, Strength: 0.5, Description: "lonely"},
	}

	res, err := newTestBuilder(t).Build(inputs, candlesAt(101, 103, 105))
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalZones)
	require.Len(t, res.Zones, 1)

	z := res.Zones[0]
	assert.InDelta(t, 100.15, z.PriceLevel, 1e-9)
	assert.InDelta(t, 0.8, z.Strength, 1e-9)
	assert.Equal(t, analysis.ZoneSupport, z.ZoneType)
	assert.Len(t, z.Factors, 2)
	assert.InDelta(t, 0.7*0.8+0.3*2.0/5, z.Reliability, 1e-9)
	assert.InDelta(t, 1-10*(105-100.15)/100.15, z.BreakoutProbability, 1e-9)
	// only the first candle trades within 2% of 100.15
	assert.InDelta(t, 0.1, z.HistoricalSignificance, 1e-9)

	assert.Equal(t, 1, res.StrongZones)
	assert.Equal(t, []float64{z.PriceLevel}, res.CriticalLevels)
	assert.Equal(t, analysis.BiasBullish, res.MarketBias)
	assert.InDelta(t, 0.7*0.8+0.3, res.ConfidenceScore, 1e-9)
	assert.Equal(t, 105.0, res.CurrentPrice)
}

func TestBuild_DuplicatesDoNotCount(t *testing.T) {
	inputs := []Input{
		{Price: 100, Type: FactorSupport, Strength: 0.9},
		{Price: 100, Type: FactorSupport, Strength: 0.9},
	}
	res, err := newTestBuilder(t).Build(inputs, candlesAt(100))
	require.NoError(t, err)
	assert.Empty(t, res.Zones)
	assert.Equal(t, analysis.BiasNeutral, res.MarketBias)
	assert.Equal(t, 0.0, res.ConfidenceScore)
	assert.NotNil(t, res.CriticalLevels)
}

func TestBuild_BearishBias(t *testing.T) {
	inputs := []Input{
		{Price: 110, Type: FactorResistance, Strength: 0.9},
		{Price: 110.2, Type: FactorValueAreaHigh, Strength: 0.9},
		{Price: 120, Type: FactorResistance, Strength: 0.8},
		{Price: 120.1, Type: FactorFibonacci, Strength: 0.8},
		{Price: 90, Type: FactorSupport, Strength: 0.4},
		{Price: 90.1, Type: FactorFibonacci, Strength: 0.4},
	}
	res, err := newTestBuilder(t).Build(inputs, candlesAt(100))
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalZones)
	assert.Equal(t, 2, res.StrongZones)
	assert.Equal(t, analysis.BiasBearish, res.MarketBias)

	for i := 1; i < len(res.Zones); i++ {
		assert.GreaterOrEqual(t, res.Zones[i-1].Strength, res.Zones[i].Strength)
	}
	assert.Equal(t, analysis.ZoneResistance, res.Zones[0].ZoneType)
	assert.Equal(t, analysis.ZoneSupport, res.Zones[2].ZoneType)
}

func TestBuild_ReversalZone(t *testing.T) {
	inputs := []Input{
		{Price: 99.875, Type: FactorSupport, Strength: 0.5},
		{Price: 100.125, Type: FactorResistance, Strength: 0.5},
	}
	res, err := newTestBuilder(t).Build(inputs, candlesAt(100))
	require.NoError(t, err)
	require.Len(t, res.Zones, 1)
	assert.Equal(t, analysis.ZoneReversal, res.Zones[0].ZoneType)
	assert.Equal(t, 1.0, res.Zones[0].BreakoutProbability)
}

func TestBuild_Errors(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Build(nil, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))

	bad := candlesAt(100, 101)
	bad[1].Volume = math.Inf(1)
	_, err = b.Build(nil, bad)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestInputConstructors(t *testing.T) {
	fib := indicators.NewFibonacciRetracement(2).CalculateLevels(200, 100, true)
	fibInputs := FromFibonacci(fib)
	assert.Len(t, fibInputs, len(indicators.RetracementRatios)+len(indicators.ExtensionRatios))
	assert.Equal(t, FactorFibonacci, fibInputs[0].Type)
	assert.Equal(t, FactorFibonacciExtension, fibInputs[len(fibInputs)-1].Type)

	vp := FromVolumeProfile(&indicators.VolumeProfileResult{POC: 100, VAH: 102, VAL: 98})
	require.Len(t, vp, 3)
	assert.Equal(t, 0.8, vp[0].Strength)
	assert.Equal(t, 0.6, vp[1].Strength)

	ch := FromPivotChannel(&indicators.PivotChannelResult{UpperChannel: 105, LowerChannel: 95, CenterLine: 100, Strength: 0.5})
	require.Len(t, ch, 3)
	assert.InDelta(t, 0.4, ch[2].Strength, 1e-9)

	levels := FromLevels([]analysis.EnhancedLevel{
		{Level: analysis.Level{Price: 95, Type: analysis.LevelSupport, Touches: 4}, StrengthScore: 0.7},
	})
	require.Len(t, levels, 1)
	assert.Equal(t, FactorSupport, levels[0].Type)
	assert.Equal(t, 0.7, levels[0].Strength)

	assert.Nil(t, FromFibonacci(nil))
	assert.Nil(t, FromVolumeProfile(nil))
	assert.Nil(t, FromPivotChannel(nil))
}

func TestBreakoutProbability(t *testing.T) {
	assert.Equal(t, 1.0, BreakoutProbability(100, 100))
	assert.Equal(t, 0.1, BreakoutProbability(150, 100))
	assert.InDelta(t, 0.5, BreakoutProbability(105, 100), 1e-9)
	assert.Equal(t, 0.1, BreakoutProbability(100, 0))
}

func TestProperty_ZonesBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	cfg := analysis.DefaultConfig()
	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	kinds := []string{FactorSupport, FactorResistance, FactorFibonacci, FactorPointOfControl, FactorPivotChannelUpper}

	properties.Property("zone metrics stay in [0,1] and satisfy min factors", prop.ForAll(
		func(prices []float64, current float64) bool {
			inputs := make([]Input, len(prices))
			for i, p := range prices {
				inputs[i] = Input{Price: p, Type: kinds[i%len(kinds)], Strength: float64(i%10) / 9}
			}
			res, err := b.Build(inputs, candlesAt(current))
			if err != nil {
				return false
			}
			in01 := func(v float64) bool { return v >= 0 && v <= 1 }
			if !in01(res.ConfidenceScore) || res.TotalZones != len(res.Zones) {
				return false
			}
			for _, z := range res.Zones {
				if len(z.Factors) < cfg.Confluence.MinFactors {
					return false
				}
				if !in01(z.Strength) || !in01(z.Reliability) || !in01(z.BreakoutProbability) || !in01(z.HistoricalSignificance) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(90, 110)),
		gen.Float64Range(90, 110),
	))

	properties.TestingRun(t)
}
