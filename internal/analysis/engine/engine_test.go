package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/liquidity"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rangeSeries(symbol string, n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		ts := day0.Add(time.Duration(i) * 24 * time.Hour)
		c := models.Candle{Symbol: symbol, Timeframe: "1d", Timestamp: ts, Volume: 1000}
		switch i % 10 {
		case 3:
			c.Open, c.High, c.Low, c.Close, c.Volume = 99, 99.9, 95, 99.6, 1500
		case 8:
			c.Open, c.High, c.Low, c.Close, c.Volume = 101, 105, 100.1, 100.4, 1500
		default:
			mid := 100 + 1.5*math.Sin(float64(i)*2*math.Pi/7)
			c.Open, c.Close = mid-0.3, mid+0.3
			if i%2 == 1 {
				c.Open, c.Close = c.Close, c.Open
			}
			c.High = math.Max(c.Open, c.Close) + 0.4
			c.Low = math.Min(c.Open, c.Close) - 0.4
		}
		candles[i] = c
	}
	return candles
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cfg := analysis.DefaultConfig()
	cfg.LookbackPeriod = 100
	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	return a
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer(t)
	report, err := a.Analyze(context.Background(), "TEST", rangeSeries("TEST", 120))
	require.NoError(t, err)

	assert.Equal(t, "TEST", report.Symbol)
	assert.Equal(t, "1d", report.Timeframe)
	assert.Equal(t, 100, report.Candles)
	assert.True(t, day0.Add(119*24*time.Hour).Equal(report.AsOf))
	require.NotEmpty(t, report.Levels)
	require.NotNil(t, report.Confluence)
	require.NotNil(t, report.Fibonacci)
	require.NotNil(t, report.VolumeProfile)
	require.NotNil(t, report.PivotChannel)
	assert.NotNil(t, report.Grabs)
	assert.NotNil(t, report.Adjustments)

	grabs, err := liquidity.Detect(rangeSeries("TEST", 120)[20:], report.Levels, a.Config())
	require.NoError(t, err)
	assert.ElementsMatch(t, grabs, report.Grabs)

	for _, z := range report.Confluence.Zones {
		assert.GreaterOrEqual(t, len(z.Factors), a.Config().Confluence.MinFactors)
		assert.True(t, z.Reliability >= 0 && z.Reliability <= 1)
		assert.True(t, z.BreakoutProbability >= 0 && z.BreakoutProbability <= 1)
	}
	assert.True(t, report.Confluence.ConfidenceScore >= 0 && report.Confluence.ConfidenceScore <= 1)

	if report.NearestSupport != nil {
		assert.LessOrEqual(t, report.NearestSupport.Price, report.CurrentPrice)
	}
	if report.NearestResistance != nil {
		assert.GreaterOrEqual(t, report.NearestResistance.Price, report.CurrentPrice)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newTestAnalyzer(t)
	candles := rangeSeries("TEST", 120)

	first, err := a.Analyze(context.Background(), "TEST", candles)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "TEST", candles)
	require.NoError(t, err)

	first.Elapsed, second.Elapsed = 0, 0
	assert.Equal(t, first, second)
}

func TestAnalyze_Errors(t *testing.T) {
	a := newTestAnalyzer(t)

	_, err := a.Analyze(context.Background(), "SHORT", rangeSeries("SHORT", 10))
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, "TEST", rangeSeries("TEST", 120))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAnalyzer_Invalid(t *testing.T) {
	_, err := NewAnalyzer(analysis.DefaultConfig(), WithProfileBins(0))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))

	cfg := analysis.DefaultConfig()
	cfg.LookbackPeriod = 1
	_, err = NewAnalyzer(cfg)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))
}

func TestAnalyzeMany(t *testing.T) {
	a := newTestAnalyzer(t)
	series := []Series{
		{Symbol: "AAA", Candles: rangeSeries("AAA", 120)},
		{Symbol: "BBB", Candles: rangeSeries("BBB", 5)},
		{Symbol: "CCC", Candles: rangeSeries("CCC", 150)},
	}

	results := a.AnalyzeMany(context.Background(), series, 2)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, series[i].Symbol, r.Symbol)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, "AAA", results[0].Report.Symbol)
	assert.True(t, apperrors.Is(results[1].Err, apperrors.ErrInsufficientData))
	require.NoError(t, results[2].Err)
	assert.Equal(t, 100, results[2].Report.Candles)
}

func TestAnalyzeMany_Canceled(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := a.AnalyzeMany(ctx, []Series{{Symbol: "AAA", Candles: rangeSeries("AAA", 120)}}, 1)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
