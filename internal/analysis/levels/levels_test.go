package levels

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/liquidity"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// rangeSeries oscillates between roughly 97.8 and 102.2 and tags support at
// exactly 95 every tenth candle and resistance at exactly 105 five candles
// later.
func rangeSeries(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		ts := day0.Add(time.Duration(i) * 24 * time.Hour)
		switch i % 10 {
		case 3:
			candles[i] = models.Candle{Timestamp: ts, Open: 99, High: 99.9, Low: 95, Close: 99.6, Volume: 1500}
		case 8:
			candles[i] = models.Candle{Timestamp: ts, Open: 101, High: 105, Low: 100.1, Close: 100.4, Volume: 1500}
		default:
			mid := 100 + 1.5*math.Sin(float64(i)*2*math.Pi/7)
			open, cl := mid-0.3, mid+0.3
			if i%2 == 1 {
				open, cl = cl, open
			}
			candles[i] = models.Candle{
				Timestamp: ts,
				Open:      open,
				High:      math.Max(open, cl) + 0.4,
				Low:       math.Min(open, cl) - 0.4,
				Close:     cl,
				Volume:    1000,
			}
		}
	}
	return candles
}

func testConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.LookbackPeriod = 100
	return cfg
}

func newTestDetector(t *testing.T, cfg analysis.Config, opts ...Option) *Detector {
	t.Helper()
	d, err := NewDetector(cfg, opts...)
	require.NoError(t, err)
	return d
}

func findLevel(levels []analysis.EnhancedLevel, price float64, typ analysis.LevelType) *analysis.EnhancedLevel {
	for i := range levels {
		if levels[i].Type == typ && math.Abs(levels[i].Price-price) <= price*0.005 {
			return &levels[i]
		}
	}
	return nil
}

func assertWellFormed(t *testing.T, levels []analysis.EnhancedLevel, cfg analysis.Config) {
	t.Helper()
	for i, l := range levels {
		assert.GreaterOrEqual(t, l.StrengthScore, 0.0)
		assert.LessOrEqual(t, l.StrengthScore, 1.0)
		assert.GreaterOrEqual(t, l.StrengthScore, cfg.MinStrength)
		assert.GreaterOrEqual(t, l.Touches, cfg.MinTouches)
		for _, f := range []float64{l.VolumeConfirmation, l.TimeStrength, l.PriceActionStrength, l.RejectionStrength, l.ReversalPotential} {
			assert.True(t, f >= 0 && f <= 1, "factor out of range: %f", f)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, levels[i-1].StrengthScore, l.StrengthScore, "levels must be sorted by score")
		}
	}
}

func TestDetectLevels_RangeBoundMarket(t *testing.T) {
	cfg := testConfig()
	levels, err := newTestDetector(t, cfg).DetectLevels(rangeSeries(100))
	require.NoError(t, err)
	require.NotEmpty(t, levels)
	assertWellFormed(t, levels, cfg)

	support := findLevel(levels, 95, analysis.LevelSupport)
	require.NotNil(t, support, "expected support near 95 in %+v", levels)
	assert.GreaterOrEqual(t, support.Touches, 10)
	assert.True(t, support.HasSource(analysis.SourcePivot))
	assert.True(t, support.HasSource(analysis.SourceCluster))
	assert.Greater(t, support.RejectionStrength, 0.5)

	resistance := findLevel(levels, 105, analysis.LevelResistance)
	require.NotNil(t, resistance, "expected resistance near 105 in %+v", levels)
	assert.GreaterOrEqual(t, resistance.Touches, 10)
}

func TestDetectLevels_Deterministic(t *testing.T) {
	d := newTestDetector(t, testConfig())
	candles := rangeSeries(120)

	first, err := d.DetectLevels(candles)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.DetectLevels(candles)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDetectLevels_UsesTrailingWindow(t *testing.T) {
	cfg := testConfig()
	d := newTestDetector(t, cfg)

	candles := rangeSeries(150)
	full, err := d.DetectLevels(candles)
	require.NoError(t, err)
	tail, err := d.DetectLevels(candles[50:])
	require.NoError(t, err)
	assert.Equal(t, tail, full)
}

func TestDetectLevels_FlatInput(t *testing.T) {
	candles := make([]models.Candle, 100)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: day0.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 100, Low: 100, Close: 100, Volume: 1000,
		}
	}
	levels, err := newTestDetector(t, testConfig()).DetectLevels(candles)
	require.NoError(t, err)
	for _, l := range levels {
		assert.Less(t, l.StrengthScore, 0.1)
	}
}

func TestDetectLevels_ZeroVolume(t *testing.T) {
	candles := rangeSeries(100)
	for i := range candles {
		candles[i].Volume = 0
	}
	cfg := testConfig()
	levels, err := newTestDetector(t, cfg).DetectLevels(candles)
	require.NoError(t, err)
	assertWellFormed(t, levels, cfg)
	for _, l := range levels {
		assert.Equal(t, 0.0, l.VolumeConfirmation)
	}
}

func TestDetectLevels_Errors(t *testing.T) {
	d := newTestDetector(t, testConfig())

	_, err := d.DetectLevels(rangeSeries(10))
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData), "got %v", err)

	var insufficient *apperrors.InsufficientDataError
	require.True(t, apperrors.As(err, &insufficient))
	assert.Equal(t, 100, insufficient.Required)
	assert.Equal(t, 10, insufficient.Got)

	_, err = d.DetectLevels(nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))

	bad := rangeSeries(100)
	bad[42].Close = math.NaN()
	_, err = d.DetectLevels(bad)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	bad = rangeSeries(100)
	bad[7].Volume = -1
	_, err = d.DetectLevels(bad)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.MinStrength = 1.5
	_, err := NewDetector(cfg)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))
}

func TestDetectLevels_WithClock(t *testing.T) {
	later := day0.Add(400 * 24 * time.Hour)
	cfg := testConfig()
	cfg.MinStrength = 0
	d := newTestDetector(t, cfg, WithClock(func() time.Time { return later }))

	levels, err := d.DetectLevels(rangeSeries(100))
	require.NoError(t, err)
	require.NotEmpty(t, levels)
	for _, l := range levels {
		assert.Equal(t, 0.1, l.TimeStrength)
	}
}

func TestMergeLevels(t *testing.T) {
	t1 := day0
	t2 := day0.Add(time.Hour)
	in := []analysis.Level{
		{Price: 100.5, Type: analysis.LevelSupport, Touches: 2, Strength: 0.5, LastTouch: t2, Sources: []analysis.SourceKind{analysis.SourcePivot}},
		{Price: 100, Type: analysis.LevelSupport, Touches: 3, Strength: 0.5, LastTouch: t1, Sources: []analysis.SourceKind{analysis.SourceCluster}},
		{Price: 100.2, Type: analysis.LevelResistance, Touches: 2, Strength: 0.9},
		{Price: 110, Type: analysis.LevelSupport, Touches: 4, Strength: 0.1, LiquidityGrab: true},
	}

	out := MergeLevels(in)
	require.Len(t, out, 4)

	// the resistance at 100.2 sorts between the two supports and blocks them
	assert.Equal(t, 100.0, out[0].Price)
	assert.Equal(t, analysis.LevelResistance, out[1].Type)

	out = MergeLevels([]analysis.Level{in[0], in[1], in[3]})
	require.Len(t, out, 2)
	assert.InDelta(t, 100.25, out[0].Price, 1e-9)
	assert.Equal(t, 5, out[0].Touches)
	assert.Equal(t, 0.5, out[0].Strength)
	assert.True(t, t2.Equal(out[0].LastTouch))
	assert.Equal(t, []analysis.SourceKind{analysis.SourceCluster, analysis.SourcePivot}, out[0].Sources)
	assert.True(t, out[1].LiquidityGrab)

	assert.Nil(t, MergeLevels(nil))
}

func TestMergeLevels_StrengthWeighted(t *testing.T) {
	out := MergeLevels([]analysis.Level{
		{Price: 100, Type: analysis.LevelSupport, Strength: 0.9},
		{Price: 100.8, Type: analysis.LevelSupport, Strength: 0.1},
	})
	require.Len(t, out, 1)
	assert.InDelta(t, 100.08, out[0].Price, 1e-9)
	assert.Equal(t, 0.9, out[0].Strength)
}

func TestTimeFactor(t *testing.T) {
	ref := day0.Add(100 * 24 * time.Hour)
	ago := func(days float64) time.Time {
		return ref.Add(-time.Duration(days * 24 * float64(time.Hour)))
	}
	tests := []struct {
		name string
		last time.Time
		want float64
	}{
		{"same candle", ref, 0.3},
		{"future touch", ref.Add(time.Hour), 0.3},
		{"four days", ago(4), 0.65},
		{"ten days", ago(10), 1.0},
		{"twenty-two days", ago(22), 0.55},
		{"stale", ago(45), 0.1},
		{"never touched", time.Time{}, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TimeFactor(ref, tt.last), 1e-9)
		})
	}
}

func TestClusterSource(t *testing.T) {
	candles := []models.Candle{
		{Timestamp: day0, Open: 100, High: 100.5, Low: 99.5, Close: 100.2, Volume: 10},
		{Timestamp: day0.Add(time.Hour), Open: 100.2, High: 101, Low: 99.52, Close: 100.8, Volume: 10},
		{Timestamp: day0.Add(2 * time.Hour), Open: 100.8, High: 103, Low: 100.6, Close: 102.5, Volume: 10},
	}
	w := NewWindow(candles, analysis.DefaultConfig(), time.Time{})
	got := ClusterSource{}.Detect(w)

	var support *analysis.Level
	for i := range got {
		if got[i].Type == analysis.LevelSupport {
			support = &got[i]
			break
		}
	}
	require.NotNil(t, support, "expected a support cluster in %+v", got)
	assert.InDelta(t, 99.51, support.Price, 1e-9)
	assert.Equal(t, 2, support.Touches)
	assert.True(t, day0.Add(time.Hour).Equal(support.LastTouch))
}

func TestAdjustLevels(t *testing.T) {
	candles := rangeSeries(100)
	for i := range candles {
		if i%10 == 3 {
			candles[i].Volume = 3000
		}
	}
	support := analysis.EnhancedLevel{Level: analysis.Level{Price: 95, Type: analysis.LevelSupport, Touches: 10}, StrengthScore: 0.8}
	fib := analysis.EnhancedLevel{Level: analysis.Level{
		Price: 120, Type: analysis.LevelResistance,
		Sources: []analysis.SourceKind{analysis.SourceFibonacci},
	}}
	plain := analysis.EnhancedLevel{Level: analysis.Level{Price: 200, Type: analysis.LevelResistance}}

	adjustments, err := AdjustLevels([]analysis.EnhancedLevel{support, fib, plain}, candles, analysis.BiasBullish, testConfig())
	require.NoError(t, err)
	require.Len(t, adjustments, 2)

	a := adjustments[0]
	assert.InDelta(t, 0.03, a.AdjustmentFactor, 1e-12)
	assert.Equal(t, "high_volume, multiple_rejections", a.Reason)
	assert.InDelta(t, 95*1.03, a.AdjustedLevel.Price, 1e-9)
	assert.Equal(t, 95.0, a.OriginalLevel.Price)
	assert.Greater(t, a.Confidence, 0.0)
	assert.LessOrEqual(t, a.Confidence, 1.0)

	b := adjustments[1]
	assert.InDelta(t, -0.005, b.AdjustmentFactor, 1e-12)
	assert.Equal(t, "retracement_vs_trend", b.Reason)

	neutral, err := AdjustLevels([]analysis.EnhancedLevel{fib, plain}, candles, analysis.BiasNeutral, testConfig())
	require.NoError(t, err)
	assert.Empty(t, neutral)

	_, err = AdjustLevels([]analysis.EnhancedLevel{support}, nil, analysis.BiasNeutral, testConfig())
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))
}

func TestNearestLevels(t *testing.T) {
	levels := []analysis.EnhancedLevel{
		{Level: analysis.Level{Price: 90, Type: analysis.LevelSupport}},
		{Level: analysis.Level{Price: 95, Type: analysis.LevelSupport}},
		{Level: analysis.Level{Price: 110, Type: analysis.LevelResistance}},
		{Level: analysis.Level{Price: 104, Type: analysis.LevelResistance}},
	}
	s, r := NearestLevels(levels, 100)
	require.NotNil(t, s)
	require.NotNil(t, r)
	assert.Equal(t, 95.0, s.Price)
	assert.Equal(t, 104.0, r.Price)

	s, r = NearestLevels(levels, 80)
	assert.Nil(t, s)
	assert.Equal(t, 104.0, r.Price)
}

// walkSeries builds a valid candle series from a sequence of steps.
func walkSeries(steps []float64) []models.Candle {
	candles := make([]models.Candle, len(steps))
	price := 100.0
	for i, s := range steps {
		open, cl := price, price+s
		if cl < 1 {
			cl = 1
		}
		candles[i] = models.Candle{
			Timestamp: day0.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, cl) + math.Abs(s)*0.5,
			Low:       math.Max(0.5, math.Min(open, cl)-math.Abs(s)*0.5),
			Close:     cl,
			Volume:    1000 + float64(i%7)*150,
		}
		price = cl
	}
	return candles
}

func TestProperty_DetectLevels(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	cfg := analysis.DefaultConfig()
	d, err := NewDetector(cfg)
	require.NoError(t, err)

	properties.Property("levels are bounded, filtered and sorted", prop.ForAll(
		func(steps []float64) bool {
			levels, err := d.DetectLevels(walkSeries(steps))
			if err != nil {
				return false
			}
			for i, l := range levels {
				if l.StrengthScore < cfg.MinStrength || l.StrengthScore > 1 || l.Touches < cfg.MinTouches {
					return false
				}
				if i > 0 && levels[i-1].StrengthScore < l.StrengthScore {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(60, gen.Float64Range(-2, 2)),
	))

	properties.Property("detection is deterministic", prop.ForAll(
		func(steps []float64) bool {
			candles := walkSeries(steps)
			a, errA := d.DetectLevels(candles)
			b, errB := d.DetectLevels(candles)
			return errA == nil && errB == nil && reflect.DeepEqual(a, b)
		},
		gen.SliceOfN(60, gen.Float64Range(-2, 2)),
	))

	properties.TestingRun(t)
}

func TestProperty_MergeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	toLevels := func(prices []float64) []analysis.Level {
		kinds := []analysis.SourceKind{analysis.SourcePivot, analysis.SourceCluster, analysis.SourceVolumeNode}
		out := make([]analysis.Level, len(prices))
		for i, p := range prices {
			typ := analysis.LevelSupport
			if i%3 == 0 {
				typ = analysis.LevelResistance
			}
			out[i] = analysis.Level{
				Price:     p,
				Type:      typ,
				Touches:   1 + i%4,
				Strength:  float64(i%5) / 4,
				LastTouch: day0.Add(time.Duration(i) * time.Minute),
				Sources:   []analysis.SourceKind{kinds[i%3]},
			}
		}
		return out
	}

	properties.Property("merging twice equals merging once", prop.ForAll(
		func(prices []float64) bool {
			once := MergeLevels(toLevels(prices))
			return reflect.DeepEqual(once, MergeLevels(once))
		},
		gen.SliceOf(gen.Float64Range(95, 105)),
	))

	properties.Property("merged levels are sorted by price", prop.ForAll(
		func(prices []float64) bool {
			merged := MergeLevels(toLevels(prices))
			for i := 1; i < len(merged); i++ {
				if merged[i].Price < merged[i-1].Price {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(95, 105)),
	))

	properties.TestingRun(t)
}

func bar(i int, low, high, volume float64) models.Candle {
	mid := (low + high) / 2
	return models.Candle{
		Timestamp: day0.Add(time.Duration(i) * 24 * time.Hour),
		Open:      mid,
		High:      high,
		Low:       low,
		Close:     mid,
		Volume:    volume,
	}
}

type levelWant struct {
	price   float64
	typ     analysis.LevelType
	touches int
}

func TestPivotSource(t *testing.T) {
	// a single low at index 5, revisited at the two ends of the series
	baseLows := []float64{98.2, 100, 101, 100, 99, 98, 99, 100, 101, 100, 98.3}

	tests := []struct {
		name      string
		lows      map[int]float64
		volumes   map[int]float64
		weighting bool
		want      []levelWant
	}{
		{
			name: "strict low confirmed by two touches",
			want: []levelWant{{98, analysis.LevelSupport, 2}},
		},
		{
			name: "tied lows are not pivots",
			lows: map[int]float64{6: 98},
		},
		{
			name:      "light touches round below min touches",
			volumes:   map[int]float64{0: 400, 10: 400},
			weighting: true,
		},
		{
			name:      "heavy touch capped at two",
			volumes:   map[int]float64{0: 2500, 10: 1000},
			weighting: true,
			want:      []levelWant{{98, analysis.LevelSupport, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := make([]models.Candle, len(baseLows))
			for i, low := range baseLows {
				if v, ok := tt.lows[i]; ok {
					low = v
				}
				volume := 1000.0
				if v, ok := tt.volumes[i]; ok {
					volume = v
				}
				candles[i] = bar(i, low, low+1, volume)
			}

			cfg := analysis.DefaultConfig()
			cfg.PivotWindow = 2
			cfg.MinTouches = 2
			cfg.VolumeWeighting = tt.weighting
			w := Window{Candles: candles, Config: cfg, AvgVolume: 1000}

			got := PivotSource{}.Detect(w)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.InDelta(t, want.price, got[i].Price, 1e-9)
				assert.Equal(t, want.typ, got[i].Type)
				assert.Equal(t, want.touches, got[i].Touches)
				assert.Equal(t, []analysis.SourceKind{analysis.SourcePivot}, got[i].Sources)
				assert.True(t, candles[10].Timestamp.Equal(got[i].LastTouch))
			}
		})
	}
}

func TestVolumeNodeSource(t *testing.T) {
	// grid of five unit bins from 100 to 104
	tests := []struct {
		name    string
		candles []models.Candle
		want    []levelWant
	}{
		{
			name:    "concentrated node",
			candles: []models.Candle{bar(0, 100.2, 100.8, 1000), bar(1, 102.2, 102.8, 9000)},
			want:    []levelWant{{102.5, analysis.LevelResistance, 1}},
		},
		{
			// bin 2 holds 4000 against a 2966 threshold, but 4000/9000*ln(3) < 0.5
			name:    "above threshold but not significant",
			candles: []models.Candle{bar(0, 100.2, 100.8, 1000), bar(1, 102.2, 102.8, 3000), bar(2, 100.1, 104.5, 5000)},
		},
		{
			name:    "significant once the node holds more of the volume",
			candles: []models.Candle{bar(0, 100.2, 100.8, 1000), bar(1, 102.2, 102.8, 3500), bar(2, 100.1, 104.5, 5000)},
			want:    []levelWant{{102.5, analysis.LevelResistance, 2}},
		},
		{
			name:    "uniform volume",
			candles: []models.Candle{bar(0, 100.1, 104.5, 5000)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := 0.0
			for _, c := range tt.candles {
				total += c.Volume
			}
			w := Window{
				Candles:     tt.candles,
				Config:      analysis.DefaultConfig(),
				TotalVolume: total,
				Step:        1,
				LastClose:   101,
				High:        104,
				Low:         100,
			}

			got := VolumeNodeSource{}.Detect(w)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.InDelta(t, want.price, got[i].Price, 1e-9)
				assert.Equal(t, want.typ, got[i].Type)
				assert.Equal(t, want.touches, got[i].Touches)
				assert.Equal(t, 1.0, got[i].Strength)
				assert.Equal(t, []analysis.SourceKind{analysis.SourceVolumeNode}, got[i].Sources)
			}
		})
	}
}

func TestDetect_GrabsAtReportedLevels(t *testing.T) {
	cfg := testConfig()
	candles := rangeSeries(120)
	det, err := newTestDetector(t, cfg).Detect(candles)
	require.NoError(t, err)

	levels, err := newTestDetector(t, cfg).DetectLevels(candles)
	require.NoError(t, err)
	assert.Equal(t, levels, det.Levels)

	want, err := liquidity.Detect(candles[len(candles)-cfg.LookbackPeriod:], det.Levels, cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, det.Grabs)

	for _, g := range det.Grabs {
		l := findLevel(det.Levels, g.Price, g.Type)
		require.NotNil(t, l)
		assert.True(t, l.LiquidityGrab)
	}
}
