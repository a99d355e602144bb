package levels

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	"levelscope/internal/analysis/liquidity"
	"levelscope/internal/models"
)

// Detector finds scored support and resistance levels. It holds no state
// between calls and is safe for concurrent use.
type Detector struct {
	cfg     analysis.Config
	logger  zerolog.Logger
	clock   func() time.Time
	sources []Source
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger.With().Str("component", "level_detector").Logger()
	}
}

// WithClock sets the reference time used to age levels. By default the
// timestamp of the last candle is used, which keeps results reproducible.
func WithClock(clock func() time.Time) Option {
	return func(d *Detector) {
		d.clock = clock
	}
}

// WithSources replaces the candidate level sources.
func WithSources(sources ...Source) Option {
	return func(d *Detector) {
		d.sources = sources
	}
}

// NewDetector validates cfg and creates a detector.
func NewDetector(cfg analysis.Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		sources: DefaultSources(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() analysis.Config {
	return d.cfg
}

// Detection is the outcome of one detection pass: the reported levels and
// the liquidity grabs found at them.
type Detection struct {
	Levels []analysis.EnhancedLevel
	Grabs  []analysis.LiquidityGrab
}

// DetectLevels analyzes the trailing LookbackPeriod candles. The sources
// run concurrently; their candidates are merged, scored, checked for
// liquidity grabs and filtered by MinTouches and MinStrength. The result
// is sorted by strength score descending, then price ascending.
func (d *Detector) DetectLevels(candles []models.Candle) ([]analysis.EnhancedLevel, error) {
	det, err := d.Detect(candles)
	if err != nil {
		return nil, err
	}
	return det.Levels, nil
}

// Detect is DetectLevels that also returns the grabs at the reported levels,
// in the order liquidity.Detect produces them.
func (d *Detector) Detect(candles []models.Candle) (*Detection, error) {
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	if err := analysis.RequireCandles("level detection", candles, d.cfg.LookbackPeriod); err != nil {
		return nil, err
	}

	start := time.Now()
	window := candles[len(candles)-d.cfg.LookbackPeriod:]

	var reference time.Time
	if d.clock != nil {
		reference = d.clock()
	}
	w := NewWindow(window, d.cfg, reference)

	// a window that never moved has nothing to react to
	if w.Span() <= 0 {
		d.logger.Debug().Int("candles", len(window)).Msg("flat window, no levels")
		return &Detection{Levels: []analysis.EnhancedLevel{}, Grabs: []analysis.LiquidityGrab{}}, nil
	}

	results := make([][]analysis.Level, len(d.sources))
	var wg sync.WaitGroup
	for i, src := range d.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = src.Detect(w)
		}(i, src)
	}
	wg.Wait()

	var candidates []analysis.Level
	for i, r := range results {
		d.logger.Debug().Str("source", d.sources[i].Name()).Int("candidates", len(r)).Msg("source finished")
		candidates = append(candidates, r...)
	}
	merged := MergeLevels(candidates)

	scorer := NewScorer(w)
	scored := make([]analysis.EnhancedLevel, 0, len(merged))
	for _, m := range merged {
		scored = append(scored, scorer.Score(m))
	}

	grabs, err := d.applyGrabs(window, scored)
	if err != nil {
		return nil, err
	}

	type levelKey struct {
		price float64
		typ   analysis.LevelType
	}
	kept := make(map[levelKey]bool)
	out := make([]analysis.EnhancedLevel, 0, len(scored))
	for _, l := range scored {
		if l.Touches >= d.cfg.MinTouches && l.StrengthScore >= d.cfg.MinStrength {
			out = append(out, l)
			kept[levelKey{l.Price, l.Type}] = true
		}
	}
	SortLevels(out)

	keptGrabs := make([]analysis.LiquidityGrab, 0, len(grabs))
	for _, g := range grabs {
		if kept[levelKey{g.Price, g.Type}] {
			keptGrabs = append(keptGrabs, g)
		}
	}

	d.logger.Debug().
		Int("candidates", len(candidates)).
		Int("merged", len(merged)).
		Int("levels", len(out)).
		Int("grabs", len(keptGrabs)).
		Dur("elapsed", time.Since(start)).
		Msg("level detection complete")

	return &Detection{Levels: out, Grabs: keptGrabs}, nil
}

// applyGrabs flags levels with liquidity grabs and folds the strongest
// unrefuted grab into the reversal potential. It returns every grab found.
func (d *Detector) applyGrabs(window []models.Candle, scored []analysis.EnhancedLevel) ([]analysis.LiquidityGrab, error) {
	grabs, err := liquidity.Detect(window, scored, d.cfg)
	if err != nil {
		return nil, err
	}
	for i := range scored {
		l := &scored[i]
		best := 0.0
		for _, g := range grabs {
			if g.Price != l.Price || g.Type != l.Type {
				continue
			}
			l.LiquidityGrab = true
			if g.Status != analysis.ConfirmationFailed {
				best = math.Max(best, g.Strength)
			}
		}
		l.ReversalPotential = indicators.Clamp01(0.5*l.RejectionStrength + 0.5*best)
	}
	return grabs, nil
}

// SortLevels orders levels by strength score descending, then price ascending.
func SortLevels(levels []analysis.EnhancedLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].StrengthScore != levels[j].StrengthScore {
			return levels[i].StrengthScore > levels[j].StrengthScore
		}
		if levels[i].Price != levels[j].Price {
			return levels[i].Price < levels[j].Price
		}
		return levels[i].Type < levels[j].Type
	})
}

// NearestLevels returns the closest support below and the closest
// resistance above price. Either may be nil.
func NearestLevels(levels []analysis.EnhancedLevel, price float64) (support, resistance *analysis.EnhancedLevel) {
	for i := range levels {
		l := &levels[i]
		switch {
		case l.Type == analysis.LevelSupport && l.Price <= price:
			if support == nil || l.Price > support.Price {
				support = l
			}
		case l.Type == analysis.LevelResistance && l.Price >= price:
			if resistance == nil || l.Price < resistance.Price {
				resistance = l
			}
		}
	}
	return support, resistance
}
