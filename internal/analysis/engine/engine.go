// Package engine composes level detection, liquidity grabs, confluence and
// level adjustment into one report per symbol.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/confluence"
	"levelscope/internal/analysis/indicators"
	"levelscope/internal/analysis/levels"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

const (
	defaultProfileBins     = 50
	defaultChannelStrength = 3
)

// Report is the full analysis of one candle series.
type Report struct {
	Symbol            string                          `json:"symbol"`
	Timeframe         string                          `json:"timeframe,omitempty"`
	AsOf              time.Time                       `json:"as_of"`
	Candles           int                             `json:"candles"`
	CurrentPrice      float64                         `json:"current_price"`
	Levels            []analysis.EnhancedLevel        `json:"levels"`
	Grabs             []analysis.LiquidityGrab        `json:"liquidity_grabs"`
	Confluence        *analysis.ConfluenceAnalysis    `json:"confluence"`
	Adjustments       []analysis.LevelAdjustment      `json:"adjustments"`
	Fibonacci         *indicators.FibonacciLevels     `json:"fibonacci,omitempty"`
	VolumeProfile     *indicators.VolumeProfileResult `json:"volume_profile,omitempty"`
	PivotChannel      *indicators.PivotChannelResult  `json:"pivot_channel,omitempty"`
	NearestSupport    *analysis.EnhancedLevel         `json:"nearest_support,omitempty"`
	NearestResistance *analysis.EnhancedLevel         `json:"nearest_resistance,omitempty"`
	Elapsed           time.Duration                   `json:"elapsed"`
}

// Analyzer runs the full pipeline. It holds only configuration and is safe
// for concurrent use across symbols.
type Analyzer struct {
	cfg             analysis.Config
	logger          zerolog.Logger
	detector        *levels.Detector
	builder         *confluence.Builder
	profileBins     int
	channelStrength int
}

// Option configures an Analyzer.
type Option func(*analyzerOptions)

type analyzerOptions struct {
	logger          zerolog.Logger
	clock           func() time.Time
	profileBins     int
	channelStrength int
}

// WithLogger sets the logger passed down to every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *analyzerOptions) { o.logger = logger }
}

// WithClock makes level ages relative to clock instead of the last candle.
func WithClock(clock func() time.Time) Option {
	return func(o *analyzerOptions) { o.clock = clock }
}

// WithProfileBins sets the number of volume profile bins.
func WithProfileBins(n int) Option {
	return func(o *analyzerOptions) { o.profileBins = n }
}

// WithChannelStrength sets the swing confirmation width of the pivot channel.
func WithChannelStrength(n int) Option {
	return func(o *analyzerOptions) { o.channelStrength = n }
}

// NewAnalyzer validates cfg and wires the components.
func NewAnalyzer(cfg analysis.Config, opts ...Option) (*Analyzer, error) {
	o := analyzerOptions{
		logger:          zerolog.Nop(),
		profileBins:     defaultProfileBins,
		channelStrength: defaultChannelStrength,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.profileBins < 1 {
		return nil, apperrors.NewValidationError("profile_bins", o.profileBins, "must be positive")
	}
	if o.channelStrength < 1 {
		return nil, apperrors.NewValidationError("channel_strength", o.channelStrength, "must be positive")
	}

	detOpts := []levels.Option{levels.WithLogger(o.logger)}
	if o.clock != nil {
		detOpts = append(detOpts, levels.WithClock(o.clock))
	}
	detector, err := levels.NewDetector(cfg, detOpts...)
	if err != nil {
		return nil, err
	}
	builder, err := confluence.NewBuilder(cfg, confluence.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		cfg:             cfg,
		logger:          o.logger.With().Str("component", "engine").Logger(),
		detector:        detector,
		builder:         builder,
		profileBins:     o.profileBins,
		channelStrength: o.channelStrength,
	}, nil
}

// Config returns the analysis configuration.
func (a *Analyzer) Config() analysis.Config {
	return a.cfg
}

// DetectLevels runs level detection only.
func (a *Analyzer) DetectLevels(candles []models.Candle) ([]analysis.EnhancedLevel, error) {
	return a.detector.DetectLevels(candles)
}

// Analyze produces the full report for one series. Levels, grabs and zones
// are computed over the trailing LookbackPeriod candles. The Fibonacci,
// volume profile and pivot channel inputs are optional: when one cannot be
// computed it is logged and left out of the confluence.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, candles []models.Candle) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	log := a.logger.With().Str("symbol", symbol).Logger()

	det, err := a.detector.Detect(candles)
	if err != nil {
		return nil, apperrors.Wrapf(err, "detect levels for %s", symbol)
	}
	lvls, grabs := det.Levels, det.Grabs
	window := candles[len(candles)-a.cfg.LookbackPeriod:]
	last := window[len(window)-1]

	report := &Report{
		Symbol:       symbol,
		Timeframe:    last.Timeframe,
		AsOf:         last.Timestamp,
		Candles:      len(window),
		CurrentPrice: last.Close,
		Levels:       lvls,
		Grabs:        grabs,
	}
	if report.Grabs == nil {
		report.Grabs = []analysis.LiquidityGrab{}
	}

	inputs := confluence.FromLevels(lvls)

	if fib, err := indicators.NewFibonacciRetracement(a.cfg.LookbackPeriod).Calculate(window); err != nil {
		log.Debug().Err(err).Msg("fibonacci levels unavailable")
	} else {
		report.Fibonacci = fib
		inputs = append(inputs, confluence.FromFibonacci(fib)...)
	}

	if vp, err := indicators.NewVolumeProfile(a.profileBins).CalculateProfile(window); err != nil {
		log.Debug().Err(err).Msg("volume profile unavailable")
	} else {
		report.VolumeProfile = vp
		inputs = append(inputs, confluence.FromVolumeProfile(vp)...)
	}

	if ch, err := indicators.NewPivotChannel(a.channelStrength).Calculate(window); err != nil {
		log.Debug().Err(err).Msg("pivot channel unavailable")
	} else {
		report.PivotChannel = ch
		inputs = append(inputs, confluence.FromPivotChannel(ch)...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zones, err := a.builder.Build(inputs, window)
	if err != nil {
		return nil, apperrors.Wrapf(err, "build confluence for %s", symbol)
	}
	report.Confluence = zones

	adjustments, err := levels.AdjustLevels(withFibonacci(lvls, report.Fibonacci, last.Close), window, zones.MarketBias, a.cfg)
	if err != nil {
		return nil, apperrors.Wrapf(err, "adjust levels for %s", symbol)
	}
	report.Adjustments = adjustments
	if report.Adjustments == nil {
		report.Adjustments = []analysis.LevelAdjustment{}
	}

	report.NearestSupport, report.NearestResistance = levels.NearestLevels(report.Levels, last.Close)
	report.Elapsed = time.Since(start)

	log.Debug().
		Int("levels", len(report.Levels)).
		Int("grabs", len(report.Grabs)).
		Int("zones", zones.TotalZones).
		Str("bias", string(zones.MarketBias)).
		Dur("elapsed", report.Elapsed).
		Msg("analysis complete")

	return report, nil
}

// withFibonacci appends the Fibonacci levels, unscored, so the adjuster can
// treat retracements against the trend.
func withFibonacci(lvls []analysis.EnhancedLevel, fib *indicators.FibonacciLevels, current float64) []analysis.EnhancedLevel {
	projected := fib.Levels(current)
	if len(projected) == 0 {
		return lvls
	}
	out := make([]analysis.EnhancedLevel, 0, len(lvls)+len(projected))
	out = append(out, lvls...)
	for _, l := range projected {
		out = append(out, analysis.EnhancedLevel{Level: l, StrengthScore: l.Strength})
	}
	return out
}
