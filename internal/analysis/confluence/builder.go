package confluence

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	"levelscope/internal/models"
)

const (
	strongZoneThreshold    = 0.7
	historicalBandPct      = 0.02
	historicalTouchCap     = 10
	biasRatio              = 1.5
	minBreakoutProbability = 0.1
)

// Builder groups inputs into confluence zones.
type Builder struct {
	cfg    analysis.Config
	logger zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.With().Str("component", "confluence").Logger()
	}
}

// NewBuilder validates cfg and creates a builder.
func NewBuilder(cfg analysis.Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build groups inputs by price proximity and scores the zones against the
// candle history. The current price is the last close.
//
// Inputs are sorted by price and walked once: each ungrouped input anchors a
// new group that absorbs every later ungrouped input within
// PriceTolerancePct of the anchor. Groups with fewer than MinFactors
// distinct (type, price) members are dropped.
func (b *Builder) Build(inputs []Input, candles []models.Candle) (*analysis.ConfluenceAnalysis, error) {
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	if err := analysis.RequireCandles("confluence", candles, 1); err != nil {
		return nil, err
	}
	current := candles[len(candles)-1].Close

	valid := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if in.Price > 0 && !math.IsInf(in.Price, 0) && !math.IsNaN(in.Strength) {
			valid = append(valid, in)
		}
	}
	if len(valid) != len(inputs) {
		b.logger.Debug().Int("dropped", len(inputs)-len(valid)).Msg("ignored inputs with unusable price or strength")
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Price != valid[j].Price {
			return valid[i].Price < valid[j].Price
		}
		if valid[i].Type != valid[j].Type {
			return valid[i].Type < valid[j].Type
		}
		return valid[i].Strength > valid[j].Strength
	})

	tol := b.cfg.Confluence.PriceTolerancePct / 100
	used := make([]bool, len(valid))
	var zones []analysis.ConfluenceZone
	for i := range valid {
		if used[i] {
			continue
		}
		used[i] = true
		anchor := valid[i].Price
		group := []Input{valid[i]}
		for j := i + 1; j < len(valid); j++ {
			if (valid[j].Price-anchor)/anchor > tol {
				break
			}
			if !used[j] {
				used[j] = true
				group = append(group, valid[j])
			}
		}

		if distinctMembers(group) < b.cfg.Confluence.MinFactors {
			continue
		}
		zones = append(zones, b.zone(group, candles, current))
	}

	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].Strength != zones[j].Strength {
			return zones[i].Strength > zones[j].Strength
		}
		return zones[i].PriceLevel < zones[j].PriceLevel
	})

	result := summarize(zones, current)
	b.logger.Debug().
		Int("inputs", len(valid)).
		Int("zones", result.TotalZones).
		Int("strong_zones", result.StrongZones).
		Str("bias", string(result.MarketBias)).
		Msg("confluence built")
	return result, nil
}

func distinctMembers(group []Input) int {
	type key struct {
		typ   string
		price float64
	}
	seen := make(map[key]struct{}, len(group))
	for _, in := range group {
		seen[key{in.Type, in.Price}] = struct{}{}
	}
	return len(seen)
}

func (b *Builder) zone(group []Input, candles []models.Candle, current float64) analysis.ConfluenceZone {
	prices := make([]float64, len(group))
	strengths := make([]float64, len(group))
	types := make(map[string]struct{})
	factors := make([]analysis.ZoneFactor, len(group))
	for i, in := range group {
		prices[i] = in.Price
		strengths[i] = indicators.Clamp01(in.Strength)
		types[in.Type] = struct{}{}
		factors[i] = analysis.ZoneFactor{Type: in.Type, Description: in.Description, Weight: strengths[i]}
	}

	price := indicators.Mean(prices)
	strength := indicators.Clamp01(indicators.Mean(strengths))
	diversity := math.Min(1, float64(len(types))/maxDiversityFactorTypes)

	zoneType := analysis.ZoneReversal
	switch {
	case price < current:
		zoneType = analysis.ZoneSupport
	case price > current:
		zoneType = analysis.ZoneResistance
	}

	return analysis.ConfluenceZone{
		PriceLevel:             price,
		Strength:               strength,
		Factors:                factors,
		ZoneType:               zoneType,
		Reliability:            indicators.Clamp01(0.7*strength + 0.3*diversity),
		BreakoutProbability:    BreakoutProbability(current, price),
		HistoricalSignificance: HistoricalSignificance(candles, price),
	}
}

// BreakoutProbability is max(0.1, 1 - 10*|current-level|/level) bounded to [0, 1].
func BreakoutProbability(current, level float64) float64 {
	if level <= 0 {
		return minBreakoutProbability
	}
	return indicators.Clamp01(math.Max(minBreakoutProbability, 1-10*math.Abs(current-level)/level))
}

// HistoricalSignificance counts candles whose high or low came within 2% of
// price; ten such candles saturate the score.
func HistoricalSignificance(candles []models.Candle, price float64) float64 {
	if price <= 0 {
		return 0
	}
	band := price * historicalBandPct
	count := 0
	for _, c := range candles {
		if math.Abs(c.High-price) <= band || math.Abs(c.Low-price) <= band {
			count++
		}
	}
	return math.Min(1, float64(count)/historicalTouchCap)
}

// summarize derives the aggregate figures and market bias from sorted zones.
func summarize(zones []analysis.ConfluenceZone, current float64) *analysis.ConfluenceAnalysis {
	result := &analysis.ConfluenceAnalysis{
		Zones:          zones,
		TotalZones:     len(zones),
		CriticalLevels: []float64{},
		MarketBias:     analysis.BiasNeutral,
		CurrentPrice:   current,
	}
	if result.Zones == nil {
		result.Zones = []analysis.ConfluenceZone{}
	}
	if len(zones) == 0 {
		return result
	}

	var below, above int
	strengths := make([]float64, len(zones))
	for i, z := range zones {
		strengths[i] = z.Strength
		if z.Strength <= strongZoneThreshold {
			continue
		}
		result.StrongZones++
		result.CriticalLevels = append(result.CriticalLevels, z.PriceLevel)
		switch {
		case z.PriceLevel < current:
			below++
		case z.PriceLevel > current:
			above++
		}
	}

	switch {
	case float64(below) > biasRatio*float64(above):
		result.MarketBias = analysis.BiasBullish
	case float64(above) > biasRatio*float64(below):
		result.MarketBias = analysis.BiasBearish
	}

	strongShare := float64(result.StrongZones) / float64(len(zones))
	result.ConfidenceScore = indicators.Clamp01(0.7*indicators.Mean(strengths) + 0.3*strongShare)
	return result
}
