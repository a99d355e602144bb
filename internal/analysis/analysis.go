// Package analysis provides the value types shared by the level detection,
// liquidity grab, confluence and adjustment components.
package analysis

import (
	"time"
)

// LevelType represents the type of price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

// SourceKind identifies which detector or collaborator produced a level.
type SourceKind string

const (
	SourcePivot         SourceKind = "pivot"
	SourceCluster       SourceKind = "cluster"
	SourceVolumeNode    SourceKind = "volume_node"
	SourceFibonacci     SourceKind = "fibonacci"
	SourceFibExtension  SourceKind = "fibonacci_extension"
	SourceVolumeProfile SourceKind = "volume_profile"
	SourcePivotChannel  SourceKind = "pivot_channel"
)

// Level represents a candidate support or resistance level.
type Level struct {
	Price     float64      `json:"price"`
	Type      LevelType    `json:"type"`
	Touches   int          `json:"touches"`
	LastTouch time.Time    `json:"last_touch"`
	Strength  float64      `json:"strength"` // preliminary source strength, used as merge weight
	Sources   []SourceKind `json:"sources,omitempty"`
	// LiquidityGrab is OR'd across merges.
	LiquidityGrab bool `json:"liquidity_grab"`
}

// HasSource reports whether kind contributed to the level.
func (l Level) HasSource(kind SourceKind) bool {
	for _, s := range l.Sources {
		if s == kind {
			return true
		}
	}
	return false
}

// EnhancedLevel is a scored level. Lists of EnhancedLevel are ordered by
// descending StrengthScore.
type EnhancedLevel struct {
	Level
	StrengthScore       float64 `json:"strength_score"`
	ReversalPotential   float64 `json:"reversal_potential"`
	VolumeConfirmation  float64 `json:"volume_confirmation"`
	TimeStrength        float64 `json:"time_strength"`
	PriceActionStrength float64 `json:"price_action_strength"`
	RejectionStrength   float64 `json:"rejection_strength"`
}

// ConfirmationStatus is the resolution state of a liquidity grab reversal.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// LiquidityGrab is a stop-hunt-and-reverse event at a known level.
type LiquidityGrab struct {
	Timestamp         time.Time          `json:"timestamp"`
	Price             float64            `json:"price"` // level price
	Type              LevelType          `json:"type"`
	Strength          float64            `json:"strength"`
	ReversalConfirmed bool               `json:"reversal_confirmed"`
	Status            ConfirmationStatus `json:"status"`
	VolumeSpike       float64            `json:"volume_spike"`
	Extreme           float64            `json:"extreme"` // wick low (support) or high (resistance)
}

// ZoneType classifies a confluence zone relative to the current price.
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
	ZoneReversal   ZoneType = "reversal"
)

// ZoneFactor is one contributing level of a confluence zone.
type ZoneFactor struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// ConfluenceZone is a price band where several independent level sources agree.
type ConfluenceZone struct {
	PriceLevel             float64      `json:"price_level"`
	Strength               float64      `json:"strength"`
	Factors                []ZoneFactor `json:"factors"`
	ZoneType               ZoneType     `json:"zone_type"`
	Reliability            float64      `json:"reliability"`
	BreakoutProbability    float64      `json:"breakout_probability"`
	HistoricalSignificance float64      `json:"historical_significance"`
}

// MarketBias is the aggregate directional read of strong zones.
type MarketBias string

const (
	BiasBullish MarketBias = "bullish"
	BiasBearish MarketBias = "bearish"
	BiasNeutral MarketBias = "neutral"
)

// ConfluenceAnalysis is the output of the confluence zone builder.
type ConfluenceAnalysis struct {
	Zones           []ConfluenceZone `json:"zones"`
	TotalZones      int              `json:"total_zones"`
	StrongZones     int              `json:"strong_zones"`
	CriticalLevels  []float64        `json:"critical_levels"`
	MarketBias      MarketBias       `json:"market_bias"`
	ConfidenceScore float64          `json:"confidence_score"`
	CurrentPrice    float64          `json:"current_price"`
}

// LevelAdjustment records a price nudge applied to a level.
type LevelAdjustment struct {
	OriginalLevel    EnhancedLevel `json:"original_level"`
	AdjustedLevel    EnhancedLevel `json:"adjusted_level"`
	AdjustmentFactor float64       `json:"adjustment_factor"`
	Reason           string        `json:"reason"`
	Confidence       float64       `json:"confidence"`
}
