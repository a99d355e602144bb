package liquidity

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
	"levelscope/internal/models"
)

// TrackerConfig holds configuration for the streaming Tracker.
type TrackerConfig struct {
	// MaxPending bounds the number of unresolved grabs. The oldest is
	// evicted as failed when the bound is reached.
	MaxPending int
	// BufferSize is the size of the output channel returned by Run.
	BufferSize int
}

// DefaultTrackerConfig returns the default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxPending: 256,
		BufferSize: 64,
	}
}

type grabKey struct {
	price float64
	typ   analysis.LevelType
	unix  int64
}

type pendingGrab struct {
	grab      analysis.LiquidityGrab
	remaining int
}

// TrackerStats are cumulative counters of a Tracker.
type TrackerStats struct {
	CandlesObserved uint64 `json:"candles_observed"`
	GrabsDetected   uint64 `json:"grabs_detected"`
	GrabsConfirmed  uint64 `json:"grabs_confirmed"`
	GrabsFailed     uint64 `json:"grabs_failed"`
	GrabsEvicted    uint64 `json:"grabs_evicted"`
}

// Tracker detects liquidity grabs incrementally, one candle at a time, and
// resolves each grab once its confirmation window has been observed. It is
// safe for concurrent use.
type Tracker struct {
	cfg     analysis.Config
	tcfg    TrackerConfig
	logger  zerolog.Logger
	mu      sync.Mutex
	levels  []analysis.EnhancedLevel
	history []models.Candle // last VolumeLookback candles
	pending []*pendingGrab  // oldest first
	seen    map[grabKey]struct{}
	stats   TrackerStats
}

// NewTracker creates a tracker for cfg.
func NewTracker(cfg analysis.Config, tcfg TrackerConfig, logger zerolog.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tcfg.MaxPending < 1 {
		tcfg.MaxPending = DefaultTrackerConfig().MaxPending
	}
	if tcfg.BufferSize < 0 {
		tcfg.BufferSize = 0
	}
	return &Tracker{
		cfg:    cfg,
		tcfg:   tcfg,
		logger: logger.With().Str("component", "liquidity_tracker").Logger(),
		seen:   make(map[grabKey]struct{}),
	}, nil
}

// SetLevels replaces the watched levels. Pending grabs are kept.
func (t *Tracker) SetLevels(levels []analysis.EnhancedLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.levels = append([]analysis.EnhancedLevel(nil), levels...)
}

// Observe feeds one candle. It returns grabs detected on this candle with
// pending status, followed by earlier grabs this candle resolved.
func (t *Tracker) Observe(c models.Candle) ([]analysis.LiquidityGrab, error) {
	if err := analysis.ValidateCandles([]models.Candle{c}); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.CandlesObserved++

	resolved := t.resolvePending(c)

	var detected []analysis.LiquidityGrab
	if n := len(t.history); n > 0 {
		prev := t.history[n-1]
		avg := indicators.AverageVolume(t.history)
		for _, level := range t.levels {
			if level.Price <= 0 {
				continue
			}
			grab, ok := matchGrab(level, prev, c, avg, t.cfg)
			if !ok {
				continue
			}
			key := grabKey{price: grab.Price, typ: grab.Type, unix: grab.Timestamp.UnixNano()}
			if _, dup := t.seen[key]; dup {
				continue
			}
			t.seen[key] = struct{}{}
			t.stats.GrabsDetected++
			detected = append(detected, grab)
			resolved = append(resolved, t.enqueue(grab)...)

			t.logger.Debug().
				Float64("level", grab.Price).
				Str("type", string(grab.Type)).
				Float64("volume_spike", grab.VolumeSpike).
				Float64("strength", grab.Strength).
				Msg("liquidity grab detected")
		}
	}

	t.history = append(t.history, c)
	if len(t.history) > VolumeLookback {
		t.history = t.history[len(t.history)-VolumeLookback:]
	}

	SortGrabs(detected)
	return append(detected, resolved...), nil
}

// resolvePending advances every pending grab by one candle.
func (t *Tracker) resolvePending(c models.Candle) []analysis.LiquidityGrab {
	var out []analysis.LiquidityGrab
	kept := t.pending[:0]
	for _, p := range t.pending {
		switch {
		case !holds(p.grab, c):
			out = append(out, t.finish(p, analysis.ConfirmationFailed))
		case p.remaining <= 1:
			out = append(out, t.finish(p, analysis.ConfirmationConfirmed))
		default:
			p.remaining--
			kept = append(kept, p)
		}
	}
	t.pending = kept
	return out
}

// enqueue adds a grab to the pending queue, evicting the oldest entries as
// failed when the queue is full.
func (t *Tracker) enqueue(grab analysis.LiquidityGrab) []analysis.LiquidityGrab {
	var evicted []analysis.LiquidityGrab
	for len(t.pending) >= t.tcfg.MaxPending {
		oldest := t.pending[0]
		t.pending = t.pending[1:]
		t.stats.GrabsEvicted++
		evicted = append(evicted, t.finish(oldest, analysis.ConfirmationFailed))
		t.logger.Warn().
			Float64("level", oldest.grab.Price).
			Time("grab_time", oldest.grab.Timestamp).
			Msg("pending queue full, evicting oldest grab")
	}
	t.pending = append(t.pending, &pendingGrab{grab: grab, remaining: t.cfg.ReversalConfirmationPeriod})
	return evicted
}

func (t *Tracker) finish(p *pendingGrab, status analysis.ConfirmationStatus) analysis.LiquidityGrab {
	g := p.grab
	g.Status = status
	g.ReversalConfirmed = status == analysis.ConfirmationConfirmed
	if g.ReversalConfirmed {
		t.stats.GrabsConfirmed++
	} else {
		t.stats.GrabsFailed++
	}
	delete(t.seen, grabKey{price: g.Price, typ: g.Type, unix: g.Timestamp.UnixNano()})
	return g
}

// Pending returns a snapshot of unresolved grabs, oldest first.
func (t *Tracker) Pending() []analysis.LiquidityGrab {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]analysis.LiquidityGrab, len(t.pending))
	for i, p := range t.pending {
		out[i] = p.grab
	}
	return out
}

// Stats returns the cumulative counters.
func (t *Tracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Run consumes candles until in is closed or ctx is done and publishes every
// detected and resolved grab. The returned channel is closed on exit.
// Invalid candles are logged and skipped.
func (t *Tracker) Run(ctx context.Context, in <-chan models.Candle) <-chan analysis.LiquidityGrab {
	out := make(chan analysis.LiquidityGrab, t.tcfg.BufferSize)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-in:
				if !ok {
					return
				}
				grabs, err := t.Observe(c)
				if err != nil {
					t.logger.Warn().Err(err).Time("timestamp", c.Timestamp).Msg("skipping invalid candle")
					continue
				}
				for _, g := range grabs {
					select {
					case out <- g:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
