// Package notify delivers liquidity grab events to external channels.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"levelscope/internal/analysis"
	"levelscope/internal/config"
)

// Channel is one notification destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Notification is a single grab event addressed to every channel.
type Notification struct {
	Symbol    string                      `json:"symbol"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Grab      analysis.LiquidityGrab      `json:"grab"`
	Status    analysis.ConfirmationStatus `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
}

// Level selects which grab transitions are sent.
type Level string

const (
	LevelAll       Level = "all"       // detection and resolution
	LevelResolved  Level = "resolved"  // confirmed or failed
	LevelConfirmed Level = "confirmed" // confirmed only
)

// MultiNotifier fans a notification out to several channels.
type MultiNotifier struct {
	channels    []Channel
	level       Level
	minStrength float64
	now         func() time.Time
	mu          sync.RWMutex
}

// New builds a MultiNotifier with the channels enabled in cfg.
func New(cfg config.NotifyConfig) *MultiNotifier {
	mn := &MultiNotifier{
		level:       Level(cfg.Level),
		minStrength: cfg.MinStrength,
		now:         time.Now,
	}
	if mn.level == "" {
		mn.level = LevelAll
	}
	if cfg.Terminal.Enabled {
		mn.channels = append(mn.channels, NewTerminalNotifier(nil, cfg.Terminal.Bell))
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Enabled reports whether any channel is configured.
func (mn *MultiNotifier) Enabled() bool {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	return len(mn.channels) > 0
}

func (mn *MultiNotifier) shouldSend(g analysis.LiquidityGrab) bool {
	if g.Strength < mn.minStrength {
		return false
	}
	switch mn.level {
	case LevelResolved:
		return g.Status != analysis.ConfirmationPending
	case LevelConfirmed:
		return g.Status == analysis.ConfirmationConfirmed
	default:
		return true
	}
}

// NotifyGrab sends g for symbol when it passes the level and strength filters.
func (mn *MultiNotifier) NotifyGrab(ctx context.Context, symbol string, g analysis.LiquidityGrab) error {
	if !mn.shouldSend(g) {
		return nil
	}
	return mn.Send(ctx, NewGrabNotification(symbol, g))
}

// Send sends n to every channel and joins the failures.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = mn.now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NewGrabNotification describes g in words.
func NewGrabNotification(symbol string, g analysis.LiquidityGrab) Notification {
	verb := "detected"
	switch g.Status {
	case analysis.ConfirmationConfirmed:
		verb = "confirmed"
	case analysis.ConfirmationFailed:
		verb = "failed"
	}
	return Notification{
		Symbol: symbol,
		Title:  fmt.Sprintf("%s %s liquidity grab %s", symbol, g.Type, verb),
		Message: fmt.Sprintf("level %.4g, extreme %.4g, volume %.2fx, strength %.2f",
			g.Price, g.Extreme, g.VolumeSpike, g.Strength),
		Grab:      g,
		Status:    g.Status,
		Timestamp: g.Timestamp,
	}
}
