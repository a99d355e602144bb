// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"levelscope/internal/analysis/engine"
	"levelscope/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	LatestCandles(ctx context.Context, symbol, timeframe string, n int) ([]models.Candle, error)
	ListSeries(ctx context.Context) ([]SeriesInfo, error)

	// Analysis snapshots
	SaveSnapshot(ctx context.Context, report *engine.Report) (string, error)
	LatestSnapshot(ctx context.Context, symbol, timeframe string) (*Snapshot, error)

	// Lifecycle
	Close() error
}

// SeriesInfo summarizes the candles stored for one symbol and timeframe.
type SeriesInfo struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Count     int       `json:"count"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
}

// Snapshot is a persisted analysis report.
type Snapshot struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	AsOf      time.Time      `json:"as_of"`
	CreatedAt time.Time      `json:"created_at"`
	Report    *engine.Report `json:"report"`
}
