// SQLite-backed DataStore.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"levelscope/internal/analysis/engine"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/logging"
	"levelscope/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *SQLiteStore) {
		s.logger = logger.With().Str("component", "store").Logger()
	}
}

// WithClock sets the clock used for snapshot creation times.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dsn := dbPath
	if !strings.HasPrefix(dbPath, ":memory:") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if strings.HasPrefix(dbPath, ":memory:") {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{
		db:     db,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- OHLCV candles, timestamps in unix nanoseconds
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		ts INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, ts)
	);

	-- Analysis reports
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		as_of INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		report TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_series ON candles(symbol, timeframe, ts);
	CREATE INDEX IF NOT EXISTS idx_snapshots_series ON snapshots(symbol, timeframe, as_of);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandles saves candles to the database. Existing candles with the same
// timestamp are replaced.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (err error) {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		logging.LogStore(s.logger, "save_candles", symbol, len(candles), time.Since(start), err)
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UnixNano(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles in [from, to], oldest first. A zero bound is
// open.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?`
	args := []interface{}{symbol, timeframe}
	if !from.IsZero() {
		query += " AND ts >= ?"
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		query += " AND ts <= ?"
		args = append(args, to.UnixNano())
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol, timeframe)
}

// LatestCandles returns the most recent n candles, oldest first.
func (s *SQLiteStore) LatestCandles(ctx context.Context, symbol, timeframe string, n int) ([]models.Candle, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND timeframe = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol, timeframe)
}

func scanCandles(rows *sql.Rows, symbol, timeframe string) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var ts int64
		c := models.Candle{Symbol: symbol, Timeframe: timeframe}
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = time.Unix(0, ts).UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// ListSeries lists every stored symbol and timeframe.
func (s *SQLiteStore) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, COUNT(*), MIN(ts), MAX(ts)
		FROM candles
		GROUP BY symbol, timeframe
		ORDER BY symbol, timeframe
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var series []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		var first, last int64
		if err := rows.Scan(&info.Symbol, &info.Timeframe, &info.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		info.First = time.Unix(0, first).UTC()
		info.Last = time.Unix(0, last).UTC()
		series = append(series, info)
	}
	return series, rows.Err()
}

// SaveSnapshot persists a report and returns its generated ID.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, report *engine.Report) (string, error) {
	if report == nil {
		return "", apperrors.NewDataError("snapshot", "", "nil report", apperrors.ErrInvalidInput)
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	id := uuid.New().String()
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, symbol, timeframe, as_of, created_at, report)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, report.Symbol, report.Timeframe, report.AsOf.UnixNano(), s.now().UnixNano(), string(payload))
	logging.LogStore(s.logger, "save_snapshot", report.Symbol, 1, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the snapshot with the latest as-of time for a
// series. Ties go to the most recently created. An empty timeframe matches
// any timeframe.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, symbol, timeframe string) (*Snapshot, error) {
	query := `
		SELECT id, symbol, timeframe, as_of, created_at, report
		FROM snapshots
		WHERE symbol = ?`
	args := []interface{}{symbol}
	if timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, timeframe)
	}
	query += " ORDER BY as_of DESC, created_at DESC LIMIT 1"

	var (
		snap          Snapshot
		asOf, created int64
		payload       string
	)
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&snap.ID, &snap.Symbol, &snap.Timeframe, &asOf, &created, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDataError("snapshot", symbol, "no snapshot stored", apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snap.AsOf = time.Unix(0, asOf).UTC()
	snap.CreatedAt = time.Unix(0, created).UTC()
	snap.Report = &engine.Report{}
	if err := json.Unmarshal([]byte(payload), snap.Report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", snap.ID, err)
	}
	return &snap, nil
}
