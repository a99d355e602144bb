package store

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

// CandleDTO is one CSV row. The timestamp is kept as text so that several
// common layouts can be accepted.
type CandleDTO struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an RFC 3339, date-time, date or unix-seconds value.
// Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ToModel converts the row to a Candle.
func (d CandleDTO) ToModel(symbol, timeframe string) (models.Candle, error) {
	ts, err := ParseTimestamp(d.Timestamp)
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: ts,
		Open:      d.Open,
		High:      d.High,
		Low:       d.Low,
		Close:     d.Close,
		Volume:    d.Volume,
	}, nil
}

// ReadCandlesCSV reads candles with a timestamp,open,high,low,close,volume
// header. Rows are returned oldest first.
func ReadCandlesCSV(r io.Reader, symbol, timeframe string) ([]models.Candle, error) {
	var rows []CandleDTO
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, apperrors.NewDataError("csv", symbol, "failed to parse candles", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := row.ToModel(symbol, timeframe)
		if err != nil {
			return nil, apperrors.NewDataError("csv", symbol, fmt.Sprintf("row %d", i+1), err)
		}
		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// WriteCandlesCSV writes candles in the layout ReadCandlesCSV accepts.
func WriteCandlesCSV(w io.Writer, candles []models.Candle) error {
	rows := make([]CandleDTO, len(candles))
	for i, c := range candles {
		rows[i] = CandleDTO{
			Timestamp: c.Timestamp.UTC().Format(time.RFC3339Nano),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return gocsv.Marshal(&rows, w)
}
