package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
	"levelscope/internal/store"
)

const defaultCandleLimit = 500

// addCandleFlags registers the flags that select a candle series.
func addCandleFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv", "", "read candles from a CSV file instead of the store")
	cmd.Flags().StringP("timeframe", "t", "1d", "candle timeframe")
	cmd.Flags().Int("limit", defaultCandleLimit, "most recent candles to load from the store")
}

// loadCandles resolves the candle series for symbol from --csv or the store.
// With --csv and no symbol, the file name stem is used.
func loadCandles(cmd *cobra.Command, app *App, symbol string) (string, []models.Candle, error) {
	timeframe, _ := cmd.Flags().GetString("timeframe")

	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		if symbol == "" {
			symbol = symbolFromPath(path)
		}
		candles, err := readCSVFile(path, symbol, timeframe)
		return symbol, candles, err
	}

	if symbol == "" {
		return "", nil, fmt.Errorf("a symbol or --csv file is required")
	}
	s, err := app.Store()
	if err != nil {
		return symbol, nil, err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	candles, err := s.LatestCandles(cmd.Context(), symbol, timeframe, limit)
	if err != nil {
		return symbol, nil, err
	}
	if len(candles) == 0 {
		return symbol, nil, apperrors.NewDataError("candles", symbol,
			fmt.Sprintf("no %s candles stored; run 'levelscope data import'", timeframe), apperrors.ErrDataNotFound)
	}
	return symbol, candles, nil
}

func readCSVFile(path, symbol, timeframe string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return store.ReadCandlesCSV(f, symbol, timeframe)
}

func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

func symbolArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.ToUpper(args[0])
}
