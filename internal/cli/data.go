package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"levelscope/internal/analysis"
	"levelscope/internal/models"
	"levelscope/internal/performance"
	"levelscope/internal/store"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage stored candles",
		Long:  "Import candles from CSV files into the local store, list and export them.",
	}
	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataListCmd(app))
	cmd.AddCommand(newDataExportCmd(app))
	return cmd
}

func newDataImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>...",
		Short: "Import OHLCV candles from CSV files",
		Long: `Import candles from CSV files with a timestamp,open,high,low,close,volume
header. Timestamps may be RFC 3339, "2006-01-02 15:04:05", "2006-01-02" or
unix seconds. The symbol defaults to the file name.

Invalid candles are rejected before anything is written. Large files are
written store.batch_size candles per transaction.`,
		Example: `  levelscope data import AAPL.csv MSFT.csv
  levelscope data import btc_hourly.csv --symbol BTCUSD -t 1h`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			timeframe, _ := cmd.Flags().GetString("timeframe")
			symbolFlag, _ := cmd.Flags().GetString("symbol")
			if symbolFlag != "" && len(args) > 1 {
				return fmt.Errorf("--symbol applies to a single file")
			}

			s, err := app.Store()
			if err != nil {
				return err
			}

			type imported struct {
				File    string `json:"file"`
				Symbol  string `json:"symbol"`
				Candles int    `json:"candles"`
			}
			var results []imported

			for _, path := range args {
				symbol := symbolArg([]string{symbolFlag})
				if symbol == "" {
					symbol = symbolFromPath(path)
				}
				candles, err := readCSVFile(path, symbol, timeframe)
				if err != nil {
					return err
				}
				if err := analysis.ValidateCandles(candles); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				start := time.Now()
				batches := performance.NewBatchProcessor(app.Config.Store.BatchSize, func(batch []models.Candle) error {
					return s.SaveCandles(cmd.Context(), symbol, timeframe, batch)
				})
				if err := batches.AddAll(candles); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := batches.Flush(); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				app.Logger.Info().Str("file", path).Str("symbol", symbol).Int("candles", batches.Processed()).
					Dur("duration", time.Since(start)).Msg("Candles imported")
				results = append(results, imported{File: path, Symbol: symbol, Candles: len(candles)})
				output.Success("✓ %s: %d %s candles for %s", path, len(candles), timeframe, symbol)
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			return nil
		},
	}
	cmd.Flags().StringP("timeframe", "t", "1d", "candle timeframe")
	cmd.Flags().StringP("symbol", "s", "", "symbol (default: file name)")
	return cmd
}

func newDataListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			series, err := s.ListSeries(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if series == nil {
					series = []store.SeriesInfo{}
				}
				return output.JSON(series)
			}
			if len(series) == 0 {
				output.Dim("No candles stored. Import some with 'levelscope data import'.")
				return nil
			}
			table := NewTable(output, "SYMBOL", "TIMEFRAME", "CANDLES", "FIRST", "LAST")
			for _, info := range series {
				table.AddRow(
					info.Symbol,
					info.Timeframe,
					fmt.Sprintf("%d", info.Count),
					FormatTimestamp(info.First, app.Config.UI.TimeFormat),
					FormatTimestamp(info.Last, app.Config.UI.TimeFormat),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newDataExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Export stored candles as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeframe, _ := cmd.Flags().GetString("timeframe")
			path, _ := cmd.Flags().GetString("output")

			s, err := app.Store()
			if err != nil {
				return err
			}
			candles, err := s.GetCandles(cmd.Context(), symbolArg(args), timeframe, time.Time{}, time.Time{})
			if err != nil {
				return err
			}

			if path == "" {
				return store.WriteCandlesCSV(cmd.OutOrStdout(), candles)
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := store.WriteCandlesCSV(f, candles); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringP("timeframe", "t", "1d", "candle timeframe")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	return cmd
}
