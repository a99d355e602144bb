package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"levelscope/internal/analysis/engine"
	"levelscope/internal/logging"
)

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [symbol...]",
		Short: "Full analysis report for one or more symbols",
		Long: `Run level detection, liquidity grab detection, confluence zones and level
adjustments together. Several symbols are analyzed concurrently; --all
analyzes every stored series of the timeframe. With --save each report is
stored as a snapshot.`,
		Example: `  levelscope report --csv data/AAPL.csv
  levelscope report AAPL MSFT --save
  levelscope report --all -t 1h --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			save, _ := cmd.Flags().GetBool("save")

			series, err := reportSeries(cmd, app, args)
			if err != nil {
				return err
			}
			analyzer, err := app.Analyzer()
			if err != nil {
				return err
			}

			results := analyzer.AnalyzeMany(cmd.Context(), series, app.Config.Engine.Workers)

			reports := make([]*engine.Report, 0, len(results))
			failed := 0
			for _, r := range results {
				log := logging.WithSymbol(app.Logger, r.Symbol)
				if r.Err != nil {
					failed++
					log.Error().Err(r.Err).Msg("Analysis failed")
					output.Error("%s: %v", r.Symbol, r.Err)
					continue
				}
				logging.LogAnalysis(log, r.Symbol, len(r.Report.Levels), len(r.Report.Grabs),
					r.Report.Confluence.TotalZones, string(r.Report.Confluence.MarketBias), r.Report.Elapsed)
				reports = append(reports, r.Report)
			}

			if save {
				if err := saveSnapshots(cmd, app, output, reports); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				if err := output.JSON(reports); err != nil {
					return err
				}
			} else {
				for i, r := range reports {
					if i > 0 {
						output.Println()
					}
					renderReport(output, r, app.Config.UI.TimeFormat)
				}
			}

			if failed == len(results) {
				return fmt.Errorf("all %d analyses failed", failed)
			}
			return nil
		},
	}
	addCandleFlags(cmd)
	cmd.Flags().Bool("all", false, "analyze every stored series of the timeframe")
	cmd.Flags().Bool("save", false, "store each report as a snapshot")

	cmd.AddCommand(newSnapshotCmd(app))
	return cmd
}

func reportSeries(cmd *cobra.Command, app *App, args []string) ([]engine.Series, error) {
	all, _ := cmd.Flags().GetBool("all")
	csvPath, _ := cmd.Flags().GetString("csv")

	symbols := make([]string, 0, len(args))
	for _, a := range args {
		symbols = append(symbols, symbolArg([]string{a}))
	}

	switch {
	case csvPath != "":
		symbol, candles, err := loadCandles(cmd, app, symbolArg(args))
		if err != nil {
			return nil, err
		}
		return []engine.Series{{Symbol: symbol, Candles: candles}}, nil
	case all:
		s, err := app.Store()
		if err != nil {
			return nil, err
		}
		infos, err := s.ListSeries(cmd.Context())
		if err != nil {
			return nil, err
		}
		timeframe, _ := cmd.Flags().GetString("timeframe")
		symbols = symbols[:0]
		for _, info := range infos {
			if info.Timeframe == timeframe {
				symbols = append(symbols, info.Symbol)
			}
		}
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to analyze")
	}

	series := make([]engine.Series, 0, len(symbols))
	for _, symbol := range symbols {
		_, candles, err := loadCandles(cmd, app, symbol)
		if err != nil {
			return nil, err
		}
		series = append(series, engine.Series{Symbol: symbol, Candles: candles})
	}
	return series, nil
}

func saveSnapshots(cmd *cobra.Command, app *App, output *Output, reports []*engine.Report) error {
	s, err := app.Store()
	if err != nil {
		return err
	}
	for _, r := range reports {
		id, err := s.SaveSnapshot(cmd.Context(), r)
		if err != nil {
			return err
		}
		output.Dim("Saved snapshot %s for %s", id, r.Symbol)
	}
	return nil
}

func newSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last <symbol>",
		Short: "Show the latest stored snapshot of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			timeframe, _ := cmd.Flags().GetString("timeframe")
			snap, err := s.LatestSnapshot(cmd.Context(), symbolArg(args), timeframe)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(snap)
			}
			output.Dim("Snapshot %s, saved %s", snap.ID, FormatTimestamp(snap.CreatedAt, app.Config.UI.TimeFormat))
			renderReport(output, snap.Report, app.Config.UI.TimeFormat)
			return nil
		},
	}
	cmd.Flags().StringP("timeframe", "t", "", "candle timeframe (default: any)")
	return cmd
}
