package cli

import (
	"github.com/spf13/cobra"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/engine"
	"levelscope/internal/analysis/levels"
	"levelscope/internal/analysis/liquidity"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/logging"
)

func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLevelsCmd(app))
	rootCmd.AddCommand(newGrabsCmd(app))
	rootCmd.AddCommand(newConfluenceCmd(app))
	rootCmd.AddCommand(newAdjustCmd(app))
}

func newLevelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels [symbol]",
		Short: "Detect and score support/resistance levels",
		Long: `Detect support and resistance levels over the trailing lookback window and
score them by touches, volume, recency, price action and rejection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, candles, err := loadCandles(cmd, app, symbolArg(args))
			if err != nil {
				return err
			}
			analyzer, err := app.Analyzer()
			if err != nil {
				return err
			}

			lvls, err := analyzer.DetectLevels(candles)
			if err != nil {
				return apperrors.Wrapf(err, "detect levels for %s", symbol)
			}
			last := candles[len(candles)-1]
			support, resistance := levels.NearestLevels(lvls, last.Close)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":             symbol,
					"current_price":      last.Close,
					"levels":             lvls,
					"nearest_support":    support,
					"nearest_resistance": resistance,
				})
			}

			output.Bold("%s  %s  (%d candles, last %s)", symbol, FormatPrice(last.Close),
				min(len(candles), analyzer.Config().LookbackPeriod), FormatTimestamp(last.Timestamp, app.Config.UI.TimeFormat))
			output.Println()
			renderLevels(output, lvls, last.Close, app.Config.UI.TimeFormat)
			output.Println()
			renderNearest(output, support, resistance, last.Close)
			return nil
		},
	}
	addCandleFlags(cmd)
	return cmd
}

func newGrabsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grabs [symbol]",
		Short: "Find liquidity grabs at detected levels",
		Long: `Find candles that swept a detected level and closed back on its side on a
volume spike, and report whether the reversal was confirmed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, candles, err := loadCandles(cmd, app, symbolArg(args))
			if err != nil {
				return err
			}
			analyzer, err := app.Analyzer()
			if err != nil {
				return err
			}

			lvls, err := analyzer.DetectLevels(candles)
			if err != nil {
				return apperrors.Wrapf(err, "detect levels for %s", symbol)
			}
			window := candles[len(candles)-analyzer.Config().LookbackPeriod:]
			grabs, err := liquidity.Detect(window, lvls, analyzer.Config())
			if err != nil {
				return apperrors.Wrapf(err, "detect liquidity grabs for %s", symbol)
			}
			if grabs == nil {
				grabs = []analysis.LiquidityGrab{}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":          symbol,
					"liquidity_grabs": grabs,
				})
			}
			renderGrabs(output, grabs, app.Config.UI.TimeFormat)
			return nil
		},
	}
	addCandleFlags(cmd)
	return cmd
}

func newConfluenceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confluence [symbol]",
		Short: "Group agreeing levels into confluence zones",
		Long: `Combine detected levels with Fibonacci retracements, the volume profile and
the pivot channel, and group them into zones where several agree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := analyze(cmd, app, args)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report.Confluence)
			}
			renderConfluence(output, report.Confluence)
			return nil
		},
	}
	addCandleFlags(cmd)
	return cmd
}

func newAdjustCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust [symbol]",
		Short: "Show volume and rejection based level adjustments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := analyze(cmd, app, args)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report.Adjustments)
			}
			output.Dim("Market bias: %s", report.Confluence.MarketBias)
			renderAdjustments(output, report.Adjustments)
			return nil
		},
	}
	addCandleFlags(cmd)
	return cmd
}

// analyze loads the series named by args and runs the full pipeline on it.
func analyze(cmd *cobra.Command, app *App, args []string) (*engine.Report, error) {
	symbol, candles, err := loadCandles(cmd, app, symbolArg(args))
	if err != nil {
		return nil, err
	}
	analyzer, err := app.Analyzer()
	if err != nil {
		return nil, err
	}
	report, err := analyzer.Analyze(cmd.Context(), symbol, candles)
	if err != nil {
		return nil, err
	}
	logging.LogAnalysis(logging.WithOperation(app.Logger, cmd.Name()), symbol,
		len(report.Levels), len(report.Grabs), report.Confluence.TotalZones,
		string(report.Confluence.MarketBias), report.Elapsed)
	return report, nil
}
