package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/engine"
	"levelscope/internal/analysis/liquidity"
	"levelscope/internal/logging"
	"levelscope/internal/models"
	"levelscope/internal/notify"
)

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [symbol]",
		Short: "Replay candles through the streaming liquidity grab tracker",
		Long: `Detect levels on the first lookback candles, then replay the rest one at a
time through the liquidity grab tracker, printing grabs as they are detected
and as their reversals confirm or fail. Events are also sent to the channels
configured under [notify].`,
		Example: `  levelscope watch --csv data/AAPL.csv --delay 200ms
  levelscope watch AAPL -t 1h --refresh 24
  levelscope watch AAPL --webhook https://hooks.example.com/levelscope`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			delay, _ := cmd.Flags().GetDuration("delay")
			refresh, _ := cmd.Flags().GetInt("refresh")
			maxPending, _ := cmd.Flags().GetInt("max-pending")
			webhook, _ := cmd.Flags().GetString("webhook")

			symbol, candles, err := loadCandles(cmd, app, symbolArg(args))
			if err != nil {
				return err
			}
			analyzer, err := app.Analyzer()
			if err != nil {
				return err
			}
			warmup := analyzer.Config().LookbackPeriod
			if len(candles) <= warmup {
				return fmt.Errorf("%s: need more than %d candles to replay, got %d", symbol, warmup, len(candles))
			}

			lvls, err := analyzer.DetectLevels(candles[:warmup])
			if err != nil {
				return err
			}

			log := logging.WithSymbol(app.Logger, symbol)
			tcfg := liquidity.DefaultTrackerConfig()
			tcfg.MaxPending = maxPending
			tracker, err := liquidity.NewTracker(analyzer.Config(), tcfg, log)
			if err != nil {
				return err
			}
			// seed the volume history before any level is watched
			for _, c := range candles[max(0, warmup-liquidity.VolumeLookback):warmup] {
				if _, err := tracker.Observe(c); err != nil {
					return err
				}
			}
			tracker.SetLevels(lvls)

			if !output.IsJSON() {
				output.Info("Watching %s: %d levels, replaying %d candles", symbol, len(lvls), len(candles)-warmup)
			}

			ncfg := app.Config.Notify
			if webhook != "" {
				ncfg.Webhook.Enabled = true
				ncfg.Webhook.URL = webhook
			}
			notifier := notify.New(ncfg)

			ctx := cmd.Context()
			in := make(chan models.Candle)
			go replay(ctx, in, candles, warmup, delay, refresh, analyzer, tracker, log)

			var events []analysis.LiquidityGrab
			for g := range tracker.Run(ctx, in) {
				logging.LogGrab(log, symbol, string(g.Type), string(g.Status), g.Price, g.Strength)
				if notifier.Enabled() {
					if err := notifier.NotifyGrab(ctx, symbol, g); err != nil {
						log.Warn().Err(err).Msg("Grab notification failed")
					}
				}
				if output.IsJSON() {
					events = append(events, g)
					continue
				}
				output.Printf("%s  %s %s  level %s  extreme %s  spike %.2fx  strength %.2f\n",
					FormatTimestamp(g.Timestamp, app.Config.UI.TimeFormat), output.Status(g.Status),
					output.LevelType(g.Type), FormatPrice(g.Price), FormatPrice(g.Extreme), g.VolumeSpike, g.Strength)
			}

			stats := tracker.Stats()
			if output.IsJSON() {
				if events == nil {
					events = []analysis.LiquidityGrab{}
				}
				return output.JSON(map[string]interface{}{
					"symbol":  symbol,
					"events":  events,
					"pending": tracker.Pending(),
					"stats":   stats,
				})
			}
			output.Println()
			output.Dim("%d candles, %d grabs: %d confirmed, %d failed, %d evicted, %d pending",
				stats.CandlesObserved, stats.GrabsDetected, stats.GrabsConfirmed, stats.GrabsFailed,
				stats.GrabsEvicted, len(tracker.Pending()))
			return ctx.Err()
		},
	}
	addCandleFlags(cmd)
	cmd.Flags().Duration("delay", 0, "pause between replayed candles")
	cmd.Flags().Int("refresh", 0, "re-detect levels every N replayed candles (0 = never)")
	cmd.Flags().String("webhook", "", "post grab events to this URL")
	cmd.Flags().Int("max-pending", liquidity.DefaultTrackerConfig().MaxPending, "pending grabs kept before the oldest is dropped")
	return cmd
}

// replay feeds candles[warmup:] to in, refreshing the tracker's levels from
// the trailing candles every refresh candles.
func replay(ctx context.Context, in chan<- models.Candle, candles []models.Candle, warmup int, delay time.Duration,
	refresh int, analyzer *engine.Analyzer, tracker *liquidity.Tracker, log zerolog.Logger) {
	defer close(in)
	for i := warmup; i < len(candles); i++ {
		if refresh > 0 && i > warmup && (i-warmup)%refresh == 0 {
			if lvls, err := analyzer.DetectLevels(candles[:i]); err != nil {
				log.Warn().Err(err).Msg("Level refresh failed")
			} else {
				tracker.SetLevels(lvls)
			}
		}
		select {
		case in <- candles[i]:
		case <-ctx.Done():
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}
}
