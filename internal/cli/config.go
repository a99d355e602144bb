package cli

import (
	"github.com/spf13/cobra"

	"levelscope/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the levelscope configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := app.Config.Path
			if path == "" {
				path = config.ConfigPath("")
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path, "store": app.Config.Store.Path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented configuration template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath("")
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			output.Success("✓ Wrote %s", path)
			return nil
		},
	}
	cmd.AddCommand(initCmd)

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	a := cfg.Analysis
	output.Bold("Level Detection")
	output.Printf("  Lookback:          %d candles\n", a.LookbackPeriod)
	output.Printf("  Min Touches:       %d\n", a.MinTouches)
	output.Printf("  Touch Tolerance:   %.2f%%\n", a.TouchTolerancePct)
	output.Printf("  Min Strength:      %.2f\n", a.MinStrength)
	output.Printf("  Pivot Window:      %d\n", a.PivotWindow)
	output.Printf("  Volume Weighting:  %v\n", a.VolumeWeighting)
	output.Println()

	w := a.StrengthWeights
	output.Bold("Strength Weights")
	output.Printf("  Touches %.2f  Volume %.2f  Time %.2f  Price Action %.2f  Rejection %.2f\n",
		w.Touches, w.Volume, w.Time, w.PriceAction, w.Rejection)
	output.Println()

	output.Bold("Liquidity Grabs")
	output.Printf("  Grab Threshold:    %.2f%%\n", a.LiquidityGrabThreshold)
	output.Printf("  Confirmation:      %d candles\n", a.ReversalConfirmationPeriod)
	output.Println()

	output.Bold("Confluence")
	output.Printf("  Min Factors:       %d\n", a.Confluence.MinFactors)
	output.Printf("  Price Tolerance:   %.2f%%\n", a.Confluence.PriceTolerancePct)
	output.Printf("  Profile Bins:      %d\n", cfg.Engine.ProfileBins)
	output.Printf("  Channel Strength:  %d\n", cfg.Engine.ChannelStrength)
	output.Println()

	output.Bold("Storage & Logging")
	output.Printf("  Database:          %s\n", cfg.Store.Path)
	output.Printf("  Log Level:         %s\n", cfg.Logging.Level)
	if cfg.Logging.File {
		output.Printf("  Log File:          %s\n", cfg.Logging.FilePath)
	}
}
