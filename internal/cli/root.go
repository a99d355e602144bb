// Package cli provides the command-line interface for levelscope.
package cli

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"levelscope/internal/analysis/engine"
	"levelscope/internal/config"
	"levelscope/internal/logging"
	"levelscope/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. They are resolved in the root
// command's PersistentPreRunE once flags are parsed.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	store store.DataStore
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path, store.WithLogger(a.Logger))
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Analyzer builds an analyzer from the loaded configuration.
func (a *App) Analyzer() (*engine.Analyzer, error) {
	return engine.NewAnalyzer(a.Config.Analysis,
		engine.WithLogger(a.Logger),
		engine.WithProfileBins(a.Config.Engine.ProfileBins),
		engine.WithChannelStrength(a.Config.Engine.ChannelStrength),
	)
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "levelscope",
		Short: "Support/resistance, liquidity grab and confluence analysis",
		Long: `levelscope finds support and resistance levels in OHLCV candles, scores them,
flags liquidity grabs at those levels and groups agreeing levels into
confluence zones.

Candles are read from a CSV file (--csv) or from the local store, filled
with 'levelscope data import'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory or file (default: ~/.config/levelscope)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	addAnalysisCommands(rootCmd, app)
	rootCmd.AddCommand(newReportCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newExamplesCmd())

	return rootCmd
}

func (a *App) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor || !cfg.UI.ColorEnabled {
		color.NoColor = true
	}
	cfg.Logging.NoColor = color.NoColor

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
	}

	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.Logger))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load("")
	}
	if strings.HasSuffix(path, ".toml") {
		return config.LoadFile(path)
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return config.LoadFile(path)
	}
	return config.Load(path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("levelscope v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
