// Package config provides configuration management for levelscope.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"levelscope/internal/analysis"
	apperrors "levelscope/internal/errors"
	"levelscope/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Analysis analysis.Config   `mapstructure:"analysis" json:"analysis"`
	Engine   EngineConfig      `mapstructure:"engine" json:"engine"`
	Logging  logging.LogConfig `mapstructure:"logging" json:"logging"`
	Notify   NotifyConfig      `mapstructure:"notify" json:"notify"`
	Store    StoreConfig       `mapstructure:"store" json:"store"`
	UI       UIConfig          `mapstructure:"ui" json:"ui"`

	// Path is the file the configuration was read from, empty when only
	// defaults were used.
	Path string `mapstructure:"-" json:"path,omitempty"`
}

// EngineConfig holds the optional confluence collaborators and batch settings.
type EngineConfig struct {
	ProfileBins     int `mapstructure:"profile_bins" json:"profile_bins"`
	ChannelStrength int `mapstructure:"channel_strength" json:"channel_strength"`
	Workers         int `mapstructure:"workers" json:"workers"` // 0 means one per CPU
}

// StoreConfig holds the SQLite store settings.
type StoreConfig struct {
	Path      string `mapstructure:"path" json:"path"`
	BatchSize int    `mapstructure:"batch_size" json:"batch_size"` // candles per import transaction
}

// NotifyConfig holds the liquidity grab notification settings.
type NotifyConfig struct {
	Level       string         `mapstructure:"level" json:"level"`
	MinStrength float64        `mapstructure:"min_strength" json:"min_strength"`
	Terminal    TerminalConfig `mapstructure:"terminal" json:"terminal"`
	Webhook     WebhookConfig  `mapstructure:"webhook" json:"webhook"`
}

// TerminalConfig holds terminal alert settings.
type TerminalConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	Bell    bool `mapstructure:"bell" json:"bell"`
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled"`
	URL         string        `mapstructure:"url" json:"url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"`
}

// UIConfig holds terminal output settings.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled" json:"color_enabled"`
	TimeFormat   string `mapstructure:"time_format" json:"time_format"`
}

// Environment overrides.
const (
	EnvLogLevel = "LEVELSCOPE_LOG_LEVEL"
	EnvDBPath   = "LEVELSCOPE_DB_PATH"
	EnvLookback = "LEVELSCOPE_LOOKBACK"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/levelscope"
	}
	return filepath.Join(home, ".config", "levelscope")
}

// ConfigPath returns the config.toml path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	// defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads config.toml from configDir (the default directory when empty).
// A missing file is replaced by a commented template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	setDefaults(v, configDir)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	path := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	} else {
		path = v.ConfigFileUsed()
	}

	return decode(v, path)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, filepath.Dir(path))
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return decode(v, path)
}

func decode(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Path = path

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	d := analysis.DefaultConfig()
	v.SetDefault("analysis.min_touches", d.MinTouches)
	v.SetDefault("analysis.touch_tolerance_pct", d.TouchTolerancePct)
	v.SetDefault("analysis.min_strength", d.MinStrength)
	v.SetDefault("analysis.lookback_period", d.LookbackPeriod)
	v.SetDefault("analysis.volume_weighting", d.VolumeWeighting)
	v.SetDefault("analysis.liquidity_grab_threshold", d.LiquidityGrabThreshold)
	v.SetDefault("analysis.reversal_confirmation_period", d.ReversalConfirmationPeriod)
	v.SetDefault("analysis.pivot_window", d.PivotWindow)
	v.SetDefault("analysis.strength_weights.touches", d.StrengthWeights.Touches)
	v.SetDefault("analysis.strength_weights.volume", d.StrengthWeights.Volume)
	v.SetDefault("analysis.strength_weights.time", d.StrengthWeights.Time)
	v.SetDefault("analysis.strength_weights.price_action", d.StrengthWeights.PriceAction)
	v.SetDefault("analysis.strength_weights.rejection", d.StrengthWeights.Rejection)
	v.SetDefault("analysis.confluence.min_factors", d.Confluence.MinFactors)
	v.SetDefault("analysis.confluence.price_tolerance_pct", d.Confluence.PriceTolerancePct)

	v.SetDefault("engine.profile_bins", 50)
	v.SetDefault("engine.channel_strength", 3)
	v.SetDefault("engine.workers", 0)

	l := logging.DefaultLogConfig()
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.console", l.Console)
	v.SetDefault("logging.file", l.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "levelscope.log"))
	v.SetDefault("logging.max_size", l.MaxSize)
	v.SetDefault("logging.max_backups", l.MaxBackups)
	v.SetDefault("logging.max_age", l.MaxAge)
	v.SetDefault("logging.no_color", false)

	v.SetDefault("notify.level", "all")
	v.SetDefault("notify.min_strength", 0.0)
	v.SetDefault("notify.terminal.enabled", false)
	v.SetDefault("notify.terminal.bell", true)
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.timeout", 10*time.Second)
	v.SetDefault("notify.webhook.max_attempts", 3)

	v.SetDefault("store.path", filepath.Join(configDir, "levelscope.db"))
	v.SetDefault("store.batch_size", 1000)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.time_format", "2006-01-02 15:04")
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvLookback); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.NewValidationError(EnvLookback, v, "must be an integer")
		}
		cfg.Analysis.LookbackPeriod = n
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Engine.ProfileBins < 1 {
		return apperrors.NewValidationError("engine.profile_bins", c.Engine.ProfileBins, "must be positive")
	}
	if c.Engine.ChannelStrength < 1 {
		return apperrors.NewValidationError("engine.channel_strength", c.Engine.ChannelStrength, "must be positive")
	}
	if c.Engine.Workers < 0 {
		return apperrors.NewValidationError("engine.workers", c.Engine.Workers, "must not be negative")
	}
	if c.Store.Path == "" {
		return apperrors.NewValidationError("store.path", c.Store.Path, "must not be empty")
	}
	if c.Store.BatchSize < 1 {
		return apperrors.NewValidationError("store.batch_size", c.Store.BatchSize, "must be positive")
	}
	switch c.Notify.Level {
	case "all", "resolved", "confirmed":
	default:
		return apperrors.NewValidationError("notify.level", c.Notify.Level, "must be all, resolved or confirmed")
	}
	if c.Notify.MinStrength < 0 || c.Notify.MinStrength > 1 {
		return apperrors.NewValidationError("notify.min_strength", c.Notify.MinStrength, "must be between 0 and 1")
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return apperrors.NewValidationError("notify.webhook.url", c.Notify.Webhook.URL, "required when the webhook is enabled")
	}
	return nil
}
