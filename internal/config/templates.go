package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# levelscope configuration

[analysis]
# Minimum touches for a level to be reported
min_touches = 2
# Touch tolerance as a percentage of price
touch_tolerance_pct = 0.5
# Minimum strength score in [0, 1]
min_strength = 0.3
# Candles analyzed (the trailing window)
lookback_period = 50
# Weight touches by relative volume (capped at 2x)
volume_weighting = true
# Penetration tolerance for liquidity grabs, percentage of price
liquidity_grab_threshold = 0.5
# Candles that must close back on the level side to confirm a grab
reversal_confirmation_period = 3
# Bars on each side of a pivot
pivot_window = 5

[analysis.strength_weights]
touches = 0.25
volume = 0.20
time = 0.15
price_action = 0.20
rejection = 0.20

[analysis.confluence]
# Distinct inputs needed for a zone
min_factors = 2
# Grouping distance as a percentage of price
price_tolerance_pct = 0.5

[engine]
# Volume profile bins
profile_bins = 50
# Swing confirmation width of the pivot channel
channel_strength = 3
# Concurrent analyses for multi-symbol reports, 0 = one per CPU
workers = 0

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 30

[notify]
# Grab events sent by 'watch': all, resolved (confirmed or failed), confirmed
level = "all"
# Skip grabs weaker than this
min_strength = 0.0

[notify.terminal]
enabled = false
bell = true

[notify.webhook]
enabled = false
url = ""
timeout = "10s"
max_attempts = 3

[store]
# SQLite database; defaults to levelscope.db next to this file
# path = "/path/to/levelscope.db"
# Candles written per transaction on import
batch_size = 1000

[ui]
color_enabled = true
time_format = "2006-01-02 15:04"
`

// WriteTemplate writes the commented default configuration to path.
func WriteTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateConfig(configDir string) error {
	return WriteTemplate(filepath.Join(configDir, "config.toml"))
}
