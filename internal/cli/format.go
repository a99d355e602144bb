package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatPrice formats a price with decimals suited to its magnitude.
func FormatPrice(price float64) string {
	switch abs := math.Abs(price); {
	case abs >= 10:
		return fmt.Sprintf("%.2f", price)
	case abs >= 1:
		return fmt.Sprintf("%.3f", price)
	default:
		return fmt.Sprintf("%.5f", price)
	}
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatDistance formats the signed distance from current to price as a
// percentage of current.
func FormatDistance(price, current float64) string {
	if current == 0 {
		return "-"
	}
	return FormatPercent((price - current) / current * 100)
}

// FormatVolume formats volume in compact form (K, M, B).
func FormatVolume(volume float64) string {
	switch abs := math.Abs(volume); {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", volume/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", volume/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", volume/1e3)
	}
	return fmt.Sprintf("%.0f", volume)
}

const scoreBarWidth = 10

// FormatScore renders a [0, 1] score as a bar followed by its value.
func FormatScore(score float64) string {
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(1, score))
	filled := int(math.Round(score * scoreBarWidth))
	return strings.Repeat("█", filled) + strings.Repeat("░", scoreBarWidth-filled) + fmt.Sprintf(" %.2f", score)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatTimestamp formats t in UTC with layout, "-" for the zero time.
func FormatTimestamp(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = time.RFC3339
	}
	return t.UTC().Format(layout)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
