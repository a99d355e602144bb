package cli

import (
	"fmt"
	"strings"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/engine"
)

func renderLevels(output *Output, lvls []analysis.EnhancedLevel, current float64, timeFormat string) {
	if len(lvls) == 0 {
		output.Warning("No levels above the strength threshold")
		return
	}
	table := NewTable(output, "TYPE", "PRICE", "DIST", "TOUCHES", "SCORE", "VOL", "TIME", "PA", "REJ", "REV", "GRAB", "LAST TOUCH", "SOURCES")
	for _, l := range lvls {
		grab := ""
		if l.LiquidityGrab {
			grab = output.Yellow("yes")
		}
		sources := make([]string, len(l.Sources))
		for i, s := range l.Sources {
			sources[i] = string(s)
		}
		table.AddRow(
			output.LevelType(l.Type),
			FormatPrice(l.Price),
			FormatDistance(l.Price, current),
			fmt.Sprintf("%d", l.Touches),
			FormatScore(l.StrengthScore),
			fmt.Sprintf("%.2f", l.VolumeConfirmation),
			fmt.Sprintf("%.2f", l.TimeStrength),
			fmt.Sprintf("%.2f", l.PriceActionStrength),
			fmt.Sprintf("%.2f", l.RejectionStrength),
			fmt.Sprintf("%.2f", l.ReversalPotential),
			grab,
			FormatTimestamp(l.LastTouch, timeFormat),
			output.DimText(strings.Join(sources, ",")),
		)
	}
	table.Render()
}

func renderNearest(output *Output, support, resistance *analysis.EnhancedLevel, current float64) {
	if support != nil {
		output.Printf("Nearest support:    %s (%s)\n", output.Green(FormatPrice(support.Price)), FormatDistance(support.Price, current))
	} else {
		output.Dim("Nearest support:    none")
	}
	if resistance != nil {
		output.Printf("Nearest resistance: %s (%s)\n", output.Red(FormatPrice(resistance.Price)), FormatDistance(resistance.Price, current))
	} else {
		output.Dim("Nearest resistance: none")
	}
}

func renderGrabs(output *Output, grabs []analysis.LiquidityGrab, timeFormat string) {
	if len(grabs) == 0 {
		output.Dim("No liquidity grabs")
		return
	}
	table := NewTable(output, "TIME", "TYPE", "LEVEL", "EXTREME", "SPIKE", "STRENGTH", "STATUS")
	for _, g := range grabs {
		table.AddRow(
			FormatTimestamp(g.Timestamp, timeFormat),
			output.LevelType(g.Type),
			FormatPrice(g.Price),
			FormatPrice(g.Extreme),
			fmt.Sprintf("%.2fx", g.VolumeSpike),
			FormatScore(g.Strength),
			output.Status(g.Status),
		)
	}
	table.Render()
}

func renderConfluence(output *Output, c *analysis.ConfluenceAnalysis) {
	output.Printf("Bias: %s  Confidence: %s  Zones: %d (%d strong)\n",
		output.Bias(c.MarketBias), FormatScore(c.ConfidenceScore), c.TotalZones, c.StrongZones)
	if len(c.Zones) == 0 {
		output.Dim("No confluence zones")
		return
	}
	output.Println()
	table := NewTable(output, "ZONE", "PRICE", "DIST", "STRENGTH", "RELIABILITY", "BREAKOUT", "HIST", "FACTORS")
	for _, z := range c.Zones {
		factors := make([]string, len(z.Factors))
		for i, f := range z.Factors {
			factors[i] = f.Type
		}
		table.AddRow(
			output.Zone(z.ZoneType),
			FormatPrice(z.PriceLevel),
			FormatDistance(z.PriceLevel, c.CurrentPrice),
			FormatScore(z.Strength),
			fmt.Sprintf("%.2f", z.Reliability),
			fmt.Sprintf("%.2f", z.BreakoutProbability),
			fmt.Sprintf("%.2f", z.HistoricalSignificance),
			output.DimText(strings.Join(factors, ",")),
		)
	}
	table.Render()
}

func renderAdjustments(output *Output, adjustments []analysis.LevelAdjustment) {
	if len(adjustments) == 0 {
		output.Dim("No adjustments")
		return
	}
	table := NewTable(output, "TYPE", "ORIGINAL", "ADJUSTED", "FACTOR", "CONFIDENCE", "REASON")
	for _, a := range adjustments {
		table.AddRow(
			output.LevelType(a.OriginalLevel.Type),
			FormatPrice(a.OriginalLevel.Price),
			FormatPrice(a.AdjustedLevel.Price),
			FormatPercent(a.AdjustmentFactor*100),
			fmt.Sprintf("%.2f", a.Confidence),
			a.Reason,
		)
	}
	table.Render()
}

func renderReport(output *Output, r *engine.Report, timeFormat string) {
	output.Bold("%s %s  %s  as of %s", r.Symbol, r.Timeframe, FormatPrice(r.CurrentPrice), FormatTimestamp(r.AsOf, timeFormat))
	output.Dim("%d candles analyzed in %s", r.Candles, FormatDuration(r.Elapsed))
	output.Println()

	output.Bold("Levels")
	renderLevels(output, r.Levels, r.CurrentPrice, timeFormat)
	output.Println()
	renderNearest(output, r.NearestSupport, r.NearestResistance, r.CurrentPrice)
	output.Println()

	output.Bold("Liquidity Grabs")
	renderGrabs(output, r.Grabs, timeFormat)
	output.Println()

	output.Bold("Confluence")
	if r.Confluence != nil {
		renderConfluence(output, r.Confluence)
	}
	output.Println()

	output.Bold("Adjustments")
	renderAdjustments(output, r.Adjustments)

	if r.VolumeProfile != nil {
		output.Println()
		output.Bold("Volume Profile")
		output.Printf("  POC %s  VAH %s  VAL %s\n", FormatPrice(r.VolumeProfile.POC),
			FormatPrice(r.VolumeProfile.VAH), FormatPrice(r.VolumeProfile.VAL))
	}
	if r.PivotChannel != nil {
		output.Println()
		output.Bold("Pivot Channel")
		output.Printf("  Upper %s  Center %s  Lower %s  Fit %.2f\n", FormatPrice(r.PivotChannel.UpperChannel),
			FormatPrice(r.PivotChannel.CenterLine), FormatPrice(r.PivotChannel.LowerChannel), r.PivotChannel.Strength)
	}
	if r.Fibonacci != nil {
		output.Println()
		output.Bold("Fibonacci")
		parts := make([]string, len(r.Fibonacci.Retracements))
		for i, l := range r.Fibonacci.Retracements {
			parts[i] = fmt.Sprintf("%.3f=%s", l.Ratio, FormatPrice(l.Price))
		}
		output.Printf("  %s\n", strings.Join(parts, "  "))
	}
}
