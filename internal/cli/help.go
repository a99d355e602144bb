package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "Load data",
		commands: []string{
			"levelscope data import AAPL.csv MSFT.csv     # symbol from the file name",
			"levelscope data import btc.csv -s BTCUSD -t 1h",
			"levelscope data list                         # stored series",
		},
	},
	{
		title: "Analyze one series",
		commands: []string{
			"levelscope levels AAPL                       # levels, nearest support/resistance",
			"levelscope grabs AAPL                        # liquidity grabs in the window",
			"levelscope confluence AAPL                   # zones and bias",
			"levelscope adjust AAPL                       # stop/target placement",
			"levelscope levels --csv data/AAPL.csv        # straight from a file",
		},
	},
	{
		title: "Reports",
		commands: []string{
			"levelscope report --all --save               # every stored series, saved",
			"levelscope report last AAPL                  # most recent saved report",
			"levelscope report AAPL MSFT --json > out.json",
		},
	},
	{
		title: "Streaming replay",
		commands: []string{
			"levelscope watch AAPL --delay 200ms          # grabs as they confirm or fail",
			"levelscope watch AAPL --refresh 24           # re-detect levels every 24 candles",
			"levelscope watch AAPL --webhook https://hooks.example.com/levelscope",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				out := make(map[string][]string, len(workflows))
				for _, w := range workflows {
					out[w.title] = w.commands
				}
				return output.JSON(out)
			}

			output.Bold("Common Workflows")
			output.Println()
			for _, w := range workflows {
				output.Bold(w.title)
				output.Println(strings.Repeat("─", len(w.title)))
				for _, c := range w.commands {
					output.Println("  " + c)
				}
				output.Println()
			}
			return nil
		},
	}
}
