// Command levelscope analyzes support/resistance levels, liquidity grabs and
// confluence zones in OHLCV candle data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"levelscope/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
