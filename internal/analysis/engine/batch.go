package engine

import (
	"context"
	"runtime"
	"sync"

	"levelscope/internal/models"
)

// Series is one symbol's candles.
type Series struct {
	Symbol  string
	Candles []models.Candle
}

// Result is the outcome of analyzing one Series.
type Result struct {
	Symbol string
	Report *Report
	Err    error
}

// AnalyzeMany analyzes each series on a fixed pool of workers. If workers is
// 0, it defaults to runtime.NumCPU(). Results keep the input order; series
// not started before ctx is done carry ctx.Err().
func (a *Analyzer) AnalyzeMany(ctx context.Context, series []Series, workers int) []Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(series))

	results := make([]Result, len(series))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s := series[i]
				report, err := a.Analyze(ctx, s.Symbol, s.Candles)
				results[i] = Result{Symbol: s.Symbol, Report: report, Err: err}
			}
		}()
	}

feed:
	for i := range series {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(series); j++ {
				results[j] = Result{Symbol: series[j].Symbol, Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	a.logger.Debug().Int("series", len(series)).Int("failed", failed).Int("workers", workers).Msg("batch analysis complete")
	return results
}
