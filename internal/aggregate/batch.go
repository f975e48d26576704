package aggregate

import (
	"context"
	"log"
	"time"

	"stockpulse/internal/market"
)

// QuoteFunc fetches one fresh quote.
type QuoteFunc func(ctx context.Context, ticker string) (market.Quote, error)

// SleepFunc blocks for d or until ctx is canceled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BatchFetcher refreshes a list of tickers sequentially while respecting an
// upstream quota: after every Quota-th successful call (with more tickers
// remaining) it pauses for Cooldown, and between other calls it pauses for
// Spacing to smooth bursts. The pauses are deliberate blocking suspensions,
// not concurrency control.
type BatchFetcher struct {
	FetchQuote QuoteFunc
	// Quota is the number of upstream calls allowed per Cooldown window.
	Quota    int
	Cooldown time.Duration
	Spacing  time.Duration
	// Sleep is swappable for tests; nil means a real context-aware sleep.
	Sleep SleepFunc
}

// BatchResult is one refreshed or substituted ticker. FromCache marks a
// last-known persisted value served because the upstream call failed.
type BatchResult struct {
	Ticker    string
	Quote     market.Quote
	FromCache bool
}

// Refresh fetches every ticker in order. A per-ticker failure substitutes
// the last-known value from fallback when one exists and otherwise drops the
// ticker; the batch itself never aborts. When the context dies mid-batch the
// remaining tickers are served from fallback without further upstream calls.
func (f *BatchFetcher) Refresh(ctx context.Context, tickers []string, fallback func(ticker string) (market.Quote, bool)) []BatchResult {
	sleep := f.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	results := make([]BatchResult, 0, len(tickers))
	successes := 0
	upstreamClosed := false

	for i, ticker := range tickers {
		if !upstreamClosed {
			quote, err := f.FetchQuote(ctx, ticker)
			if err == nil {
				results = append(results, BatchResult{Ticker: ticker, Quote: quote})
				successes++
				if i < len(tickers)-1 {
					pause := f.Spacing
					if f.Quota > 0 && successes%f.Quota == 0 {
						pause = f.Cooldown
					}
					if err := sleep(ctx, pause); err != nil {
						log.Printf("batch: canceled after %d tickers, serving rest from cache", i+1)
						upstreamClosed = true
					}
				}
				continue
			}
			log.Printf("batch: refresh %s failed, using last known value: %v", ticker, err)
		}

		if quote, ok := fallback(ticker); ok {
			results = append(results, BatchResult{Ticker: ticker, Quote: quote, FromCache: true})
		}
		// No data ever obtained for this ticker: drop it from output.
	}
	return results
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
