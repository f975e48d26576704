package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
)

func recordingSleep(pauses *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*pauses = append(*pauses, d)
		return nil
	}
}

func noFallback(string) (market.Quote, bool) { return market.Quote{}, false }

func TestBatchFetcher_CooldownAfterEveryQuota(t *testing.T) {
	tickers := make([]string, 12)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
	}

	var pauses []time.Duration
	f := &BatchFetcher{
		FetchQuote: func(_ context.Context, ticker string) (market.Quote, error) {
			return market.Quote{Ticker: ticker, CurrentPrice: decimal.NewFromInt(1)}, nil
		},
		Quota:    5,
		Cooldown: 12 * time.Second,
		Spacing:  500 * time.Millisecond,
		Sleep:    recordingSleep(&pauses),
	}

	results := f.Refresh(context.Background(), tickers, noFallback)
	if len(results) != 12 {
		t.Fatalf("want 12 results, got %d", len(results))
	}

	// A pause after every ticker except the last: 11 total, and the ones
	// following the 5th and 10th successful calls are cooldowns.
	if len(pauses) != 11 {
		t.Fatalf("want 11 pauses, got %d: %v", len(pauses), pauses)
	}
	var cooldowns int
	for i, p := range pauses {
		if p == f.Cooldown {
			cooldowns++
			if i != 4 && i != 9 {
				t.Fatalf("cooldown at unexpected position %d: %v", i, pauses)
			}
		} else if p != f.Spacing {
			t.Fatalf("pause %d = %v, want spacing %v", i, p, f.Spacing)
		}
	}
	if cooldowns != 2 {
		t.Fatalf("want 2 cooldowns, got %d: %v", cooldowns, pauses)
	}
}

func TestBatchFetcher_FailureUsesFallbackOrDrops(t *testing.T) {
	cached := market.Quote{Ticker: "MSFT", CurrentPrice: decimal.NewFromInt(300)}

	var pauses []time.Duration
	f := &BatchFetcher{
		FetchQuote: func(_ context.Context, ticker string) (market.Quote, error) {
			if ticker == "AAPL" {
				return market.Quote{Ticker: ticker, CurrentPrice: decimal.NewFromInt(150)}, nil
			}
			return market.Quote{}, &market.NetworkError{Provider: "test", Err: errors.New("down")}
		},
		Quota:   5,
		Spacing: time.Millisecond,
		Sleep:   recordingSleep(&pauses),
	}

	results := f.Refresh(context.Background(), []string{"AAPL", "MSFT", "GOOG"}, func(ticker string) (market.Quote, bool) {
		if ticker == "MSFT" {
			return cached, true
		}
		return market.Quote{}, false
	})

	// AAPL fresh, MSFT substituted from cache, GOOG dropped.
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Ticker != "AAPL" || results[0].FromCache {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Ticker != "MSFT" || !results[1].FromCache || !results[1].Quote.CurrentPrice.Equal(cached.CurrentPrice) {
		t.Fatalf("unexpected second result: %+v", results[1])
	}

	// Failed calls do not pause; only the successful AAPL call does.
	if len(pauses) != 1 {
		t.Fatalf("want 1 pause, got %d: %v", len(pauses), pauses)
	}
}

func TestBatchFetcher_CanceledMidBatchServesRestFromCache(t *testing.T) {
	var calls []string
	f := &BatchFetcher{
		FetchQuote: func(_ context.Context, ticker string) (market.Quote, error) {
			calls = append(calls, ticker)
			return market.Quote{Ticker: ticker, CurrentPrice: decimal.NewFromInt(1)}, nil
		},
		Quota:   5,
		Spacing: time.Millisecond,
		Sleep: func(_ context.Context, _ time.Duration) error {
			return context.Canceled
		},
	}

	results := f.Refresh(context.Background(), []string{"A", "B", "C"}, func(ticker string) (market.Quote, bool) {
		return market.Quote{Ticker: ticker, CurrentPrice: decimal.NewFromInt(9)}, true
	})

	if len(calls) != 1 || calls[0] != "A" {
		t.Fatalf("upstream called for %v, want only A", calls)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d: %+v", len(results), results)
	}
	if results[0].FromCache || !results[1].FromCache || !results[2].FromCache {
		t.Fatalf("cache flags wrong: %+v", results)
	}
}
