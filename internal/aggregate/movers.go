package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"stockpulse/internal/market"
	"stockpulse/internal/provider"
	"stockpulse/internal/store"
)

// MoverStore is the slice of the persistence store the aggregator needs.
type MoverStore interface {
	GetStock(ctx context.Context, ticker string) (*store.Stock, error)
	SaveQuote(ctx context.Context, ticker string, q market.Quote) error
}

// Mover is one ranked top-movers row. Change is the canonical absolute
// dollar change, always derived from the stored percentage and price.
type Mover struct {
	Ticker       string
	Change       decimal.Decimal
	CurrentPrice decimal.Decimal
}

// TopMovers serves the ranked top-movers list with minimal upstream calls:
// fresh persisted records bypass the batch fetcher entirely and only stale
// tickers are refreshed.
type TopMovers struct {
	Store    MoverStore
	Quotes   provider.QuoteProvider
	Batch    *BatchFetcher
	Window   time.Duration
	Universe []string
	// Now is swappable for tests.
	Now func() time.Time

	// group coalesces concurrent refreshes of the same ticker so parallel
	// requests issue at most one in-flight upstream call per ticker.
	group singleflight.Group
}

// NewTopMovers wires a TopMovers whose batch fetcher goes through the
// per-ticker singleflight lease.
func NewTopMovers(st MoverStore, quotes provider.QuoteProvider, batch *BatchFetcher, window time.Duration, universe []string) *TopMovers {
	t := &TopMovers{
		Store:    st,
		Quotes:   quotes,
		Batch:    batch,
		Window:   window,
		Universe: universe,
		Now:      time.Now,
	}
	if len(t.Universe) == 0 {
		t.Universe = PopularTickers
	}
	t.Batch.FetchQuote = t.refresh
	return t
}

// refresh fetches and persists one quote under the ticker's lease.
func (t *TopMovers) refresh(ctx context.Context, ticker string) (market.Quote, error) {
	v, err, _ := t.group.Do(ticker, func() (any, error) {
		quote, err := t.Quotes.Quote(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if err := t.Store.SaveQuote(ctx, ticker, quote); err != nil {
			return nil, err
		}
		return quote, nil
	})
	if err != nil {
		return market.Quote{}, err
	}
	return v.(market.Quote), nil
}

// Top returns the limit tickers with the largest absolute day change.
// Candidates are the first limit*3 tickers of the universe: enough depth to
// find real movers without refreshing the whole list.
func (t *TopMovers) Top(ctx context.Context, limit int) ([]Mover, error) {
	if limit <= 0 {
		limit = 10
	}
	candidates := t.Universe
	if n := limit * 3; n < len(candidates) {
		candidates = candidates[:n]
	}

	now := t.Now()
	snapshots := make(map[string]*store.Stock, len(candidates))
	movers := make([]Mover, 0, len(candidates))
	var stale []string

	for _, ticker := range candidates {
		stock, err := t.Store.GetStock(ctx, ticker)
		if err != nil {
			return nil, err
		}
		snapshots[ticker] = stock

		hasPrice := stock != nil && stock.CurrentPrice.Valid
		var lastUpdate *time.Time
		if stock != nil {
			lastUpdate = stock.UpdatedAt
		}
		if Stale(lastUpdate, now, t.Window, hasPrice) {
			stale = append(stale, ticker)
			continue
		}
		movers = append(movers, moverFromRecord(stock))
	}

	if len(stale) > 0 {
		results := t.Batch.Refresh(ctx, stale, func(ticker string) (market.Quote, bool) {
			stock := snapshots[ticker]
			if stock == nil || !stock.CurrentPrice.Valid {
				return market.Quote{}, false
			}
			return market.Quote{
				Ticker:        ticker,
				CurrentPrice:  stock.CurrentPrice.Decimal,
				ChangePercent: stock.ChangePercent,
			}, true
		})
		for _, r := range results {
			movers = append(movers, Mover{
				Ticker:       r.Ticker,
				Change:       market.ChangeFromPercent(r.Quote.ChangePercent, r.Quote.CurrentPrice),
				CurrentPrice: r.Quote.CurrentPrice,
			})
		}
	}

	sort.SliceStable(movers, func(i, j int) bool {
		return movers[i].Change.Abs().GreaterThan(movers[j].Change.Abs())
	})
	if len(movers) > limit {
		movers = movers[:limit]
	}
	return movers, nil
}

func moverFromRecord(stock *store.Stock) Mover {
	return Mover{
		Ticker:       stock.Ticker,
		Change:       market.ChangeFromPercent(stock.ChangePercent, stock.CurrentPrice.Decimal),
		CurrentPrice: stock.CurrentPrice.Decimal,
	}
}
