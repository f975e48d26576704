package aggregate

import (
	"context"
	"log"
	"time"

	"stockpulse/internal/market"
	"stockpulse/internal/provider"
	"stockpulse/internal/store"
)

// historyDays is the trailing window served by the details endpoint.
const historyDays = 30

// DetailsStore is the slice of the persistence store the details assembly
// needs.
type DetailsStore interface {
	GetStock(ctx context.Context, ticker string) (*store.Stock, error)
	EnsureStock(ctx context.Context, ticker string) (*store.Stock, error)
	SaveQuote(ctx context.Context, ticker string, q market.Quote) error
	PriceDates(ctx context.Context, ticker string, from time.Time) (map[time.Time]struct{}, error)
	UpsertPricePoint(ctx context.Context, ticker string, p market.PricePoint) error
	PriceHistory(ctx context.Context, ticker string, from time.Time, limit int) ([]store.PricePoint, error)
	SentimentCounts(ctx context.Context, ticker string, from, to time.Time) (store.SentimentCounts, error)
	RecentNews(ctx context.Context, ticker string, n int) ([]store.Article, error)
	CountNews(ctx context.Context, ticker string) (int64, error)
}

// DaySentiment is one day's analyzed-article breakdown.
type DaySentiment struct {
	Date    time.Time
	Bullish int64
	Bearish int64
	Neutral int64
}

// StockDetails is everything the details endpoint serves for one ticker.
type StockDetails struct {
	Stock            store.Stock
	NewsBuzz         float64
	PriceHistory     []store.PricePoint
	SentimentHistory []DaySentiment
	RecentNews       []store.Article
}

// Details assembles per-ticker detail views, refreshing the quote and
// filling missing history dates only when the store cannot serve them.
type Details struct {
	Store   DetailsStore
	Quotes  provider.QuoteProvider
	History provider.HistoryProvider
	Window  time.Duration
	Now     func() time.Time
}

// Get validates the ticker, refreshes stale data and assembles the view.
// Provider failures degrade to whatever the store holds; only store failures
// propagate.
func (d *Details) Get(ctx context.Context, rawTicker string) (*StockDetails, error) {
	ticker := market.NormalizeTicker(rawTicker)
	if !market.ValidTicker(ticker) {
		return nil, &market.ValidationError{Field: "ticker", Reason: "must be 1-6 alphanumeric characters"}
	}

	now := d.Now()
	stock, err := d.Store.EnsureStock(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if Stale(stock.UpdatedAt, now, d.Window, stock.CurrentPrice.Valid) {
		if quote, err := d.Quotes.Quote(ctx, ticker); err != nil {
			log.Printf("details: quote refresh for %s failed, serving stored data: %v", ticker, err)
		} else if err := d.Store.SaveQuote(ctx, ticker, quote); err != nil {
			return nil, err
		} else if updated, err := d.Store.GetStock(ctx, ticker); err != nil {
			return nil, err
		} else if updated != nil {
			stock = updated
		}
	}

	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -historyDays)
	if err := d.fillHistory(ctx, ticker, start, today); err != nil {
		return nil, err
	}
	history, err := d.Store.PriceHistory(ctx, ticker, start, historyDays)
	if err != nil {
		return nil, err
	}

	sentimentHistory, err := d.sentimentHistory(ctx, ticker, start)
	if err != nil {
		return nil, err
	}

	recent, err := d.Store.RecentNews(ctx, ticker, 10)
	if err != nil {
		return nil, err
	}
	totalNews, err := d.Store.CountNews(ctx, ticker)
	if err != nil {
		return nil, err
	}

	return &StockDetails{
		Stock:            *stock,
		NewsBuzz:         BuzzScore(float64(totalNews), 100.0),
		PriceHistory:     history,
		SentimentHistory: sentimentHistory,
		RecentNews:       recent,
	}, nil
}

// fillHistory fetches only the span needed to cover dates the store is
// missing, then upserts just those dates. A provider failure leaves the
// store as-is.
func (d *Details) fillHistory(ctx context.Context, ticker string, start, today time.Time) error {
	existing, err := d.Store.PriceDates(ctx, ticker, start)
	if err != nil {
		return err
	}

	missing := make(map[time.Time]struct{}, historyDays)
	oldest := time.Time{}
	for i := 0; i < historyDays; i++ {
		date := start.AddDate(0, 0, i)
		if _, ok := existing[date]; ok {
			continue
		}
		missing[date] = struct{}{}
		if oldest.IsZero() {
			oldest = date
		}
	}
	if len(missing) == 0 {
		return nil
	}

	daysToFetch := int(today.Sub(oldest).Hours()/24) + 1
	points, err := d.History.History(ctx, ticker, daysToFetch)
	if err != nil {
		log.Printf("details: history fetch for %s failed, serving stored points: %v", ticker, err)
		return nil
	}
	for _, p := range points {
		day := p.Date.UTC().Truncate(24 * time.Hour)
		if _, ok := missing[day]; !ok {
			continue
		}
		if err := d.Store.UpsertPricePoint(ctx, ticker, p); err != nil {
			return err
		}
	}
	return nil
}

// sentimentHistory walks the trailing window one day at a time, skipping
// days with no analyzed articles.
func (d *Details) sentimentHistory(ctx context.Context, ticker string, start time.Time) ([]DaySentiment, error) {
	history := make([]DaySentiment, 0, historyDays)
	for i := 0; i < historyDays; i++ {
		day := start.AddDate(0, 0, i)
		counts, err := d.Store.SentimentCounts(ctx, ticker, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		if counts.Total() == 0 {
			continue
		}
		history = append(history, DaySentiment{
			Date:    day,
			Bullish: counts.Bullish,
			Bearish: counts.Bearish,
			Neutral: counts.Neutral,
		})
	}
	return history, nil
}
