package provider

import (
	"context"
	"errors"
	"fmt"
	"log"

	"stockpulse/internal/market"
)

// QuoteProvider fetches a single normalized current quote for a ticker.
type QuoteProvider interface {
	Name() string
	Quote(ctx context.Context, ticker string) (market.Quote, error)
}

// HistoryProvider fetches up to days of historical daily closes,
// sorted ascending by date.
type HistoryProvider interface {
	Name() string
	History(ctx context.Context, ticker string, days int) ([]market.PricePoint, error)
}

// NewsQuery narrows a news fetch.
type NewsQuery struct {
	Ticker string
	Limit  int
	// Period is one of "1d", "7d", "30d"; empty means the provider default.
	Period string
	// Sentiment filters normalized articles after dedup; empty keeps all.
	Sentiment market.Sentiment
}

// NewsProvider fetches recent articles for a ticker in the normalized shape.
type NewsProvider interface {
	Name() string
	News(ctx context.Context, q NewsQuery) ([]market.Article, error)
}

// upstream reports whether err is a provider-level failure that allows
// falling through to the next provider in a chain.
func upstream(err error) bool {
	var ne *market.NetworkError
	var de *market.DataError
	return errors.As(err, &ne) || errors.As(err, &de)
}

// QuoteChain tries providers in declared priority order until one succeeds.
// A provider is never retried within one request.
type QuoteChain struct {
	Providers []QuoteProvider
}

func (c *QuoteChain) Name() string { return "chain" }

func (c *QuoteChain) Quote(ctx context.Context, ticker string) (market.Quote, error) {
	var lastErr error
	for _, p := range c.Providers {
		q, err := p.Quote(ctx, ticker)
		if err == nil {
			return q, nil
		}
		if !upstream(err) {
			return market.Quote{}, err
		}
		log.Printf("quote: %s failed for %s, trying next: %v", p.Name(), ticker, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("quote: no providers configured")
	}
	return market.Quote{}, lastErr
}

// HistoryChain is the history analogue of QuoteChain.
type HistoryChain struct {
	Providers []HistoryProvider
}

func (c *HistoryChain) Name() string { return "chain" }

func (c *HistoryChain) History(ctx context.Context, ticker string, days int) ([]market.PricePoint, error) {
	var lastErr error
	for _, p := range c.Providers {
		pts, err := p.History(ctx, ticker, days)
		if err == nil {
			return pts, nil
		}
		if !upstream(err) {
			return nil, err
		}
		log.Printf("history: %s failed for %s, trying next: %v", p.Name(), ticker, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("history: no providers configured")
	}
	return nil, lastErr
}

// NewsChain merges results from every primary provider, then deduplicates
// by exact title (first occurrence wins), applies the optional sentiment
// filter and truncates to the requested limit. Fallback providers are
// consulted only when the primaries produced nothing. Providers that fail
// are skipped; the chain only errors when everything failed and nothing was
// collected.
type NewsChain struct {
	Providers []NewsProvider
	Fallback  []NewsProvider
}

func (c *NewsChain) Name() string { return "chain" }

func (c *NewsChain) News(ctx context.Context, q NewsQuery) ([]market.Article, error) {
	var merged []market.Article
	var lastErr error
	for _, tier := range [][]NewsProvider{c.Providers, c.Fallback} {
		for _, p := range tier {
			articles, err := p.News(ctx, q)
			if err != nil {
				if !upstream(err) {
					return nil, err
				}
				log.Printf("news: %s failed for %s: %v", p.Name(), q.Ticker, err)
				lastErr = err
				continue
			}
			merged = append(merged, articles...)
		}
		if len(merged) > 0 {
			break
		}
	}
	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return Dedupe(merged, q.Sentiment, q.Limit), nil
}

// Dedupe removes articles with a previously seen title (case-sensitive exact
// match, first wins), drops articles not matching the sentiment filter, and
// truncates to limit. Limit <= 0 means no truncation.
func Dedupe(articles []market.Article, sentiment market.Sentiment, limit int) []market.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]market.Article, 0, len(articles))
	for _, a := range articles {
		if sentiment != "" && a.Sentiment != sentiment {
			continue
		}
		if _, dup := seen[a.Title]; dup {
			continue
		}
		seen[a.Title] = struct{}{}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
