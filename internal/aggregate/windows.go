package aggregate

import (
	"context"
	"sort"
	"time"

	"stockpulse/internal/store"
)

// PeriodStart maps a timePeriod parameter ("1d", "7d", "30d") to its window
// start. Unknown or empty values default to seven days.
func PeriodStart(now time.Time, period string) time.Time {
	switch period {
	case "1d":
		return now.AddDate(0, 0, -1)
	case "30d":
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// BuzzStore is the slice of the persistence store the buzz ranking needs.
type BuzzStore interface {
	NewsCountsSince(ctx context.Context, since time.Time) ([]store.TickerCount, error)
	CompanyNames(ctx context.Context) (map[string]string, error)
}

// NewsBuzz ranks tickers by stored article count inside the requested
// window. The normalizer is the loudest ticker's count (floored at 10), so
// the busiest ticker scores near 1 and the rest scale relative to it.
func NewsBuzz(ctx context.Context, s BuzzStore, now time.Time, period string, limit int) ([]Buzz, error) {
	if limit <= 0 {
		limit = 10
	}
	counts, err := s.NewsCountsSince(ctx, PeriodStart(now, period))
	if err != nil {
		return nil, err
	}
	names, err := s.CompanyNames(ctx)
	if err != nil {
		return nil, err
	}

	var maxCount int64
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	rows := make([]Buzz, 0, len(counts))
	for _, c := range counts {
		name := names[c.Ticker]
		if name == "" {
			name = CompanyName(c.Ticker)
		}
		var score float64
		if maxCount > 0 {
			score = BuzzScore(float64(c.Count), float64(maxCount))
		}
		rows = append(rows, Buzz{Ticker: c.Ticker, Score: score, CompanyFullName: name})
	}

	RankBuzz(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// SentimentMover is one ranked sentiment-movers row. SentimentScore is in
// [-100, 100]; Change is the delta against the prior window.
type SentimentMover struct {
	Ticker         string
	SentimentScore int
	Change         int
}

// SentimentStore is the slice of the persistence store sentiment movers need.
type SentimentStore interface {
	ListStocks(ctx context.Context, limit int) ([]store.Stock, error)
	SentimentCounts(ctx context.Context, ticker string, from, to time.Time) (store.SentimentCounts, error)
}

// Score maps a window breakdown onto [-100, 100]: all bullish is 100, all
// bearish is -100. Integer division truncates toward zero, same as the score
// consumers expect.
func Score(c store.SentimentCounts) int {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return int((c.Bullish - c.Bearish) * 100 / total)
}

// SentimentMovers ranks tickers by the shift between the last day's
// sentiment score and the prior week's. Tickers with no analyzed articles in
// the current window are skipped; an empty prior window means zero change.
func SentimentMovers(ctx context.Context, s SentimentStore, now time.Time, limit int) ([]SentimentMover, error) {
	if limit <= 0 {
		limit = 10
	}
	stocks, err := s.ListStocks(ctx, limit*3)
	if err != nil {
		return nil, err
	}

	today := now.UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)

	movers := make([]SentimentMover, 0, len(stocks))
	for _, stock := range stocks {
		current, err := s.SentimentCounts(ctx, stock.Ticker, yesterday, time.Time{})
		if err != nil {
			return nil, err
		}
		if current.Total() == 0 {
			continue
		}
		score := Score(current)

		previous, err := s.SentimentCounts(ctx, stock.Ticker, weekAgo, yesterday)
		if err != nil {
			return nil, err
		}
		change := 0
		if previous.Total() > 0 {
			change = score - Score(previous)
		}
		movers = append(movers, SentimentMover{Ticker: stock.Ticker, SentimentScore: score, Change: change})
	}

	sort.SliceStable(movers, func(i, j int) bool {
		return abs(movers[i].Change) > abs(movers[j].Change)
	})
	if len(movers) > limit {
		movers = movers[:limit]
	}
	return movers, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
