package sentiment

import (
	"context"
	"strings"

	"stockpulse/internal/market"
)

// Classifier labels a span of financial text.
type Classifier interface {
	Classify(ctx context.Context, text string) market.Sentiment
}

// Bullish and bearish keyword sets for the deterministic fallback.
// Counting is by keyword presence (case-insensitive substring), one per
// keyword, not per occurrence.
var bullishKeywords = []string{
	"surge", "rally", "gain", "rise", "up", "bullish", "buy", "outperform",
	"growth", "profit", "earnings beat", "upgrade", "positive", "strong",
	"momentum", "breakthrough", "success", "win", "soar", "jump", "climb",
	"increase", "expand", "boom", "thrive", "excel",
}

var bearishKeywords = []string{
	"drop", "fall", "decline", "down", "bearish", "sell", "underperform",
	"loss", "earnings miss", "downgrade", "negative", "weak", "crash",
	"plunge", "tumble", "slump", "decrease", "shrink", "struggle", "fail",
	"concern", "risk", "worry", "fear", "uncertainty", "volatility",
}

// Keyword is the deterministic heuristic classifier. A label is only
// assigned when one side outnumbers the other by more than one keyword; the
// margin suppresses noise from mixed headlines and must not be changed to a
// plain majority.
type Keyword struct{}

func (Keyword) Classify(_ context.Context, text string) market.Sentiment {
	if strings.TrimSpace(text) == "" {
		return market.Neutral
	}
	lower := strings.ToLower(text)

	var bullish, bearish int
	for _, kw := range bullishKeywords {
		if strings.Contains(lower, kw) {
			bullish++
		}
	}
	for _, kw := range bearishKeywords {
		if strings.Contains(lower, kw) {
			bearish++
		}
	}

	switch {
	case bullish > bearish+1:
		return market.Bullish
	case bearish > bullish+1:
		return market.Bearish
	default:
		return market.Neutral
	}
}
