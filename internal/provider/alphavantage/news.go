package alphavantage

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"stockpulse/internal/market"
	"stockpulse/internal/provider"
)

// Sentiment score cutoffs used by the upstream feed documentation.
const (
	bullishCutoff = 0.35
	bearishCutoff = -0.35
)

type feedItem struct {
	Title         string      `json:"title"`
	Summary       string      `json:"summary"`
	Source        string      `json:"source"`
	URL           string      `json:"url"`
	TimePublished string      `json:"time_published"`
	OverallScore  json.Number `json:"overall_sentiment_score"`
}

type newsResponse struct {
	envelope
	Feed []feedItem `json:"feed"`
}

// News fetches the NEWS_SENTIMENT feed. The upstream score is bucketed into
// the three sentiment labels; everything inside (-0.35, 0.35) is Neutral.
func (c *Client) News(ctx context.Context, q provider.NewsQuery) ([]market.Article, error) {
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", q.Ticker)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var body newsResponse
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	if err := body.envelope.err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	articles := make([]market.Article, 0, len(body.Feed))
	for _, item := range body.Feed {
		published, err := time.ParseInLocation("20060102T150405", item.TimePublished, time.UTC)
		if err != nil {
			published = now
		}
		score, _ := item.OverallScore.Float64()
		sentiment := market.Neutral
		if score > bullishCutoff {
			sentiment = market.Bullish
		} else if score < bearishCutoff {
			sentiment = market.Bearish
		}
		articles = append(articles, market.Article{
			Ticker:      q.Ticker,
			Title:       item.Title,
			Content:     item.Summary,
			Source:      item.Source,
			PublishedAt: published,
			Link:        item.URL,
			Sentiment:   sentiment,
		})
	}
	return articles, nil
}
