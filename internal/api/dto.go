package api

import (
	"fmt"
	"strconv"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/market"
	"stockpulse/internal/store"
)

// Response field names are camelCase by API contract.

type stockRow struct {
	Ticker          string `json:"ticker"`
	CompanyFullName string `json:"companyFullName"`
	ChangeInDay     string `json:"changeInDay"`
	CurrentPrice    string `json:"currentPrice"`
	SentimentScore  *int   `json:"sentimentScore"`
}

func newStockRow(s store.Stock) stockRow {
	price := "0.00"
	if s.CurrentPrice.Valid {
		price = s.CurrentPrice.Decimal.StringFixed(2)
	}
	return stockRow{
		Ticker:          s.Ticker,
		CompanyFullName: s.CompanyFullName,
		ChangeInDay:     s.ChangePercent.StringFixed(2),
		CurrentPrice:    price,
		SentimentScore:  s.SentimentScore,
	}
}

type topMoverRow struct {
	Ticker       string `json:"ticker"`
	Change       string `json:"change"`
	CurrentPrice string `json:"currentPrice"`
}

type newsBuzzRow struct {
	Ticker          string `json:"ticker"`
	Score           string `json:"score"`
	CompanyFullName string `json:"companyFullName"`
}

type sentimentMoverRow struct {
	Ticker         string `json:"ticker"`
	SentimentScore int    `json:"sentimentScore"`
	Change         int    `json:"change"`
}

type pricePointRow struct {
	Date  string `json:"date"`
	Price string `json:"price"`
}

type daySentimentRow struct {
	Date    string `json:"date"`
	Bullish int64  `json:"bullish"`
	Bearish int64  `json:"bearish"`
	Neutral int64  `json:"neutral"`
}

type newsRow struct {
	ID                string `json:"id"`
	Ticker            string `json:"ticker"`
	Title             string `json:"title"`
	Content           string `json:"content"`
	Source            string `json:"source"`
	Author            string `json:"author,omitempty"`
	Date              string `json:"date"`
	Link              string `json:"link"`
	Sentiment         string `json:"sentiment,omitempty"`
	SentimentAnalyzed bool   `json:"sentimentAnalyzed"`
}

type liveNewsRow struct {
	Ticker    string `json:"ticker"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Source    string `json:"source"`
	Author    string `json:"author,omitempty"`
	Date      string `json:"date"`
	Link      string `json:"link"`
	Sentiment string `json:"sentiment,omitempty"`
}

func newLiveNewsRow(a market.Article) liveNewsRow {
	return liveNewsRow{
		Ticker:    a.Ticker,
		Title:     a.Title,
		Content:   a.Content,
		Source:    a.Source,
		Author:    a.Author,
		Date:      a.PublishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Link:      a.Link,
		Sentiment: string(a.Sentiment),
	}
}

type detailsResponse struct {
	CompanyFullName string            `json:"companyFullName"`
	Price           float64           `json:"price"`
	ChangeInDay     float64           `json:"changeInDay"`
	MarketCap       string            `json:"marketCap"`
	Volume          string            `json:"volume"`
	NewsBuzz        string            `json:"newsBuzz"`
	PricesHistory   []pricePointRow   `json:"pricesHistory"`
	NewsSentiment   []daySentimentRow `json:"newsSentiment"`
	RecentNews      []newsRow         `json:"recentNews"`
}

func newDetailsResponse(d *aggregate.StockDetails) detailsResponse {
	s := d.Stock
	price := 0.0
	if s.CurrentPrice.Valid {
		price = s.CurrentPrice.Decimal.InexactFloat64()
	}

	history := make([]pricePointRow, 0, len(d.PriceHistory))
	for _, p := range d.PriceHistory {
		history = append(history, pricePointRow{
			Date:  p.Date.UTC().Format("2006-01-02"),
			Price: p.Price.StringFixed(2),
		})
	}

	sentiments := make([]daySentimentRow, 0, len(d.SentimentHistory))
	for _, day := range d.SentimentHistory {
		sentiments = append(sentiments, daySentimentRow{
			Date:    day.Date.UTC().Format("2006-01-02"),
			Bullish: day.Bullish,
			Bearish: day.Bearish,
			Neutral: day.Neutral,
		})
	}

	recent := make([]newsRow, 0, len(d.RecentNews))
	for _, a := range d.RecentNews {
		recent = append(recent, newsRow{
			ID:                a.ID,
			Ticker:            a.Ticker,
			Title:             a.Title,
			Content:           a.Content,
			Source:            a.Source,
			Author:            a.Author,
			Date:              a.PublishedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Link:              a.Link,
			Sentiment:         a.Sentiment,
			SentimentAnalyzed: a.SentimentAnalyzed,
		})
	}

	return detailsResponse{
		CompanyFullName: s.CompanyFullName,
		Price:           price,
		ChangeInDay:     s.ChangePercent.InexactFloat64(),
		MarketCap:       formatOptionalNumber(s.MarketCap),
		Volume:          formatNumber(s.Volume),
		NewsBuzz:        formatScore(d.NewsBuzz),
		PricesHistory:   history,
		NewsSentiment:   sentiments,
		RecentNews:      recent,
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 6, 64)
}

func formatOptionalNumber(n *int64) string {
	if n == nil {
		return "N/A"
	}
	return formatNumber(*n)
}

// formatNumber humanizes large dollar figures: 1_500_000 -> "$1.50M".
func formatNumber(n int64) string {
	switch {
	case n <= 0:
		return "N/A"
	case n >= 1_000_000_000_000:
		return fmt.Sprintf("$%.2fT", float64(n)/1e12)
	case n >= 1_000_000_000:
		return fmt.Sprintf("$%.2fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("$%.2fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("$%.2fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("$%d", n)
	}
}
