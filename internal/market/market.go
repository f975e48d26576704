package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentiment is the label attached to a piece of financial text.
// The empty string means "not analyzed yet".
type Sentiment string

const (
	Bullish Sentiment = "Bullish"
	Bearish Sentiment = "Bearish"
	Neutral Sentiment = "Neutral"
)

// Quote is the normalized current-price shape returned by all quote providers.
// Change and ChangePercent are always derived the same way:
// change = current - previousClose, changePercent = change/previousClose*100
// (zero when previousClose <= 0).
type Quote struct {
	Ticker        string          `json:"ticker"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketCap     *int64          `json:"market_cap,omitempty"`
}

// PricePoint is one historical daily close. Date is truncated to a calendar
// day in UTC; there is at most one point per (ticker, date).
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Article is the normalized shape for a news item from any provider.
type Article struct {
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Link        string    `json:"link"`
	Sentiment   Sentiment `json:"sentiment,omitempty"`
}

// NetworkError reports a transport-level upstream failure (timeout,
// connection refused). The caller may try the next provider in the chain but
// never the same provider again within one request.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataError reports a malformed, empty or rate-limited upstream payload.
// Same fallback policy as NetworkError.
type DataError struct {
	Provider string
	Reason   string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: bad payload: %s", e.Provider, e.Reason)
}

// ValidationError reports bad caller input (ticker format, missing request
// parameter). Surfaced as a 4xx, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
