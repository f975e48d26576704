package alphavantage

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
)

type globalQuoteResponse struct {
	envelope
	GlobalQuote map[string]string `json:"Global Quote"`
}

// Quote fetches the GLOBAL_QUOTE function and normalizes it.
// Change is always derived from the previous close so that cached and fresh
// values share one canonical representation.
func (c *Client) Quote(ctx context.Context, ticker string) (market.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", ticker)

	var body globalQuoteResponse
	if err := c.get(ctx, params, &body); err != nil {
		return market.Quote{}, err
	}
	if err := body.envelope.err(); err != nil {
		return market.Quote{}, err
	}
	if len(body.GlobalQuote) == 0 {
		return market.Quote{}, &market.DataError{Provider: providerName, Reason: "no quote data in response"}
	}

	q := body.GlobalQuote
	price, err := decimal.NewFromString(q["05. price"])
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return market.Quote{}, &market.DataError{Provider: providerName, Reason: "missing or zero price"}
	}

	prevClose, err := decimal.NewFromString(q["08. previous close"])
	if err != nil {
		prevClose = decimal.Zero
	}
	change, changePercent := market.ChangeFromPrevClose(price, prevClose)

	volume, _ := strconv.ParseInt(q["06. volume"], 10, 64)
	return market.Quote{
		Ticker:        ticker,
		CurrentPrice:  price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        volume,
		// Alpha Vantage does not carry market cap in GLOBAL_QUOTE.
		MarketCap: nil,
	}, nil
}
