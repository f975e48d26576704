package alphavantage

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
)

type dailyBar struct {
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailySeriesResponse struct {
	envelope
	Series map[string]dailyBar `json:"Time Series (Daily)"`
}

// History fetches TIME_SERIES_DAILY and keeps the trailing days window.
// Entries without a parseable close are dropped; output is ascending by date.
func (c *Client) History(ctx context.Context, ticker string, days int) ([]market.PricePoint, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", ticker)
	if days <= 100 {
		params.Set("outputsize", "compact")
	} else {
		params.Set("outputsize", "full")
	}

	var body dailySeriesResponse
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	if err := body.envelope.err(); err != nil {
		return nil, err
	}
	if len(body.Series) == 0 {
		return nil, &market.DataError{Provider: providerName, Reason: "no time series in response"}
	}

	cutoff := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)
	points := make([]market.PricePoint, 0, len(body.Series))
	for dateStr, bar := range body.Series {
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil || date.Before(cutoff) {
			continue
		}
		closePrice, err := decimal.NewFromString(bar.Close)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(bar.Volume, 10, 64)
		points = append(points, market.PricePoint{Date: date, Close: closePrice, Volume: volume})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
