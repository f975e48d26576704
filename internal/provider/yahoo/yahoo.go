package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"stockpulse/internal/httpx"
	"stockpulse/internal/market"
)

// Config controls the Yahoo Finance chart provider.
type Config struct {
	Name     string
	Endpoint string // base chart URL, ticker is appended as a path segment
}

// Provider fetches quotes and daily history from the free Yahoo Finance
// chart API. It needs no credentials, which makes it the fallback of the
// quote and history chains.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Yahoo"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice  *float64 `json:"regularMarketPrice"`
		PreviousClose       *float64 `json:"previousClose"`
		RegularMarketVolume int64    `json:"regularMarketVolume"`
		MarketCap           *int64   `json:"marketCap"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (p *Provider) fetchChart(ctx context.Context, ticker, rng string) (chartResult, error) {
	u := fmt.Sprintf("%s/%s", p.cfg.Endpoint, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return chartResult{}, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("interval", "1d")
	q.Set("range", rng)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return chartResult{}, &market.NetworkError{Provider: p.cfg.Name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chartResult{}, &market.DataError{Provider: p.cfg.Name, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return chartResult{}, &market.DataError{Provider: p.cfg.Name, Reason: "decode: " + err.Error()}
	}
	if body.Chart.Error != nil {
		return chartResult{}, &market.DataError{Provider: p.cfg.Name, Reason: "api error: " + body.Chart.Error.Description}
	}
	if len(body.Chart.Result) == 0 {
		return chartResult{}, &market.DataError{Provider: p.cfg.Name, Reason: "no chart data in response"}
	}
	return body.Chart.Result[0], nil
}

// Quote normalizes the chart meta block into a market.Quote.
func (p *Provider) Quote(ctx context.Context, ticker string) (market.Quote, error) {
	result, err := p.fetchChart(ctx, ticker, "1d")
	if err != nil {
		return market.Quote{}, err
	}
	meta := result.Meta
	if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice <= 0 {
		return market.Quote{}, &market.DataError{Provider: p.cfg.Name, Reason: "no price data available"}
	}

	price := decimal.NewFromFloat(*meta.RegularMarketPrice)
	prevClose := price
	if meta.PreviousClose != nil {
		prevClose = decimal.NewFromFloat(*meta.PreviousClose)
	}
	change, changePercent := market.ChangeFromPrevClose(price, prevClose)

	return market.Quote{
		Ticker:        ticker,
		CurrentPrice:  price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        meta.RegularMarketVolume,
		MarketCap:     meta.MarketCap,
	}, nil
}

// History normalizes the chart timestamp/close arrays into daily points.
// Bars with a null close are dropped; Yahoo returns timestamps ascending so
// order is preserved as-is.
func (p *Provider) History(ctx context.Context, ticker string, days int) ([]market.PricePoint, error) {
	result, err := p.fetchChart(ctx, ticker, fmt.Sprintf("%dd", days))
	if err != nil {
		return nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, &market.DataError{Provider: p.cfg.Name, Reason: "no quote indicators in response"}
	}

	closes := result.Indicators.Quote[0].Close
	volumes := result.Indicators.Quote[0].Volume
	points := make([]market.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		var volume int64
		if i < len(volumes) && volumes[i] != nil {
			volume = *volumes[i]
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		points = append(points, market.PricePoint{
			Date:   day,
			Close:  decimal.NewFromFloat(*closes[i]),
			Volume: volume,
		})
	}
	return points, nil
}
