package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"stockpulse/internal/market"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// providerName is the label used in error taxonomy and chain logs.
const providerName = "AlphaVantage"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Alpha Vantage query API. It serves quotes,
// daily history and the news-sentiment feed through a single endpoint
// dispatched on the "function" parameter.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey authenticates every request.
	apiKey string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a new Alpha Vantage client.
func New(key string, options ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     key,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return providerName }

// envelope carries the error markers Alpha Vantage embeds in 200 responses.
// "Note" and "Information" are the rate-limit markers.
type envelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (e envelope) err() error {
	switch {
	case e.ErrorMessage != "":
		return &market.DataError{Provider: providerName, Reason: "api error: " + e.ErrorMessage}
	case e.Note != "":
		return &market.DataError{Provider: providerName, Reason: "rate limited: " + e.Note}
	case e.Information != "":
		return &market.DataError{Provider: providerName, Reason: "rate limited: " + e.Information}
	}
	return nil
}

// get performs one query-API request and decodes the body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	params.Set("apikey", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &market.NetworkError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &market.DataError{Provider: providerName, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &market.DataError{Provider: providerName, Reason: "decode: " + err.Error()}
	}
	return nil
}
