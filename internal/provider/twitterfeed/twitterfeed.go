package twitterfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stockpulse/internal/httpx"
	"stockpulse/internal/market"
	"stockpulse/internal/provider"
)

// Config controls the Twitter recent-search news fallback.
type Config struct {
	Name        string
	Endpoint    string
	BearerToken string
}

// Provider turns cashtag tweets into normalized articles. It is the last
// resort of the news chain: low signal, but always has something recent.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Twitter"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.twitter.com/2"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type searchResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

func (p *Provider) News(ctx context.Context, q provider.NewsQuery) ([]market.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"/tweets/search/recent", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	maxResults := q.Limit
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 100
	}
	params := req.URL.Query()
	params.Set("query", fmt.Sprintf("$%s -is:retweet lang:en", q.Ticker))
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "created_at,author_id,public_metrics")
	params.Set("expansions", "author_id")
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Authorization", "Bearer "+p.cfg.BearerToken)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, &market.NetworkError{Provider: p.cfg.Name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &market.DataError{Provider: p.cfg.Name, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &market.DataError{Provider: p.cfg.Name, Reason: "decode: " + err.Error()}
	}

	users := make(map[string]struct{ name, username string }, len(body.Includes.Users))
	for _, u := range body.Includes.Users {
		users[u.ID] = struct{ name, username string }{u.Name, u.Username}
	}

	now := time.Now().UTC()
	articles := make([]market.Article, 0, len(body.Data))
	for _, tweet := range body.Data {
		created, err := time.Parse("2006-01-02T15:04:05.000Z", tweet.CreatedAt)
		if err != nil {
			created = now
		}
		author := users[tweet.AuthorID]
		title := tweet.Text
		if len(title) > 200 {
			title = title[:200]
		}
		articles = append(articles, market.Article{
			Ticker:      q.Ticker,
			Title:       title,
			Content:     tweet.Text,
			Source:      "Twitter",
			Author:      author.name,
			PublishedAt: created,
			Link:        fmt.Sprintf("https://twitter.com/%s/status/%s", author.username, tweet.ID),
		})
	}
	return articles, nil
}
