package newsapi

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

// Config controls the NewsAPI provider.
type Config struct {
	Name     string
	Endpoint string
	APIKey   string
}

// Provider fetches financial articles from the NewsAPI /v2/everything
// endpoint. Articles come back without sentiment; classification happens
// downstream.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "NewsAPI"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://newsapi.org/v2"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type apiResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title   string `json:"title"`
		Desc    string `json:"description"`
		Content string `json:"content"`
		URL     string `json:"url"`
		Author  string `json:"author"`
		Source  struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// periodStart maps a timePeriod parameter to its window start. Unknown or
// empty values default to seven days, matching the buzz window default.
func periodStart(now time.Time, period string) time.Time {
	switch period {
	case "1d":
		return now.AddDate(0, 0, -1)
	case "30d":
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -7)
	}
}

func (p *Provider) News(ctx context.Context, q provider.NewsQuery) ([]market.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"/everything", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	now := time.Now().UTC()
	params := req.URL.Query()
	params.Set("q", q.Ticker)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	if q.Limit > 0 {
		params.Set("pageSize", strconv.Itoa(q.Limit))
	}
	params.Set("from", periodStart(now, q.Period).Format("2006-01-02"))
	params.Set("to", now.Format("2006-01-02"))
	params.Set("apiKey", p.cfg.APIKey)
	req.URL.RawQuery = params.Encode()

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, &market.NetworkError{Provider: p.cfg.Name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &market.DataError{Provider: p.cfg.Name, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &market.DataError{Provider: p.cfg.Name, Reason: "decode: " + err.Error()}
	}
	if body.Status == "error" {
		return nil, &market.DataError{Provider: p.cfg.Name, Reason: fmt.Sprintf("api error %s: %s", body.Code, body.Message)}
	}

	articles := make([]market.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		published, err := time.Parse("2006-01-02T15:04:05Z", a.PublishedAt)
		if err != nil {
			published = now
		}
		content := a.Desc
		if content == "" {
			content = a.Content
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		articles = append(articles, market.Article{
			Ticker:      q.Ticker,
			Title:       a.Title,
			Content:     content,
			Source:      source,
			Author:      a.Author,
			PublishedAt: published,
			Link:        a.URL,
		})
	}
	return articles, nil
}
