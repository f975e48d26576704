package twitterfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockpulse/internal/httpx"
	"stockpulse/internal/market"
	"stockpulse/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Endpoint: srv.URL, BearerToken: "token"}, httpx.New(time.Second))
}

func TestNews(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/search/recent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("authorization = %s", got)
		}
		q := r.URL.Query()
		if q.Get("query") != "$TSLA -is:retweet lang:en" {
			t.Errorf("query = %s", q.Get("query"))
		}
		if q.Get("max_results") != "10" {
			t.Errorf("max_results = %s", q.Get("max_results"))
		}
		w.Write([]byte(`{
			"data":[{"id":"123","text":"$TSLA to the moon","author_id":"u1","created_at":"2025-06-09T14:30:00.000Z"}],
			"includes":{"users":[{"id":"u1","name":"Trader Jane","username":"traderjane"}]}
		}`))
	})

	articles, err := p.News(context.Background(), provider.NewsQuery{Ticker: "TSLA", Limit: 10})
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("want 1 article, got %d", len(articles))
	}
	a := articles[0]
	if a.Title != "$TSLA to the moon" || a.Source != "Twitter" || a.Author != "Trader Jane" {
		t.Fatalf("unexpected article: %+v", a)
	}
	if a.Link != "https://twitter.com/traderjane/status/123" {
		t.Fatalf("link = %s", a.Link)
	}
	want := time.Date(2025, 6, 9, 14, 30, 0, 0, time.UTC)
	if !a.PublishedAt.Equal(want) {
		t.Fatalf("published at %v, want %v", a.PublishedAt, want)
	}
}

func TestNews_LongTweetTitleTruncated(t *testing.T) {
	long := strings.Repeat("x", 300)
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"1","text":"` + long + `","author_id":"u1","created_at":"2025-06-09T14:30:00.000Z"}]}`))
	})

	articles, err := p.News(context.Background(), provider.NewsQuery{Ticker: "TSLA"})
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	if len(articles[0].Title) != 200 {
		t.Fatalf("title length = %d, want 200", len(articles[0].Title))
	}
	if len(articles[0].Content) != 300 {
		t.Fatalf("content must keep the full text, got %d", len(articles[0].Content))
	}
}

func TestNews_MaxResultsClamped(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("max_results"); got != "100" {
			t.Errorf("max_results = %s, want 100", got)
		}
		w.Write([]byte(`{"data":[]}`))
	})
	if _, err := p.News(context.Background(), provider.NewsQuery{Ticker: "TSLA", Limit: 500}); err != nil {
		t.Fatalf("News: %v", err)
	}
}

func TestNews_UnauthorizedIsDataError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := p.News(context.Background(), provider.NewsQuery{Ticker: "TSLA"})
	var de *market.DataError
	if !errors.As(err, &de) {
		t.Fatalf("want DataError, got %v", err)
	}
}
