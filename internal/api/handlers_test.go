package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/market"
	"stockpulse/internal/provider"
	"stockpulse/internal/sentiment"
	"stockpulse/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var testNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

type fakeBackend struct {
	stocks     []store.Stock
	stockByTic map[string]*store.Stock
	saved      map[string]market.Quote
	counts     []store.TickerCount
	names      map[string]string
	sentiments map[string]store.SentimentCounts
	news       []store.Article
	newsTotal  int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		stockByTic: map[string]*store.Stock{},
		saved:      map[string]market.Quote{},
		names:      map[string]string{},
		sentiments: map[string]store.SentimentCounts{},
	}
}

func (f *fakeBackend) ListStocks(_ context.Context, limit int) ([]store.Stock, error) {
	if len(f.stocks) > limit {
		return f.stocks[:limit], nil
	}
	return f.stocks, nil
}

func (f *fakeBackend) GetStock(_ context.Context, ticker string) (*store.Stock, error) {
	return f.stockByTic[ticker], nil
}

func (f *fakeBackend) EnsureStock(_ context.Context, ticker string) (*store.Stock, error) {
	if s, ok := f.stockByTic[ticker]; ok {
		return s, nil
	}
	s := &store.Stock{Ticker: ticker, CompanyFullName: ticker + " Corporation"}
	f.stockByTic[ticker] = s
	return s, nil
}

func (f *fakeBackend) SaveQuote(_ context.Context, ticker string, q market.Quote) error {
	f.saved[ticker] = q
	return nil
}

func (f *fakeBackend) PriceDates(_ context.Context, _ string, _ time.Time) (map[time.Time]struct{}, error) {
	// Report every date as present so details never reaches upstream.
	dates := map[time.Time]struct{}{}
	today := testNow.Truncate(24 * time.Hour)
	for i := 0; i <= 30; i++ {
		dates[today.AddDate(0, 0, -i)] = struct{}{}
	}
	return dates, nil
}

func (f *fakeBackend) UpsertPricePoint(_ context.Context, _ string, _ market.PricePoint) error {
	return nil
}

func (f *fakeBackend) PriceHistory(_ context.Context, _ string, _ time.Time, _ int) ([]store.PricePoint, error) {
	return []store.PricePoint{
		{Ticker: "AAPL", Date: testNow.AddDate(0, 0, -1), Price: decimal.RequireFromString("148.50")},
		{Ticker: "AAPL", Date: testNow, Price: decimal.RequireFromString("150.25")},
	}, nil
}

func (f *fakeBackend) SentimentCounts(_ context.Context, ticker string, _, _ time.Time) (store.SentimentCounts, error) {
	return f.sentiments[ticker], nil
}

func (f *fakeBackend) RecentNews(_ context.Context, _ string, _ int) ([]store.Article, error) {
	return f.news, nil
}

func (f *fakeBackend) CountNews(_ context.Context, _ string) (int64, error) {
	return f.newsTotal, nil
}

func (f *fakeBackend) NewsCountsSince(_ context.Context, _ time.Time) ([]store.TickerCount, error) {
	return f.counts, nil
}

func (f *fakeBackend) CompanyNames(_ context.Context) (map[string]string, error) {
	return f.names, nil
}

type stubNews struct {
	articles []market.Article
	err      error
}

func (s *stubNews) Name() string { return "stub" }

func (s *stubNews) News(_ context.Context, _ provider.NewsQuery) ([]market.Article, error) {
	return s.articles, s.err
}

type stubQuotes struct {
	quote market.Quote
	err   error
}

func (s *stubQuotes) Name() string { return "stub" }

func (s *stubQuotes) Quote(_ context.Context, _ string) (market.Quote, error) {
	return s.quote, s.err
}

type stubHistory struct{}

func (stubHistory) Name() string { return "stub" }

func (stubHistory) History(_ context.Context, _ string, _ int) ([]market.PricePoint, error) {
	return nil, &market.DataError{Provider: "stub", Reason: "unused"}
}

func newTestRouter(f *fakeBackend, news provider.NewsProvider) *gin.Engine {
	quotes := &stubQuotes{err: &market.DataError{Provider: "stub", Reason: "unused"}}
	batch := &aggregate.BatchFetcher{Quota: 5, Sleep: func(context.Context, time.Duration) error { return nil }}
	movers := aggregate.NewTopMovers(f, quotes, batch, time.Hour, []string{"AAPL", "MSFT"})
	movers.Now = func() time.Time { return testNow }

	h := &Handlers{
		Stocks: f,
		Details: &aggregate.Details{
			Store:   f,
			Quotes:  quotes,
			History: stubHistory{},
			Window:  time.Hour,
			Now:     func() time.Time { return testNow },
		},
		Movers:     movers,
		Buzz:       f,
		Sentiments: f,
		News:       news,
		Classifier: sentiment.Keyword{},
		Now:        func() time.Time { return testNow },
	}
	return Router(h)
}

func doRequest(t *testing.T, r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v body=%s", err, rr.Body.String())
	}
	return resp.Data
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(newFakeBackend(), &stubNews{})
	rr := doRequest(t, r, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetStocks(t *testing.T) {
	f := newFakeBackend()
	score := 40
	f.stocks = []store.Stock{
		{
			Ticker:          "AAPL",
			CompanyFullName: "Apple Inc.",
			CurrentPrice:    decimal.NullDecimal{Decimal: decimal.RequireFromString("150.256"), Valid: true},
			ChangePercent:   decimal.RequireFromString("1.352"),
			SentimentScore:  &score,
		},
		{Ticker: "NEW", CompanyFullName: "NEW Corporation"},
	}
	r := newTestRouter(f, &stubNews{})

	rr := doRequest(t, r, http.MethodGet, "/api/stocks", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if len(data) != 2 {
		t.Fatalf("want 2 rows, got %d", len(data))
	}
	first := data[0]
	if first["ticker"] != "AAPL" || first["companyFullName"] != "Apple Inc." {
		t.Fatalf("row = %v", first)
	}
	if first["currentPrice"] != "150.26" || first["changeInDay"] != "1.35" {
		t.Fatalf("rounding wrong: %v", first)
	}
	if first["sentimentScore"] != float64(40) {
		t.Fatalf("sentimentScore = %v", first["sentimentScore"])
	}
	// A never-quoted record serves zeros, not an error.
	if data[1]["currentPrice"] != "0.00" {
		t.Fatalf("empty price wrong: %v", data[1])
	}
}

func TestGetStockDetails_MissingTicker(t *testing.T) {
	r := newTestRouter(newFakeBackend(), &stubNews{})
	rr := doRequest(t, r, http.MethodGet, "/api/stock-details", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Ticker parameter is required") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestGetStockDetails_InvalidTicker(t *testing.T) {
	r := newTestRouter(newFakeBackend(), &stubNews{})
	rr := doRequest(t, r, http.MethodGet, "/api/stock-details?ticker=no+good", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetStockDetails(t *testing.T) {
	f := newFakeBackend()
	updated := testNow.Add(-time.Minute)
	capValue := int64(2_340_000_000_000)
	f.stockByTic["AAPL"] = &store.Stock{
		Ticker:          "AAPL",
		CompanyFullName: "Apple Inc.",
		CurrentPrice:    decimal.NullDecimal{Decimal: decimal.RequireFromString("150.25"), Valid: true},
		ChangePercent:   decimal.RequireFromString("1.35"),
		Volume:          48_000_000,
		MarketCap:       &capValue,
		UpdatedAt:       &updated,
	}
	f.newsTotal = 42
	f.news = []store.Article{{
		ID:                "id-1",
		Ticker:            "AAPL",
		Title:             "Apple surges",
		Source:            "Wire",
		PublishedAt:       testNow.Add(-time.Hour),
		Sentiment:         "Bullish",
		SentimentAnalyzed: true,
	}}
	r := newTestRouter(f, &stubNews{})

	rr := doRequest(t, r, http.MethodGet, "/api/stock-details?ticker=aapl", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := resp.Data
	if d["companyFullName"] != "Apple Inc." || d["price"] != 150.25 || d["changeInDay"] != 1.35 {
		t.Fatalf("core fields wrong: %v", d)
	}
	if d["marketCap"] != "$2.34T" || d["volume"] != "$48.00M" {
		t.Fatalf("humanized numbers wrong: %v", d)
	}
	if d["newsBuzz"] != "0.420000" {
		t.Fatalf("newsBuzz = %v", d["newsBuzz"])
	}
	prices, ok := d["pricesHistory"].([]any)
	if !ok || len(prices) != 2 {
		t.Fatalf("pricesHistory = %v", d["pricesHistory"])
	}
	recent, ok := d["recentNews"].([]any)
	if !ok || len(recent) != 1 {
		t.Fatalf("recentNews = %v", d["recentNews"])
	}
	first := recent[0].(map[string]any)
	if first["title"] != "Apple surges" || first["sentiment"] != "Bullish" {
		t.Fatalf("news row = %v", first)
	}
}

func TestGetTopMovers(t *testing.T) {
	f := newFakeBackend()
	updated := testNow.Add(-time.Minute)
	f.stockByTic["AAPL"] = &store.Stock{
		Ticker:        "AAPL",
		CurrentPrice:  decimal.NullDecimal{Decimal: decimal.NewFromInt(150), Valid: true},
		ChangePercent: decimal.RequireFromString("1.3513513514"),
		UpdatedAt:     &updated,
	}
	f.stockByTic["MSFT"] = &store.Stock{
		Ticker:        "MSFT",
		CurrentPrice:  decimal.NullDecimal{Decimal: decimal.NewFromInt(300), Valid: true},
		ChangePercent: decimal.RequireFromString("-2.5"),
		UpdatedAt:     &updated,
	}
	r := newTestRouter(f, &stubNews{})

	rr := doRequest(t, r, http.MethodGet, "/api/top-movers?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if len(data) != 2 {
		t.Fatalf("want 2 rows, got %d", len(data))
	}
	if data[0]["ticker"] != "MSFT" || data[0]["change"] != "-7.50" || data[0]["currentPrice"] != "300.00" {
		t.Fatalf("first row = %v", data[0])
	}
	if data[1]["ticker"] != "AAPL" || data[1]["change"] != "2.03" {
		t.Fatalf("second row = %v", data[1])
	}
}

func TestGetNewsBuzz(t *testing.T) {
	f := newFakeBackend()
	f.counts = []store.TickerCount{{Ticker: "AAPL", Count: 50}, {Ticker: "TSLA", Count: 25}}
	f.names = map[string]string{"AAPL": "Apple Inc."}
	r := newTestRouter(f, &stubNews{})

	rr := doRequest(t, r, http.MethodGet, "/api/news-buzz?timePeriod=7d", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	data := decodeData(t, rr)
	if len(data) != 2 {
		t.Fatalf("want 2 rows, got %d", len(data))
	}
	if data[0]["ticker"] != "AAPL" || data[0]["score"] != "0.999999" {
		t.Fatalf("first row = %v", data[0])
	}
	if data[1]["score"] != "0.500000" {
		t.Fatalf("second row = %v", data[1])
	}
}

func TestGetSentimentMovers(t *testing.T) {
	f := newFakeBackend()
	f.stocks = []store.Stock{{Ticker: "AAPL"}}
	f.sentiments["AAPL"] = store.SentimentCounts{Bullish: 6, Bearish: 2, Neutral: 2}
	r := newTestRouter(f, &stubNews{})

	rr := doRequest(t, r, http.MethodGet, "/api/sentiment-movers", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	data := decodeData(t, rr)
	if len(data) != 1 {
		t.Fatalf("want 1 row, got %d", len(data))
	}
	if data[0]["ticker"] != "AAPL" || data[0]["sentimentScore"] != float64(40) {
		t.Fatalf("row = %v", data[0])
	}
}

func TestGetNews(t *testing.T) {
	news := &stubNews{articles: []market.Article{{
		Ticker:      "AAPL",
		Title:       "Apple surges",
		Source:      "Wire",
		PublishedAt: testNow,
		Link:        "https://example.com/1",
		Sentiment:   market.Bullish,
	}}}
	r := newTestRouter(newFakeBackend(), news)

	rr := doRequest(t, r, http.MethodGet, "/api/news?ticker=AAPL", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	data := decodeData(t, rr)
	if len(data) != 1 || data[0]["title"] != "Apple surges" || data[0]["sentiment"] != "Bullish" {
		t.Fatalf("data = %v", data)
	}
}

func TestGetNews_MissingTicker(t *testing.T) {
	r := newTestRouter(newFakeBackend(), &stubNews{})
	rr := doRequest(t, r, http.MethodGet, "/api/news", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestGetNews_ProviderFailureServesEmptyList(t *testing.T) {
	news := &stubNews{err: &market.NetworkError{Provider: "stub", Err: errors.New("down")}}
	r := newTestRouter(newFakeBackend(), news)

	rr := doRequest(t, r, http.MethodGet, "/api/news?ticker=AAPL", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if data := decodeData(t, rr); len(data) != 0 {
		t.Fatalf("want empty data, got %v", data)
	}
}

func TestPostSentiment(t *testing.T) {
	r := newTestRouter(newFakeBackend(), &stubNews{})

	rr := doRequest(t, r, http.MethodPost, "/api/sentiment", `{"text":"Stock surges on strong earnings beat"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["sentiment"] != "Bullish" {
		t.Fatalf("sentiment = %s", resp["sentiment"])
	}
}

func TestPostSentiment_BadBody(t *testing.T) {
	r := newTestRouter(newFakeBackend(), &stubNews{})
	rr := doRequest(t, r, http.MethodPost, "/api/sentiment", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}
