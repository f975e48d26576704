// Command fetch is the ingestion CLI: it refreshes quotes, price history and
// news for a set of tickers, classifies unlabeled articles and persists
// everything for the read endpoints to serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/config"
	"stockpulse/internal/httpx"
	"stockpulse/internal/market"
	"stockpulse/internal/provider"
	"stockpulse/internal/provider/alphavantage"
	"stockpulse/internal/provider/newsapi"
	"stockpulse/internal/provider/twitterfeed"
	"stockpulse/internal/provider/yahoo"
	"stockpulse/internal/sentiment"
	"stockpulse/internal/store"
)

func main() {
	var (
		tickersFlag = flag.String("tickers", "", "comma-separated tickers (default: popular universe)")
		days        = flag.Int("days", 30, "days of price history to fetch")
		withNews    = flag.Bool("news", true, "fetch and classify news")
		newsLimit   = flag.Int("news-limit", 10, "articles per ticker")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	quotes, history, news := buildChains(cfg, httpClient)

	var classifier sentiment.Classifier = sentiment.Keyword{}
	if cfg.Sentiment.APIURL != "" {
		classifier = sentiment.NewRemote(cfg.Sentiment.APIURL, httpClient)
	}

	tickers := cfg.Refresh.Tickers
	if *tickersFlag != "" {
		tickers = nil
		for _, t := range strings.Split(*tickersFlag, ",") {
			t = market.NormalizeTicker(t)
			if market.ValidTicker(t) {
				tickers = append(tickers, t)
			}
		}
	}
	if len(tickers) == 0 {
		tickers = aggregate.PopularTickers
	}

	ctx := context.Background()
	batch := &aggregate.BatchFetcher{
		FetchQuote: quotes.Quote,
		Quota:      cfg.Refresh.QuotaPerBatch,
		Cooldown:   time.Duration(cfg.Refresh.CooldownSec) * time.Second,
		Spacing:    time.Duration(cfg.Refresh.SpacingMillis) * time.Millisecond,
	}

	results := batch.Refresh(ctx, tickers, func(string) (market.Quote, bool) {
		return market.Quote{}, false
	})
	for _, r := range results {
		if err := st.SaveQuote(ctx, r.Ticker, r.Quote); err != nil {
			log.Printf("save quote %s: %v", r.Ticker, err)
			continue
		}
		fmt.Printf("%-6s price=%s change=%s%%\n", r.Ticker, r.Quote.CurrentPrice, r.Quote.ChangePercent.Round(2))
	}

	for _, ticker := range tickers {
		points, err := history.History(ctx, ticker, *days)
		if err != nil {
			log.Printf("history %s: %v", ticker, err)
			continue
		}
		for _, p := range points {
			if err := st.UpsertPricePoint(ctx, ticker, p); err != nil {
				log.Printf("save point %s %s: %v", ticker, p.Date.Format("2006-01-02"), err)
			}
		}
		fmt.Printf("%-6s %d history points\n", ticker, len(points))
	}

	if *withNews {
		weekAgo := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -7)
		for _, ticker := range tickers {
			n, err := ingestNews(ctx, st, news, classifier, ticker, *newsLimit)
			if err != nil {
				log.Printf("news %s: %v", ticker, err)
				continue
			}
			counts, err := st.SentimentCounts(ctx, ticker, weekAgo, time.Time{})
			if err != nil {
				log.Printf("sentiment counts %s: %v", ticker, err)
				continue
			}
			if counts.Total() > 0 {
				if err := st.SaveSentimentScore(ctx, ticker, aggregate.Score(counts)); err != nil {
					log.Printf("save score %s: %v", ticker, err)
				}
			}
			fmt.Printf("%-6s %d new articles\n", ticker, n)
		}
	}
}

// ingestNews stores fresh articles for ticker, skipping titles already seen,
// and classifies everything that arrived without a sentiment label.
func ingestNews(ctx context.Context, st *store.Store, news provider.NewsProvider, classifier sentiment.Classifier, ticker string, limit int) (int, error) {
	articles, err := news.News(ctx, provider.NewsQuery{Ticker: ticker, Limit: limit})
	if err != nil {
		return 0, err
	}
	seen, err := st.ArticleTitles(ctx, ticker)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, a := range articles {
		if _, dup := seen[a.Title]; dup {
			continue
		}
		label := a.Sentiment
		if label == "" {
			label = classifier.Classify(ctx, a.Title+" "+a.Content)
		}
		row := store.Article{
			Ticker:            ticker,
			Title:             a.Title,
			Content:           a.Content,
			Source:            a.Source,
			Author:            a.Author,
			PublishedAt:       a.PublishedAt,
			Link:              a.Link,
			Sentiment:         string(label),
			SentimentAnalyzed: true,
		}
		if err := st.InsertArticle(ctx, &row); err != nil {
			return inserted, err
		}
		seen[a.Title] = struct{}{}
		inserted++
	}
	return inserted, nil
}

// buildChains mirrors the server's provider wiring.
func buildChains(cfg config.Config, httpClient *httpx.Client) (provider.QuoteProvider, provider.HistoryProvider, provider.NewsProvider) {
	var quoteProviders []provider.QuoteProvider
	var historyProviders []provider.HistoryProvider
	var newsProviders []provider.NewsProvider

	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey != "" && cfg.AlphaVantage.APIKey != "demo" {
		av := alphavantage.New(
			cfg.AlphaVantage.APIKey,
			alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
			alphavantage.WithHTTPClient(httpClient.HTTP),
		)
		quoteProviders = append(quoteProviders, av)
		historyProviders = append(historyProviders, av)
		newsProviders = append(newsProviders, av)
	}
	if cfg.Yahoo.Enabled {
		yh := yahoo.New(yahoo.Config{Endpoint: cfg.Yahoo.Endpoint}, httpClient)
		quoteProviders = append(quoteProviders, yh)
		historyProviders = append(historyProviders, yh)
	}
	if cfg.NewsAPI.Enabled && cfg.NewsAPI.APIKey != "" {
		na := newsapi.New(newsapi.Config{Endpoint: cfg.NewsAPI.Endpoint, APIKey: cfg.NewsAPI.APIKey}, httpClient)
		newsProviders = append([]provider.NewsProvider{na}, newsProviders...)
	}
	var newsFallback []provider.NewsProvider
	if cfg.Twitter.Enabled && cfg.Twitter.BearerToken != "" {
		tw := twitterfeed.New(twitterfeed.Config{Endpoint: cfg.Twitter.Endpoint, BearerToken: cfg.Twitter.BearerToken}, httpClient)
		newsFallback = append(newsFallback, tw)
	}

	return &provider.QuoteChain{Providers: quoteProviders},
		&provider.HistoryChain{Providers: historyProviders},
		&provider.NewsChain{Providers: newsProviders, Fallback: newsFallback}
}
