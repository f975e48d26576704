package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/api"
	"stockpulse/internal/config"
	"stockpulse/internal/httpx"
	"stockpulse/internal/provider"
	"stockpulse/internal/provider/alphavantage"
	"stockpulse/internal/provider/newsapi"
	"stockpulse/internal/provider/twitterfeed"
	"stockpulse/internal/provider/yahoo"
	"stockpulse/internal/sentiment"
	"stockpulse/internal/store"
)

func main() {
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

	window := time.Duration(cfg.Refresh.QuoteCacheSec) * time.Second
	batch := &aggregate.BatchFetcher{
		Quota:    cfg.Refresh.QuotaPerBatch,
		Cooldown: time.Duration(cfg.Refresh.CooldownSec) * time.Second,
		Spacing:  time.Duration(cfg.Refresh.SpacingMillis) * time.Millisecond,
	}
	movers := aggregate.NewTopMovers(st, quotes, batch, window, cfg.Refresh.Tickers)
	details := &aggregate.Details{
		Store:   st,
		Quotes:  quotes,
		History: history,
		Window:  window,
		Now:     time.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.Router(&api.Handlers{
		Stocks:     st,
		Details:    details,
		Movers:     movers,
		Buzz:       st,
		Sentiments: st,
		News:       news,
		Classifier: classifier,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// Batch refreshes block for the full pacing duration, so the write
		// timeout has to cover a worst-case stale batch.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildChains assembles the provider fallback chains from whatever
// credentials are configured. Priority order: the paid API first, the free
// fallback after it, social media last for news.
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
	} else if cfg.AlphaVantage.Enabled {
		log.Println("warning: alphavantage.enabled=true but ALPHA_VANTAGE_API_KEY not set; skipping")
	}

	if cfg.Yahoo.Enabled {
		yh := yahoo.New(yahoo.Config{Endpoint: cfg.Yahoo.Endpoint}, httpClient)
		quoteProviders = append(quoteProviders, yh)
		historyProviders = append(historyProviders, yh)
	}

	if cfg.NewsAPI.Enabled && cfg.NewsAPI.APIKey != "" {
		na := newsapi.New(newsapi.Config{Endpoint: cfg.NewsAPI.Endpoint, APIKey: cfg.NewsAPI.APIKey}, httpClient)
		// NewsAPI outranks the Alpha Vantage feed for financial articles.
		newsProviders = append([]provider.NewsProvider{na}, newsProviders...)
	}

	var newsFallback []provider.NewsProvider
	if cfg.Twitter.Enabled && cfg.Twitter.BearerToken != "" {
		// Tweets only fill in when the article sources come up empty.
		tw := twitterfeed.New(twitterfeed.Config{Endpoint: cfg.Twitter.Endpoint, BearerToken: cfg.Twitter.BearerToken}, httpClient)
		newsFallback = append(newsFallback, tw)
	}

	return &provider.QuoteChain{Providers: quoteProviders},
		&provider.HistoryChain{Providers: historyProviders},
		&provider.NewsChain{Providers: newsProviders, Fallback: newsFallback}
}
