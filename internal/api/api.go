package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/provider"
	"stockpulse/internal/sentiment"
	"stockpulse/internal/store"
)

// StockLister is the store slice the stocks list endpoint needs.
type StockLister interface {
	ListStocks(ctx context.Context, limit int) ([]store.Stock, error)
}

// Handlers carries the wired aggregation components behind the HTTP surface.
type Handlers struct {
	Stocks     StockLister
	Details    *aggregate.Details
	Movers     *aggregate.TopMovers
	Buzz       aggregate.BuzzStore
	Sentiments aggregate.SentimentStore
	News       provider.NewsProvider
	Classifier sentiment.Classifier
	Now        func() time.Time
}

// Router builds the gin engine with every read endpoint registered.
func Router(h *Handlers) *gin.Engine {
	if h.Now == nil {
		h.Now = time.Now
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})

	api := r.Group("/api")
	{
		api.GET("/stocks", h.GetStocks)
		api.GET("/stock-details", h.GetStockDetails)
		api.GET("/top-movers", h.GetTopMovers)
		api.GET("/news-buzz", h.GetNewsBuzz)
		api.GET("/sentiment-movers", h.GetSentimentMovers)
		api.GET("/news", h.GetNews)
		api.POST("/sentiment", h.PostSentiment)
	}
	return r
}
