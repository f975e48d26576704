package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/market"
	"stockpulse/internal/provider"
)

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// GetStocks serves GET /api/stocks?limit=N.
func (h *Handlers) GetStocks(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	stocks, err := h.Stocks.ListStocks(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]stockRow, 0, len(stocks))
	for _, s := range stocks {
		rows = append(rows, newStockRow(s))
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// GetStockDetails serves GET /api/stock-details?ticker=T.
func (h *Handlers) GetStockDetails(c *gin.Context) {
	ticker := c.Query("ticker")
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticker parameter is required"})
		return
	}
	details, err := h.Details.Get(c.Request.Context(), ticker)
	if err != nil {
		var ve *market.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newDetailsResponse(details)})
}

// GetTopMovers serves GET /api/top-movers?limit=N.
func (h *Handlers) GetTopMovers(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	movers, err := h.Movers.Top(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]topMoverRow, 0, len(movers))
	for _, m := range movers {
		rows = append(rows, topMoverRow{
			Ticker:       m.Ticker,
			Change:       m.Change.StringFixed(2),
			CurrentPrice: m.CurrentPrice.StringFixed(2),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// GetNewsBuzz serves GET /api/news-buzz?limit=N&timePeriod={1d,7d,30d}.
func (h *Handlers) GetNewsBuzz(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	period := c.DefaultQuery("timePeriod", "7d")
	rows, err := aggregate.NewsBuzz(c.Request.Context(), h.Buzz, h.Now(), period, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]newsBuzzRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, newsBuzzRow{
			Ticker:          r.Ticker,
			Score:           formatScore(r.Score),
			CompanyFullName: r.CompanyFullName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetSentimentMovers serves GET /api/sentiment-movers?limit=N.
func (h *Handlers) GetSentimentMovers(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	movers, err := aggregate.SentimentMovers(c.Request.Context(), h.Sentiments, h.Now(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]sentimentMoverRow, 0, len(movers))
	for _, m := range movers {
		rows = append(rows, sentimentMoverRow{
			Ticker:         m.Ticker,
			SentimentScore: m.SentimentScore,
			Change:         m.Change,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// GetNews serves GET /api/news?ticker=T&limit=N&sentiment=S&timePeriod=P,
// a live fetch through the provider chain. Total provider exhaustion yields
// an empty list, not an error.
func (h *Handlers) GetNews(c *gin.Context) {
	ticker := market.NormalizeTicker(c.Query("ticker"))
	if !market.ValidTicker(ticker) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticker parameter is required"})
		return
	}
	query := provider.NewsQuery{
		Ticker:    ticker,
		Limit:     intQuery(c, "limit", 10),
		Period:    c.Query("timePeriod"),
		Sentiment: market.Sentiment(c.Query("sentiment")),
	}
	articles, err := h.News.News(c.Request.Context(), query)
	if err != nil {
		log.Printf("api: news fetch for %s failed: %v", ticker, err)
		articles = nil
	}
	rows := make([]liveNewsRow, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, newLiveNewsRow(a))
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

type sentimentRequest struct {
	Text string `json:"text"`
}

// PostSentiment serves POST /api/sentiment with body {"text": ...}.
func (h *Handlers) PostSentiment(c *gin.Context) {
	var req sentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text field is required"})
		return
	}
	label := h.Classifier.Classify(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, gin.H{"sentiment": label})
}
