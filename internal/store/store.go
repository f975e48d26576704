package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"stockpulse/internal/market"
)

// Stock is the persisted quote record for one ticker. UpdatedAt governs
// cache freshness and is touched on every successful refresh.
type Stock struct {
	Ticker          string              `gorm:"primaryKey;size:6" json:"ticker"`
	CompanyFullName string              `json:"company_full_name"`
	CurrentPrice    decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"current_price"`
	ChangePercent   decimal.Decimal     `gorm:"type:decimal(10,4)" json:"change_percent"`
	Volume          int64               `json:"volume"`
	MarketCap       *int64              `json:"market_cap,omitempty"`
	SentimentScore  *int                `json:"sentiment_score,omitempty"`
	UpdatedAt       *time.Time          `json:"updated_at,omitempty"`
}

// PricePoint is one historical daily close, unique per (ticker, date).
type PricePoint struct {
	ID     uint            `gorm:"primaryKey" json:"-"`
	Ticker string          `gorm:"size:6;uniqueIndex:idx_price_ticker_date" json:"ticker"`
	Date   time.Time       `gorm:"uniqueIndex:idx_price_ticker_date" json:"date"`
	Price  decimal.Decimal `gorm:"type:decimal(12,4)" json:"price"`
	Volume int64           `json:"volume"`
}

// Article is a persisted news item. Sentiment stays empty until a classifier
// fills it in and flips SentimentAnalyzed.
type Article struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	Ticker            string    `gorm:"size:6;index" json:"ticker"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	Author            string    `json:"author,omitempty"`
	PublishedAt       time.Time `gorm:"index" json:"published_at"`
	Link              string    `json:"link"`
	Sentiment         string    `json:"sentiment,omitempty"`
	SentimentAnalyzed bool      `json:"sentiment_analyzed"`
}

// TickerCount is a per-ticker article count for a buzz window.
type TickerCount struct {
	Ticker string
	Count  int64
}

// SentimentCounts is the bullish/bearish/neutral breakdown of analyzed
// articles in a window.
type SentimentCounts struct {
	Bullish int64
	Bearish int64
	Neutral int64
}

func (c SentimentCounts) Total() int64 { return c.Bullish + c.Bearish + c.Neutral }

// Store wraps the sqlite database behind the operations the aggregation
// core needs.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Stock{}, &PricePoint{}, &Article{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// GetStock returns the record for ticker, or nil when none exists.
func (s *Store) GetStock(ctx context.Context, ticker string) (*Stock, error) {
	var stock Stock
	err := s.db.WithContext(ctx).First(&stock, "ticker = ?", ticker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// EnsureStock creates a default record for ticker when none exists. This is
// the explicit ensure-exists call; reads never create rows as a side effect.
func (s *Store) EnsureStock(ctx context.Context, ticker string) (*Stock, error) {
	stock, err := s.GetStock(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if stock != nil {
		return stock, nil
	}
	created := Stock{Ticker: ticker, CompanyFullName: ticker + " Corporation"}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

// SaveQuote upserts the quote fields for ticker. Volume and market cap are
// only written when the quote carries them; UpdatedAt moves to now.
func (s *Store) SaveQuote(ctx context.Context, ticker string, q market.Quote) error {
	if _, err := s.EnsureStock(ctx, ticker); err != nil {
		return err
	}
	fields := map[string]any{
		"current_price":  decimal.NullDecimal{Decimal: q.CurrentPrice, Valid: true},
		"change_percent": q.ChangePercent,
	}
	if q.Volume > 0 {
		fields["volume"] = q.Volume
	}
	if q.MarketCap != nil {
		fields["market_cap"] = *q.MarketCap
	}
	return s.db.WithContext(ctx).Model(&Stock{}).Where("ticker = ?", ticker).Updates(fields).Error
}

// SaveSentimentScore records the latest windowed sentiment score on a stock.
func (s *Store) SaveSentimentScore(ctx context.Context, ticker string, score int) error {
	return s.db.WithContext(ctx).Model(&Stock{}).Where("ticker = ?", ticker).
		UpdateColumn("sentiment_score", score).Error
}

// ListStocks returns up to limit stocks in ticker order.
func (s *Store) ListStocks(ctx context.Context, limit int) ([]Stock, error) {
	var stocks []Stock
	q := s.db.WithContext(ctx).Order("ticker")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return stocks, q.Find(&stocks).Error
}

// CompanyNames maps every known ticker to its company name.
func (s *Store) CompanyNames(ctx context.Context) (map[string]string, error) {
	var stocks []Stock
	if err := s.db.WithContext(ctx).Select("ticker", "company_full_name").Find(&stocks).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(stocks))
	for _, st := range stocks {
		names[st.Ticker] = st.CompanyFullName
	}
	return names, nil
}

// PriceHistory returns points for ticker on or after from, ascending by date.
func (s *Store) PriceHistory(ctx context.Context, ticker string, from time.Time, limit int) ([]PricePoint, error) {
	var points []PricePoint
	q := s.db.WithContext(ctx).
		Where("ticker = ? AND date >= ?", ticker, from).
		Order("date")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return points, q.Find(&points).Error
}

// PriceDates returns the set of dates that already have a point for ticker
// on or after from.
func (s *Store) PriceDates(ctx context.Context, ticker string, from time.Time) (map[time.Time]struct{}, error) {
	var dates []time.Time
	err := s.db.WithContext(ctx).Model(&PricePoint{}).
		Where("ticker = ? AND date >= ?", ticker, from).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[d.UTC().Truncate(24*time.Hour)] = struct{}{}
	}
	return set, nil
}

// UpsertPricePoint writes one daily close, replacing an existing value for
// the same (ticker, date).
func (s *Store) UpsertPricePoint(ctx context.Context, ticker string, p market.PricePoint) error {
	point := PricePoint{
		Ticker: ticker,
		Date:   p.Date.UTC().Truncate(24 * time.Hour),
		Price:  p.Close,
		Volume: p.Volume,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "volume"}),
	}).Create(&point).Error
}

// InsertArticle stores one news item, assigning an id when absent.
func (s *Store) InsertArticle(ctx context.Context, a *Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(a).Error
}

// ArticleTitles returns the titles already stored for ticker, for ingest
// dedup across runs.
func (s *Store) ArticleTitles(ctx context.Context, ticker string) (map[string]struct{}, error) {
	var titles []string
	err := s.db.WithContext(ctx).Model(&Article{}).
		Where("ticker = ?", ticker).
		Pluck("title", &titles).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	return set, nil
}

// RecentNews returns the newest n articles for ticker.
func (s *Store) RecentNews(ctx context.Context, ticker string, n int) ([]Article, error) {
	var articles []Article
	return articles, s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("published_at DESC").
		Limit(n).
		Find(&articles).Error
}

// CountNews returns the total stored article count for ticker.
func (s *Store) CountNews(ctx context.Context, ticker string) (int64, error) {
	var n int64
	return n, s.db.WithContext(ctx).Model(&Article{}).Where("ticker = ?", ticker).Count(&n).Error
}

// NewsCountsSince returns per-ticker article counts for articles published
// on or after since, most mentioned first.
func (s *Store) NewsCountsSince(ctx context.Context, since time.Time) ([]TickerCount, error) {
	var counts []TickerCount
	err := s.db.WithContext(ctx).Model(&Article{}).
		Select("ticker, count(*) as count").
		Where("published_at >= ?", since).
		Group("ticker").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

// SentimentCounts breaks down analyzed articles for ticker published in
// [from, to). A zero to means no upper bound.
func (s *Store) SentimentCounts(ctx context.Context, ticker string, from, to time.Time) (SentimentCounts, error) {
	q := s.db.WithContext(ctx).Model(&Article{}).
		Where("ticker = ? AND sentiment_analyzed = ? AND published_at >= ?", ticker, true, from)
	if !to.IsZero() {
		q = q.Where("published_at < ?", to)
	}

	var rows []struct {
		Sentiment string
		Count     int64
	}
	if err := q.Select("sentiment, count(*) as count").Group("sentiment").Scan(&rows).Error; err != nil {
		return SentimentCounts{}, err
	}

	var counts SentimentCounts
	for _, row := range rows {
		switch market.Sentiment(row.Sentiment) {
		case market.Bullish:
			counts.Bullish = row.Count
		case market.Bearish:
			counts.Bearish = row.Count
		case market.Neutral:
			counts.Neutral = row.Count
		}
	}
	return counts, nil
}
