package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Database struct {
	Path string `json:"path"`
}

type AlphaVantage struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

type Yahoo struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

type NewsAPI struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

type Twitter struct {
	Enabled     bool   `json:"enabled"`
	BearerToken string `json:"bearer_token"`
	Endpoint    string `json:"endpoint"`
}

type Sentiment struct {
	// APIURL points at the external classifier service. Empty means the
	// keyword heuristic is the only classifier.
	APIURL string `json:"api_url"`
}

type Refresh struct {
	// QuoteCacheSec is how long a persisted quote stays fresh.
	QuoteCacheSec int `json:"quote_cache_sec"`
	// QuotaPerBatch is the number of upstream calls allowed before a cooldown.
	QuotaPerBatch int `json:"quota_per_batch"`
	// CooldownSec is the pause after each full quota batch.
	CooldownSec int `json:"cooldown_sec"`
	// SpacingMillis is the pause between individual calls.
	SpacingMillis int `json:"spacing_millis"`
	// Tickers overrides the built-in popular ticker universe.
	Tickers []string `json:"tickers"`
}

type Config struct {
	Server       Server       `json:"server"`
	Database     Database     `json:"database"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
	Yahoo        Yahoo        `json:"yahoo"`
	NewsAPI      NewsAPI      `json:"newsapi"`
	Twitter      Twitter      `json:"twitter"`
	Sentiment    Sentiment    `json:"sentiment"`
	Refresh      Refresh      `json:"refresh"`
}

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", RequestTimeoutSec: 10},
		Database: Database{Path: "stockpulse.db"},
		AlphaVantage: AlphaVantage{
			Enabled:  true,
			Endpoint: "https://www.alphavantage.co/query",
		},
		Yahoo: Yahoo{
			Enabled:  true,
			Endpoint: "https://query1.finance.yahoo.com/v8/finance/chart",
		},
		NewsAPI: NewsAPI{
			Enabled:  true,
			Endpoint: "https://newsapi.org/v2",
		},
		Twitter: Twitter{
			Enabled:  false,
			Endpoint: "https://api.twitter.com/2",
		},
		Refresh: Refresh{
			QuoteCacheSec: 3600,
			QuotaPerBatch: 5,
			CooldownSec:   12,
			SpacingMillis: 500,
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_ENDPOINT"); v != "" {
		cfg.AlphaVantage.Endpoint = v
	}
	if v := os.Getenv("YAHOO_ENDPOINT"); v != "" {
		cfg.Yahoo.Endpoint = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.NewsAPI.APIKey = v
	}
	if v := os.Getenv("NEWS_API_ENDPOINT"); v != "" {
		cfg.NewsAPI.Endpoint = v
	}
	if v := os.Getenv("TWITTER_BEARER_TOKEN"); v != "" {
		cfg.Twitter.BearerToken = v
		cfg.Twitter.Enabled = true
	}
	if v := os.Getenv("TWITTER_ENABLED"); v != "" {
		cfg.Twitter.Enabled = envBool(v, cfg.Twitter.Enabled)
	}
	if v := os.Getenv("SENTIMENT_API_URL"); v != "" {
		cfg.Sentiment.APIURL = v
	}
	if v := os.Getenv("QUOTE_CACHE_SEC"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Refresh.QuoteCacheSec = x
		}
	}
	if v := os.Getenv("REFRESH_QUOTA_PER_BATCH"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Refresh.QuotaPerBatch = x
		}
	}
	if v := os.Getenv("REFRESH_COOLDOWN_SEC"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Refresh.CooldownSec = x
		}
	}
	if v := os.Getenv("REFRESH_SPACING_MILLIS"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Refresh.SpacingMillis = x
		}
	}
	if v := os.Getenv("REFRESH_TICKERS"); v != "" {
		cfg.Refresh.Tickers = splitCSV(v)
	}
}

func atoi(s string) int {
	var x int
	fmt.Sscanf(s, "%d", &x)
	return x
}

func envBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
