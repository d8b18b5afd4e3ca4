package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/market"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Serper    SerperConfig    `yaml:"serper" mapstructure:"serper"`
	Reader    ReaderConfig    `yaml:"reader" mapstructure:"reader"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Market    MarketConfig    `yaml:"market" mapstructure:"market"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SerperConfig holds search provider settings.
type SerperConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	NumResults  int     `yaml:"num_results" mapstructure:"num_results"`
}

// ReaderConfig holds page-fetch settings.
type ReaderConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds the generative estimator settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// MarketConfig tunes the price discovery pipeline. The domain lists and
// sanity band are deliberately configuration data: they drift with the
// marketplace landscape and the catalog scope.
type MarketConfig struct {
	Domains            classify.Domains   `yaml:"domains" mapstructure:"domains"`
	DomainsFile        string             `yaml:"domains_file" mapstructure:"domains_file"`
	SanityBand         market.SanityBand  `yaml:"sanity_band" mapstructure:"sanity_band"`
	CurrencyRates      map[string]float64 `yaml:"currency_rates" mapstructure:"currency_rates"`
	MaxOfficialNew     int                `yaml:"max_official_new" mapstructure:"max_official_new"`
	MaxUsedMarketplace int                `yaml:"max_used_marketplace" mapstructure:"max_used_marketplace"`
	MaxCandidates      int                `yaml:"max_candidates" mapstructure:"max_candidates"`
	ScrapeConcurrency  int                `yaml:"scrape_concurrency" mapstructure:"scrape_concurrency"`
	AITTLMinutes       int                `yaml:"ai_ttl_minutes" mapstructure:"ai_ttl_minutes"`
	MarketTTLHours     int                `yaml:"market_ttl_hours" mapstructure:"market_ttl_hours"`
	RefreshTimeoutSecs int                `yaml:"refresh_timeout_secs" mapstructure:"refresh_timeout_secs"`
}

// AITTL returns the short TTL applied to AI-tier cache rows.
func (m MarketConfig) AITTL() time.Duration {
	if m.AITTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(m.AITTLMinutes) * time.Minute
}

// MarketTTL returns the long TTL applied to marketplace-tier cache rows.
func (m MarketConfig) MarketTTL() time.Duration {
	if m.MarketTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(m.MarketTTLHours) * time.Hour
}

// RefreshTimeout bounds a single background marketplace refresh.
func (m MarketConfig) RefreshTimeout() time.Duration {
	if m.RefreshTimeoutSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(m.RefreshTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv binds them for
	// Unmarshal; viper only sees env keys it already knows about.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("serper.key", "")
	v.SetDefault("reader.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("market.domains_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.timeout_secs", 15)
	v.SetDefault("serper.rate_limit", 5.0)
	v.SetDefault("serper.rate_burst", 5)
	v.SetDefault("serper.num_results", 20)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("reader.timeout_secs", 20)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("market.max_official_new", 3)
	v.SetDefault("market.max_used_marketplace", 4)
	v.SetDefault("market.max_candidates", 12)
	v.SetDefault("market.scrape_concurrency", 5)
	v.SetDefault("market.ai_ttl_minutes", 15)
	v.SetDefault("market.market_ttl_hours", 72)
	v.SetDefault("market.refresh_timeout_secs", 120)
	v.SetDefault("market.sanity_band.min_usd", 100.0)
	v.SetDefault("market.sanity_band.max_usd", 2_000_000.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// List/map defaults don't merge well through viper; fill empties here.
	if len(cfg.Market.CurrencyRates) == 0 {
		cfg.Market.CurrencyRates = market.DefaultCurrencyRates()
	}
	if cfg.Market.DomainsFile != "" {
		d, err := classify.LoadDomains(cfg.Market.DomainsFile)
		if err != nil {
			return nil, err
		}
		cfg.Market.Domains = d
	} else if len(cfg.Market.Domains.Marketplace) == 0 {
		cfg.Market.Domains = classify.DefaultDomains()
	}

	return &cfg, nil
}

// Validate checks that the settings a command mode depends on are present.
// Modes: "price" needs the full pipeline, "classify" only the search key,
// "store" just a database.
func (c *Config) Validate(mode string) error {
	var missing []string

	needStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required (PRICEWATCH_STORE_DATABASE_URL)")
		}
	}

	switch mode {
	case "price":
		needStore()
		if c.Serper.Key == "" {
			missing = append(missing, "serper.key is required (PRICEWATCH_SERPER_KEY)")
		}
		if c.Reader.Key == "" {
			missing = append(missing, "reader.key is required (PRICEWATCH_READER_KEY)")
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required (PRICEWATCH_ANTHROPIC_KEY)")
		}
	case "classify":
		if c.Serper.Key == "" {
			missing = append(missing, "serper.key is required (PRICEWATCH_SERPER_KEY)")
		}
	case "store":
		needStore()
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
