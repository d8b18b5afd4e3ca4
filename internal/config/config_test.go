package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://google.serper.dev", cfg.Serper.BaseURL)
	assert.Equal(t, 20, cfg.Serper.NumResults)
	assert.Equal(t, "https://r.jina.ai", cfg.Reader.BaseURL)

	assert.Equal(t, 15*time.Minute, cfg.Market.AITTL())
	assert.Equal(t, 72*time.Hour, cfg.Market.MarketTTL())
	assert.Equal(t, 2*time.Minute, cfg.Market.RefreshTimeout())
	assert.Equal(t, 100.0, cfg.Market.SanityBand.MinUSD)
	assert.Equal(t, 2_000_000.0, cfg.Market.SanityBand.MaxUSD)

	// Domain lists and currency rates backfill from the built-in defaults.
	assert.Contains(t, cfg.Market.Domains.Marketplace, "ebay.com")
	assert.NotEmpty(t, cfg.Market.CurrencyRates)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PRICEWATCH_STORE_DRIVER", "sqlite")
	t.Setenv("PRICEWATCH_SERVER_PORT", "9090")
	t.Setenv("PRICEWATCH_SERPER_KEY", "env-key")
	t.Setenv("PRICEWATCH_MARKET_AI_TTL_MINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Serper.Key)
	assert.Equal(t, 5*time.Minute, cfg.Market.AITTL())
}

func TestLoadDomainsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
domains:
  marketplace:
    - resale.example.com
`), 0o644))
	t.Setenv("PRICEWATCH_MARKET_DOMAINS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"resale.example.com"}, cfg.Market.Domains.Marketplace)
	// Groups the file leaves out keep their defaults.
	assert.Contains(t, cfg.Market.Domains.Documentation, "manualslib.com")
}

func TestLoadDomainsFileMissing(t *testing.T) {
	t.Setenv("PRICEWATCH_MARKET_DOMAINS_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	full := Config{
		Store:     StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/pricewatch"},
		Serper:    SerperConfig{Key: "sk"},
		Reader:    ReaderConfig{Key: "rk"},
		Anthropic: AnthropicConfig{Key: "ak"},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		mode    string
		wantErr string
	}{
		{name: "price mode complete", mutate: func(*Config) {}, mode: "price"},
		{
			name:    "price mode missing serper key",
			mutate:  func(c *Config) { c.Serper.Key = "" },
			mode:    "price",
			wantErr: "serper.key is required (PRICEWATCH_SERPER_KEY)",
		},
		{
			name:    "price mode missing reader key",
			mutate:  func(c *Config) { c.Reader.Key = "" },
			mode:    "price",
			wantErr: "reader.key is required (PRICEWATCH_READER_KEY)",
		},
		{
			name:    "price mode missing anthropic key",
			mutate:  func(c *Config) { c.Anthropic.Key = "" },
			mode:    "price",
			wantErr: "anthropic.key is required (PRICEWATCH_ANTHROPIC_KEY)",
		},
		{
			name:    "postgres needs database url",
			mutate:  func(c *Config) { c.Store.DatabaseURL = "" },
			mode:    "store",
			wantErr: "store.database_url is required (PRICEWATCH_STORE_DATABASE_URL)",
		},
		{
			name: "sqlite needs no database url",
			mutate: func(c *Config) {
				c.Store.Driver = "sqlite"
				c.Store.DatabaseURL = ""
			},
			mode: "store",
		},
		{
			name: "classify mode ignores store and anthropic",
			mutate: func(c *Config) {
				c.Store.DatabaseURL = ""
				c.Anthropic.Key = ""
			},
			mode: "classify",
		},
		{
			name: "multiple missing settings reported together",
			mutate: func(c *Config) {
				c.Serper.Key = ""
				c.Reader.Key = ""
			},
			mode:    "price",
			wantErr: "serper.key is required (PRICEWATCH_SERPER_KEY); reader.key is required (PRICEWATCH_READER_KEY)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.mutate(&cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "verbose"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
