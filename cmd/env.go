package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/market"
	"github.com/labmarket/pricewatch/internal/pricing"
	"github.com/labmarket/pricewatch/internal/store"
	anthropicpkg "github.com/labmarket/pricewatch/pkg/anthropic"
	"github.com/labmarket/pricewatch/pkg/reader"
	"github.com/labmarket/pricewatch/pkg/serper"
)

// env holds the initialized store, clients, and orchestrator shared by the
// price and serve commands.
type env struct {
	Store        store.Store
	Classifier   *classify.Classifier
	Searcher     *market.Searcher
	Orchestrator *pricing.Orchestrator
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore picks the database backend from config.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pricewatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, the API clients, and the pricing orchestrator.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate("price"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	serperClient := serper.NewClient(cfg.Serper.Key,
		serper.WithBaseURL(cfg.Serper.BaseURL),
		serper.WithRateLimit(cfg.Serper.RateLimit, cfg.Serper.RateBurst),
	)
	readerClient := reader.NewClient(cfg.Reader.Key,
		reader.WithBaseURL(cfg.Reader.BaseURL),
		reader.WithTimeout(time.Duration(cfg.Reader.TimeoutSecs)*time.Second),
	)
	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	classifier := classify.New(cfg.Market.Domains)

	searcher := market.NewSearcher(serperClient, classifier, market.SearchOptions{
		Domains:            cfg.Market.Domains,
		MaxOfficialNew:     cfg.Market.MaxOfficialNew,
		MaxUsedMarketplace: cfg.Market.MaxUsedMarketplace,
		MaxCandidates:      cfg.Market.MaxCandidates,
		NumResults:         cfg.Serper.NumResults,
	})
	scraper := market.NewScraper(readerClient, market.ScrapeOptions{
		Domains:     cfg.Market.Domains,
		Rates:       cfg.Market.CurrencyRates,
		Band:        cfg.Market.SanityBand,
		Concurrency: cfg.Market.ScrapeConcurrency,
	})
	estimator := pricing.NewEstimator(aiClient, cfg.Anthropic.Model)

	orch := pricing.NewOrchestrator(st, searcher, scraper, estimator, pricing.Options{
		AITTL:          cfg.Market.AITTL(),
		MarketTTL:      cfg.Market.MarketTTL(),
		RefreshTimeout: cfg.Market.RefreshTimeout(),
	})

	return &env{
		Store:        st,
		Classifier:   classifier,
		Searcher:     searcher,
		Orchestrator: orch,
	}, nil
}
