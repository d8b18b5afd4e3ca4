package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
	"github.com/labmarket/pricewatch/internal/store"
)

// SearchClient finds marketplace listing candidates for an equipment model.
type SearchClient interface {
	FindMarketplaceCandidates(ctx context.Context, brand, mdl string) ([]model.SearchResult, error)
}

// ScrapeClient extracts priced listings from candidate pages.
type ScrapeClient interface {
	ScrapePrices(ctx context.Context, candidates []model.SearchResult) []model.Listing
}

// EstimateClient produces generative price estimates.
type EstimateClient interface {
	Estimate(ctx context.Context, brand, mdl, category string, condition model.Condition) Estimate
}

// Options tunes the two cache tiers and the background refresh.
type Options struct {
	AITTL          time.Duration
	MarketTTL      time.Duration
	RefreshTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.AITTL <= 0 {
		o.AITTL = 15 * time.Minute
	}
	if o.MarketTTL <= 0 {
		o.MarketTTL = 72 * time.Hour
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 2 * time.Minute
	}
}

// Orchestrator serves price context from the cache, filling cold misses with
// a synchronous AI estimate and upgrading entries to marketplace data via a
// single background refresh per key.
type Orchestrator struct {
	store    store.Store
	search   SearchClient
	scrape   ScrapeClient
	estimate EstimateClient
	opts     Options

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(st store.Store, search SearchClient, scrape ScrapeClient, estimate EstimateClient, opts Options) *Orchestrator {
	opts.setDefaults()
	return &Orchestrator{
		store:    st,
		search:   search,
		scrape:   scrape,
		estimate: estimate,
		opts:     opts,
		inflight: make(map[string]struct{}),
	}
}

// PriceContext returns pricing for an equipment model. A warm cache entry is
// served as-is; a cold one is filled with a synchronous AI estimate. Either
// way, an entry without marketplace data triggers at most one background
// scrape per key.
func (o *Orchestrator) PriceContext(ctx context.Context, brand, mdl, category string, condition model.Condition) (*model.PriceContext, error) {
	key := store.Key{
		Brand:    classify.Normalize(brand),
		Model:    classify.Normalize(mdl),
		Category: classify.Normalize(category),
	}
	cacheKey := classify.CacheKey(brand, mdl, category)
	log := zap.L().With(zap.String("cache_key", cacheKey))

	entry, err := o.store.GetPriceContext(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: read cache")
	}

	if entry != nil {
		pc := contextFromEntry(entry)
		pc.Cached = true
		if !entry.HasMarketplaceData {
			pc.ScrapingInBackground = o.maybeRefresh(cacheKey, key, brand, mdl)
		}
		log.Debug("pricing: cache hit",
			zap.Bool("marketplace", entry.HasMarketplaceData),
			zap.Bool("refreshing", pc.ScrapingInBackground),
		)
		return pc, nil
	}

	// Cold path: respond now with a generative estimate and let the
	// marketplace scrape catch up in the background.
	est := o.estimate.Estimate(ctx, brand, mdl, category, condition)

	now := time.Now().UTC()
	aiEntry := model.PriceCacheEntry{
		Brand:              key.Brand,
		Model:              key.Model,
		Category:           key.Category,
		PriceRanges:        est.Ranges,
		PriceSource:        est.Source,
		PriceBreakdown:     est.Breakdown,
		HasMarketplaceData: false,
		CachedAt:           now,
		ExpiresAt:          now.Add(o.opts.AITTL),
	}
	if err := o.store.UpsertPriceContext(ctx, aiEntry); err != nil {
		// Serve the estimate anyway; the cache write is best-effort.
		log.Warn("pricing: cache AI estimate", zap.Error(err))
	}

	pc := contextFromEntry(&aiEntry)
	pc.Cached = false
	pc.ScrapingInBackground = o.maybeRefresh(cacheKey, key, brand, mdl)
	return pc, nil
}

// ExpireCache removes all expired rows.
func (o *Orchestrator) ExpireCache(ctx context.Context) (int, error) {
	return o.store.DeleteExpired(ctx)
}

// maybeRefresh starts a background marketplace refresh for a key unless one
// is already running. It reports whether a refresh is in flight afterwards.
func (o *Orchestrator) maybeRefresh(cacheKey string, key store.Key, brand, mdl string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.inflight[cacheKey]; running {
		return true
	}
	o.inflight[cacheKey] = struct{}{}
	go o.refresh(cacheKey, key, brand, mdl)
	return true
}

// RefreshNow runs a marketplace refresh synchronously, for callers that want
// scraped data before returning. It respects the single-flight guarantee.
func (o *Orchestrator) RefreshNow(ctx context.Context, brand, mdl, category string) error {
	key := store.Key{
		Brand:    classify.Normalize(brand),
		Model:    classify.Normalize(mdl),
		Category: classify.Normalize(category),
	}
	cacheKey := classify.CacheKey(brand, mdl, category)

	o.mu.Lock()
	if _, running := o.inflight[cacheKey]; running {
		o.mu.Unlock()
		return eris.Errorf("pricing: refresh already in flight for %s", cacheKey)
	}
	o.inflight[cacheKey] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, cacheKey)
		o.mu.Unlock()
	}()

	return o.doRefresh(ctx, cacheKey, key, brand, mdl)
}

// refresh is the background wrapper around doRefresh: detached context,
// bounded runtime, panic containment, inflight cleanup.
func (o *Orchestrator) refresh(cacheKey string, key store.Key, brand, mdl string) {
	log := zap.L().With(zap.String("cache_key", cacheKey))
	defer func() {
		if r := recover(); r != nil {
			log.Error("pricing: refresh panicked", zap.Any("panic", r))
		}
		o.mu.Lock()
		delete(o.inflight, cacheKey)
		o.mu.Unlock()
	}()

	// Detached from the request context: the caller has already been
	// answered by the time this runs.
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.RefreshTimeout)
	defer cancel()

	if err := o.doRefresh(ctx, cacheKey, key, brand, mdl); err != nil {
		log.Warn("pricing: background refresh failed", zap.Error(err))
	}
}

// doRefresh scrapes marketplace listings and, when they validate, upgrades
// the cache entry to the marketplace tier. It never overwrites an entry with
// an empty scrape.
func (o *Orchestrator) doRefresh(ctx context.Context, cacheKey string, key store.Key, brand, mdl string) error {
	log := zap.L().With(zap.String("cache_key", cacheKey))

	candidates, err := o.search.FindMarketplaceCandidates(ctx, brand, mdl)
	if err != nil {
		return eris.Wrap(err, "pricing: marketplace search")
	}

	listings := o.scrape.ScrapePrices(ctx, candidates)
	listings = ValidateListings(listings, brand, mdl)
	if len(listings) == 0 {
		log.Info("pricing: no validated listings, keeping cached entry")
		return nil
	}

	ranges := Aggregate(listings)
	now := time.Now().UTC()
	entry := model.PriceCacheEntry{
		Brand:              key.Brand,
		Model:              key.Model,
		Category:           key.Category,
		PriceRanges:        ranges,
		PriceSource:        Provenance(ranges),
		HasMarketplaceData: true,
		CachedAt:           now,
		ExpiresAt:          now.Add(o.opts.MarketTTL),
	}
	if err := o.store.UpsertPriceContext(ctx, entry); err != nil {
		return eris.Wrap(err, "pricing: cache marketplace prices")
	}
	log.Info("pricing: marketplace prices cached",
		zap.Int("listings", len(listings)),
		zap.Time("expires_at", entry.ExpiresAt),
	)
	return nil
}

// contextFromEntry flattens a cache row into the response contract. Zero
// bounds mean no data for that condition and stay null.
func contextFromEntry(entry *model.PriceCacheEntry) *model.PriceContext {
	pc := &model.PriceContext{
		Source:             entry.PriceSource,
		Breakdown:          entry.PriceBreakdown,
		HasMarketplaceData: entry.HasMarketplaceData,
	}
	if cp, ok := entry.PriceRanges[model.ConditionNew]; ok {
		pc.NewMin = positivePtr(cp.Min)
		pc.NewMax = positivePtr(cp.Max)
	}
	if cp, ok := entry.PriceRanges[model.ConditionRefurbished]; ok {
		pc.RefurbishedMin = positivePtr(cp.Min)
		pc.RefurbishedMax = positivePtr(cp.Max)
	}
	if cp, ok := entry.PriceRanges[model.ConditionUsed]; ok {
		pc.UsedMin = positivePtr(cp.Min)
		pc.UsedMax = positivePtr(cp.Max)
	}
	return pc
}

func positivePtr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
