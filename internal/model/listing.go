// Package model defines the shared domain types for the price
// intelligence pipeline.
package model

import "time"

// Condition is the physical state of an equipment listing.
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionRefurbished Condition = "refurbished"
	ConditionUsed        Condition = "used"
)

// AllConditions returns the conditions in display order.
func AllConditions() []Condition {
	return []Condition{ConditionNew, ConditionRefurbished, ConditionUsed}
}

// SearchResult is a single organic hit from the search provider.
// OriginQuery records which query variant produced the result; it is used
// later as a condition hint, never as a hard classification.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OriginQuery string `json:"origin_query,omitempty"`
}

// Listing is a scraped commercial page with a verified, USD-normalized price.
// Listings are only created after price parsing succeeds and the price falls
// inside the sanity band; anything else is dropped, not stored.
type Listing struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Condition Condition `json:"condition"`
	Source    string    `json:"source"`
}

// ListingRef is the provenance record kept per contributing listing
// inside an aggregated price range.
type ListingRef struct {
	URL    string  `json:"url"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
	Title  string  `json:"title,omitempty"`
}

// ConditionPricing aggregates all listings sharing one condition. It is
// recomputed from a fresh batch each time, never mutated incrementally.
type ConditionPricing struct {
	Min      float64      `json:"min"`
	Max      float64      `json:"max"`
	Average  float64      `json:"average"`
	Count    int          `json:"count"`
	Listings []ListingRef `json:"listings,omitempty"`
}

// PriceRanges maps condition -> aggregate pricing.
type PriceRanges map[Condition]ConditionPricing

// PriceCacheEntry is the persisted cache row, unique per normalized
// (brand, model, category) triple. AI-tier rows carry a short TTL and
// HasMarketplaceData=false; scrape-tier rows carry a long TTL and true.
type PriceCacheEntry struct {
	ID                 string      `json:"id"`
	Brand              string      `json:"brand"`
	Model              string      `json:"model"`
	Category           string      `json:"category"`
	PriceRanges        PriceRanges `json:"price_ranges"`
	PriceSource        string      `json:"price_source"`
	PriceBreakdown     string      `json:"price_breakdown,omitempty"`
	HasMarketplaceData bool        `json:"has_marketplace_data"`
	CachedAt           time.Time   `json:"cached_at"`
	ExpiresAt          time.Time   `json:"expires_at"`
}

// PriceContext is the flat contract exposed to the routes layer. All six
// price fields are independently nullable; absence of data is data, not an
// error.
type PriceContext struct {
	NewMin               *float64 `json:"new_min"`
	NewMax               *float64 `json:"new_max"`
	RefurbishedMin       *float64 `json:"refurbished_min"`
	RefurbishedMax       *float64 `json:"refurbished_max"`
	UsedMin              *float64 `json:"used_min"`
	UsedMax              *float64 `json:"used_max"`
	Source               string   `json:"source"`
	Breakdown            string   `json:"breakdown,omitempty"`
	Cached               bool     `json:"cached"`
	HasMarketplaceData   bool     `json:"has_marketplace_data"`
	ScrapingInBackground bool     `json:"scraping_in_background"`
}
