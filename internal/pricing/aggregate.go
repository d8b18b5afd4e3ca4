// Package pricing aggregates scraped listings into per-condition price
// statistics and orchestrates the two-tier price-context cache.
package pricing

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
)

// Aggregate groups listings by condition and computes min/max/rounded
// average with per-listing provenance. The result is rebuilt from scratch
// for every batch; nothing is mutated incrementally.
func Aggregate(listings []model.Listing) model.PriceRanges {
	ranges := make(model.PriceRanges)

	for _, l := range listings {
		cp, ok := ranges[l.Condition]
		if !ok {
			cp = model.ConditionPricing{Min: l.Price, Max: l.Price}
		}
		if l.Price < cp.Min {
			cp.Min = l.Price
		}
		if l.Price > cp.Max {
			cp.Max = l.Price
		}
		cp.Count++
		cp.Listings = append(cp.Listings, model.ListingRef{
			URL:    l.URL,
			Price:  l.Price,
			Source: l.Source,
			Title:  l.Title,
		})
		ranges[l.Condition] = cp
	}

	for cond, cp := range ranges {
		var sum float64
		for _, ref := range cp.Listings {
			sum += ref.Price
		}
		cp.Average = math.Round(sum / float64(cp.Count))
		ranges[cond] = cp
	}

	return ranges
}

// Provenance builds the human-readable source description for aggregated
// marketplace data, naming contributing hostnames per condition.
func Provenance(ranges model.PriceRanges) string {
	var parts []string
	for _, cond := range model.AllConditions() {
		cp, ok := ranges[cond]
		if !ok || cp.Count == 0 {
			continue
		}
		hosts := make([]string, 0, len(cp.Listings))
		seen := map[string]bool{}
		for _, ref := range cp.Listings {
			if ref.Source != "" && !seen[ref.Source] {
				seen[ref.Source] = true
				hosts = append(hosts, ref.Source)
			}
		}
		sort.Strings(hosts)
		parts = append(parts, string(cond)+" from "+strings.Join(hosts, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Marketplace data: " + strings.Join(parts, "; ")
}

// ValidateListings re-checks each listing's title against the requested
// brand and model. Search filters match on URLs and snippets, which can
// admit a page for the wrong product; the scraped page title is the last
// word. Rejections are logged and dropped, never surfaced as errors.
func ValidateListings(listings []model.Listing, brand, mdl string) []model.Listing {
	normBrand := classify.Normalize(brand)
	normModel := classify.Normalize(mdl)
	modelNoSpace := strings.ReplaceAll(normModel, " ", "")

	var lastToken string
	if fields := strings.Fields(normModel); len(fields) > 0 {
		lastToken = fields[len(fields)-1]
	}

	valid := listings[:0]
	for _, l := range listings {
		title := classify.Normalize(l.Title)
		titleNoSpace := strings.ReplaceAll(title, " ", "")

		ok := (normBrand != "" && strings.Contains(title, normBrand)) ||
			(normModel != "" && strings.Contains(title, normModel)) ||
			(modelNoSpace != "" && strings.Contains(titleNoSpace, modelNoSpace)) ||
			(len(lastToken) >= 2 && strings.Contains(title, lastToken))
		if !ok {
			zap.L().Debug("pricing: listing failed product re-validation",
				zap.String("url", l.URL),
				zap.String("title", l.Title),
			)
			continue
		}
		valid = append(valid, l)
	}
	return valid
}
