// Package market discovers and scrapes marketplace listings for a given
// brand/model: parallel locale-variant searches, noise filtering and
// deduplication, then per-URL price and condition extraction.
package market

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
	"github.com/labmarket/pricewatch/pkg/serper"
)

// queryVariant is one of the bounded parallel searches. The condition bias
// of a variant travels with its results as a hint, not a classification.
type queryVariant struct {
	name   string
	tag    language.Tag
	format string
	hint   model.Condition
}

// marketplaceQueries covers three market locales plus three condition-biased
// phrasings. Distinct phrasing per locale matters: "kaufen preis" surfaces
// German resellers that "for sale" never reaches.
var marketplaceQueries = []queryVariant{
	{name: "us_general", tag: language.AmericanEnglish, format: "%s %s for sale price"},
	{name: "uk_general", tag: language.BritishEnglish, format: "%s %s for sale price"},
	{name: "de_general", tag: language.German, format: "%s %s kaufen preis"},
	{name: "new_bias", tag: language.AmericanEnglish, format: "buy new %s %s price", hint: model.ConditionNew},
	{name: "refurbished_bias", tag: language.AmericanEnglish, format: "%s %s refurbished price", hint: model.ConditionRefurbished},
	{name: "used_bias", tag: language.AmericanEnglish, format: "used %s %s for sale", hint: model.ConditionUsed},
}

// documentationQueries bias toward manuals and spec sheets.
var documentationQueries = []queryVariant{
	{name: "manual", tag: language.AmericanEnglish, format: "%s %s user manual pdf"},
	{name: "datasheet", tag: language.AmericanEnglish, format: "%s %s datasheet specifications"},
	{name: "service", tag: language.AmericanEnglish, format: "%s %s service manual"},
}

// ConditionHint maps a result's origin query back to the condition its
// variant was biased toward. Empty for unbiased variants.
func ConditionHint(originQuery string) model.Condition {
	for _, q := range marketplaceQueries {
		if q.name == originQuery {
			return q.hint
		}
	}
	return ""
}

// localeHints derives the search provider's country/language hints from a
// BCP 47 tag.
func localeHints(tag language.Tag) (gl, hl string) {
	region, _ := tag.Region()
	base, _ := tag.Base()
	return strings.ToLower(region.String()), base.String()
}

// SearchOptions tunes candidate discovery.
type SearchOptions struct {
	Domains            classify.Domains
	MaxOfficialNew     int
	MaxUsedMarketplace int
	MaxCandidates      int
	NumResults         int
}

func (o *SearchOptions) setDefaults() {
	if o.MaxOfficialNew <= 0 {
		o.MaxOfficialNew = 3
	}
	if o.MaxUsedMarketplace <= 0 {
		o.MaxUsedMarketplace = 4
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 12
	}
	if o.NumResults <= 0 {
		o.NumResults = 20
	}
}

// Searcher finds listing candidates via the search provider.
type Searcher struct {
	client     serper.Client
	classifier *classify.Classifier
	opts       SearchOptions
}

// NewSearcher creates a Searcher.
func NewSearcher(client serper.Client, classifier *classify.Classifier, opts SearchOptions) *Searcher {
	opts.setDefaults()
	return &Searcher{client: client, classifier: classifier, opts: opts}
}

// FindMarketplaceCandidates runs the parallel locale/condition query set and
// returns filtered, deduplicated, rebalanced commercial candidates.
func (s *Searcher) FindMarketplaceCandidates(ctx context.Context, brand, mdl string) ([]model.SearchResult, error) {
	results, err := s.runQueries(ctx, brand, mdl, marketplaceQueries)
	if err != nil {
		return nil, err
	}

	variants := modelVariants(mdl)
	normBrand := classify.Normalize(brand)

	kept := results[:0]
	for _, r := range results {
		if s.keepCommercial(r, normBrand, variants) {
			kept = append(kept, r)
		}
	}

	deduped := dedupeByURL(kept)
	balanced := rebalance(deduped, s.opts.Domains, s.opts.MaxOfficialNew, s.opts.MaxUsedMarketplace, s.opts.MaxCandidates)

	zap.L().Info("search: marketplace candidates",
		zap.String("brand", brand),
		zap.String("model", mdl),
		zap.Int("raw", len(results)),
		zap.Int("filtered", len(kept)),
		zap.Int("selected", len(balanced)),
	)
	return balanced, nil
}

// FindDocumentationCandidates runs the documentation-biased query set and
// keeps results the classifier places in the documentation bucket.
func (s *Searcher) FindDocumentationCandidates(ctx context.Context, brand, mdl string) ([]model.SearchResult, error) {
	results, err := s.runQueries(ctx, brand, mdl, documentationQueries)
	if err != nil {
		return nil, err
	}

	variants := modelVariants(mdl)
	var kept []model.SearchResult
	for _, r := range results {
		if !fuzzyModelMatch(r, variants) {
			continue
		}
		if s.classifier.Classify(r).ResultType.IsDocumentation() {
			kept = append(kept, r)
		}
	}
	return dedupeByURL(kept), nil
}

// runQueries fires all variants concurrently and awaits them; a single
// failed variant is skipped, but zero successes with at least one error is
// a provider failure and raises.
func (s *Searcher) runQueries(ctx context.Context, brand, mdl string, queries []queryVariant) ([]model.SearchResult, error) {
	var (
		mu      sync.Mutex
		results []model.SearchResult
		lastErr error
		okCount int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(len(queries))

	for _, q := range queries {
		g.Go(func() error {
			gl, hl := localeHints(q.tag)
			resp, err := s.client.Search(gCtx, serper.SearchRequest{
				Query: fmt.Sprintf(q.format, brand, mdl),
				GL:    gl,
				HL:    hl,
				Num:   s.opts.NumResults,
			})
			if err != nil {
				zap.L().Warn("search: query variant failed",
					zap.String("variant", q.name),
					zap.Error(err),
				)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}

			mu.Lock()
			okCount++
			for _, o := range resp.Organic {
				results = append(results, model.SearchResult{
					URL:         o.Link,
					Title:       o.Title,
					Description: o.Snippet,
					OriginQuery: q.name,
				})
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if okCount == 0 && lastErr != nil {
		return nil, eris.Wrap(lastErr, "search: all query variants failed")
	}
	return results, nil
}

// modelVariants builds the fuzzy-match forms of a model string: normalized
// full form, no-space form, trailing numeric token, trailing alphanumeric
// token. Short variants are dropped as too noisy to match on.
func modelVariants(mdl string) []string {
	norm := classify.Normalize(mdl)
	if norm == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if len(v) >= 2 && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(norm)
	add(strings.ReplaceAll(norm, " ", ""))

	tokens := strings.Fields(norm)
	last := tokens[len(tokens)-1]
	add(last)
	if m := digitsPattern.FindString(last); m != "" {
		add(m)
	}
	return out
}

var digitsPattern = regexp.MustCompile(`\d+`)

// genericPagePattern flags search/category/browse pages that list many
// products instead of one.
var genericPagePattern = regexp.MustCompile(`(?i)/(search|results|category|categories|cat|browse|catalog|shop)(/|$)|[?&](q|query|search|keyword)=`)

// nonCommercialHostPattern flags hosts that never carry a purchasable
// listing: encyclopedias, video, forums.
var nonCommercialHostPattern = regexp.MustCompile(`(?i)(wikipedia\.org|wikimedia\.org|youtube\.com|youtu\.be|vimeo\.com|reddit\.com|researchgate\.net)$`)

var forumPathPattern = regexp.MustCompile(`(?i)/(forum|forums|thread|threads|board|community)(/|$)`)

// priceIndicatorPattern spots a price-looking signal in title or snippet.
var priceIndicatorPattern = regexp.MustCompile(`(?i)[$€£¥]\s?\d|\d[\d.,]*\s?(usd|eur|gbp|chf)\b|\bprice\b|\bfor sale\b|\bbuy\b`)

// keepCommercial applies the marketplace candidate filter: the result has to
// look like this model, not be a listing index or a non-commercial page, and
// carry at least one commercial anchor (price text, brand match, or a known
// marketplace domain).
func (s *Searcher) keepCommercial(r model.SearchResult, normBrand string, variants []string) bool {
	if !fuzzyModelMatch(r, variants) {
		return false
	}

	lowerURL := strings.ToLower(r.URL)
	if genericPagePattern.MatchString(lowerURL) {
		return false
	}
	if nonCommercialHostPattern.MatchString(classify.Host(r.URL)) || forumPathPattern.MatchString(lowerURL) {
		return false
	}

	verdict := s.classifier.Classify(r)
	if verdict.ResultType.IsDocumentation() {
		return false
	}

	text := strings.ToLower(r.Title + " " + r.Description)
	switch {
	case verdict.IsMarketplaceDomain:
		return true
	case priceIndicatorPattern.MatchString(text):
		return true
	case normBrand != "" && strings.Contains(text+" "+lowerURL, normBrand):
		return true
	}
	return false
}

// fuzzyModelMatch checks whether any model variant appears in the result's
// title, URL, or snippet.
func fuzzyModelMatch(r model.SearchResult, variants []string) bool {
	haystack := strings.ToLower(r.Title + " " + r.URL + " " + r.Description)
	haystack = strings.ReplaceAll(haystack, "-", " ")
	for _, v := range variants {
		if strings.Contains(haystack, v) {
			return true
		}
	}
	return false
}

// dedupeByURL removes duplicates sharing a URL once the query string and
// fragment are ignored. First occurrence wins, preserving variant order.
func dedupeByURL(results []model.SearchResult) []model.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		key := canonicalURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func canonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.ToLower(strings.TrimSuffix(u.String(), "/"))
}

// rebalance interleaves capped official-new sellers, capped used/refurb
// marketplaces, and other domains so one aggressive domain category cannot
// crowd out the rest and skew the price/condition mix.
func rebalance(results []model.SearchResult, domains classify.Domains, maxOfficial, maxUsed, maxTotal int) []model.SearchResult {
	var official, used, other []model.SearchResult
	for _, r := range results {
		switch {
		case domains.IsOfficialNew(r.URL):
			official = append(official, r)
		case domains.IsUsedMarketplace(r.URL):
			used = append(used, r)
		default:
			other = append(other, r)
		}
	}

	if len(official) > maxOfficial {
		official = official[:maxOfficial]
	}
	if len(used) > maxUsed {
		used = used[:maxUsed]
	}

	out := make([]model.SearchResult, 0, maxTotal)
	buckets := [][]model.SearchResult{official, used, other}
	idx := [3]int{}
	for len(out) < maxTotal {
		progressed := false
		for b := range buckets {
			if idx[b] < len(buckets[b]) && len(out) < maxTotal {
				out = append(out, buckets[b][idx[b]])
				idx[b]++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}
