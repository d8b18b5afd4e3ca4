package market

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
	"github.com/labmarket/pricewatch/pkg/reader"
)

// genericPriceSelectors is the ordered fallback chain for price text. Each
// selector is tried in turn until one yields text containing a digit.
var genericPriceSelectors = []string{
	`meta[property="product:price:amount"]`,
	`meta[property="og:price:amount"]`,
	`meta[itemprop="price"]`,
	`[itemprop="price"]`,
	`[data-price]`,
	`.price-value`,
	`.product-price`,
	`.current-price`,
	`.price`,
	`#price`,
}

// domainPriceSelectors overrides the generic chain for high-volume sources
// whose markup is known. The override list is tried before the generic one.
var domainPriceSelectors = map[string][]string{
	"ebay.com": {
		`.x-price-primary .ux-textspans`,
		`#prcIsum`,
		`[itemprop="price"]`,
	},
	"ebay.co.uk": {
		`.x-price-primary .ux-textspans`,
		`#prcIsum`,
	},
	"ebay.de": {
		`.x-price-primary .ux-textspans`,
		`#prcIsum`,
	},
	"labx.com": {
		`.listing-price`,
		`.price`,
	},
	"dotmed.com": {
		`.listing_price`,
		`.price`,
	},
	"equipnet.com": {
		`.product-detail-price`,
		`.price`,
	},
}

// conditionSelectors extract marketplace condition UI text on auction and
// resale sites.
var conditionSelectors = map[string][]string{
	"ebay.com":     {`.x-item-condition-text .ux-textspans`, `[data-testid="x-item-condition"]`},
	"ebay.co.uk":   {`.x-item-condition-text .ux-textspans`},
	"ebay.de":      {`.x-item-condition-text .ux-textspans`},
	"labx.com":     {`.listing-condition`, `.condition`},
	"equipnet.com": {`.product-condition`, `.condition`},
	"dotmed.com":   {`.condition`},
}

// ScrapeOptions tunes price scraping.
type ScrapeOptions struct {
	Domains     classify.Domains
	Rates       map[string]float64
	Band        SanityBand
	Concurrency int
}

func (o *ScrapeOptions) setDefaults() {
	if len(o.Rates) == 0 {
		o.Rates = DefaultCurrencyRates()
	}
	if o.Band == (SanityBand{}) {
		o.Band = DefaultSanityBand()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
}

// Scraper extracts verified listings from candidate pages.
type Scraper struct {
	reader reader.Client
	opts   ScrapeOptions
}

// NewScraper creates a Scraper.
func NewScraper(rd reader.Client, opts ScrapeOptions) *Scraper {
	opts.setDefaults()
	return &Scraper{reader: rd, opts: opts}
}

// ScrapePrices fetches each candidate and extracts price, title, and
// condition. One URL's failure never aborts the batch; it simply yields no
// listing for that URL.
func (s *Scraper) ScrapePrices(ctx context.Context, candidates []model.SearchResult) []model.Listing {
	var (
		mu       sync.Mutex
		listings []model.Listing
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, c := range candidates {
		g.Go(func() error {
			listing, err := s.scrapeOne(gCtx, c)
			if err != nil {
				zap.L().Debug("scrape: candidate failed",
					zap.String("url", c.URL),
					zap.Error(err),
				)
				return nil
			}
			if listing != nil {
				mu.Lock()
				listings = append(listings, *listing)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("scrape: batch complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("listings", len(listings)),
	)
	return listings
}

func (s *Scraper) scrapeOne(ctx context.Context, candidate model.SearchResult) (*model.Listing, error) {
	page, err := s.reader.Fetch(ctx, candidate.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}

	host := classify.Host(candidate.URL)

	priceText := extractPriceText(doc, host)
	if priceText == "" {
		zap.L().Debug("scrape: no price text found", zap.String("url", candidate.URL))
		return nil, nil
	}

	price, ok := ParsePrice(priceText, s.opts.Rates)
	if !ok {
		zap.L().Debug("scrape: unparseable price text",
			zap.String("url", candidate.URL),
			zap.String("price_text", priceText),
		)
		return nil, nil
	}
	if !s.opts.Band.Contains(price) {
		// Out-of-band values are parsing noise, not data.
		zap.L().Debug("scrape: price outside sanity band",
			zap.String("url", candidate.URL),
			zap.Float64("price", price),
		)
		return nil, nil
	}

	title := extractTitle(doc, page.Title)
	conditionText := extractConditionText(doc, host)
	condition := InferCondition(s.opts.Domains, candidate.URL, conditionText, title, ConditionHint(candidate.OriginQuery))

	return &model.Listing{
		URL:       candidate.URL,
		Title:     title,
		Price:     price,
		Condition: condition,
		Source:    host,
	}, nil
}

// extractPriceText walks the selector chain (per-domain overrides first)
// until a selection yields text containing a digit.
func extractPriceText(doc *goquery.Document, host string) string {
	selectors := append(append([]string{}, domainPriceSelectors[host]...), genericPriceSelectors...)
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := node.AttrOr("content", "")
		if text == "" {
			text = strings.TrimSpace(node.Text())
		}
		if strings.ContainsAny(text, "0123456789") {
			return text
		}
	}
	return ""
}

// extractTitle prefers og:title, then the fetched page title, then h1.
func extractTitle(doc *goquery.Document, fallback string) string {
	if t := doc.Find(`meta[property="og:title"]`).AttrOr("content", ""); t != "" {
		return strings.TrimSpace(t)
	}
	if fallback != "" {
		return strings.TrimSpace(fallback)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractConditionText pulls marketplace condition UI text where the domain
// has known markup.
func extractConditionText(doc *goquery.Document, host string) string {
	for _, sel := range conditionSelectors[host] {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
