package market

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
	"github.com/labmarket/pricewatch/pkg/reader"
)

type fakeReader struct {
	mu      sync.Mutex
	pages   map[string]*reader.Page
	fetched []string
}

func (f *fakeReader) Fetch(_ context.Context, targetURL string) (*reader.Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, targetURL)
	f.mu.Unlock()

	page, ok := f.pages[targetURL]
	if !ok {
		return nil, eris.Errorf("reader: unexpected status 404: %s", targetURL)
	}
	return page, nil
}

func newTestScraper(rd reader.Client) *Scraper {
	return NewScraper(rd, ScrapeOptions{
		Domains:     classify.DefaultDomains(),
		Concurrency: 1,
	})
}

func findListing(t *testing.T, listings []model.Listing, url string) model.Listing {
	t.Helper()
	for _, l := range listings {
		if l.URL == url {
			return l
		}
	}
	t.Fatalf("no listing for %s", url)
	return model.Listing{}
}

func TestScrapePricesGenericSelector(t *testing.T) {
	url := "https://lab-trader.example.com/agilent-7890b"
	rd := &fakeReader{pages: map[string]*reader.Page{
		url: {
			URL:   url,
			Title: "Fallback title",
			HTML: `<html><head>
				<meta property="og:title" content="Agilent 7890B GC System">
			</head><body>
				<span class="price">$24,500</span>
			</body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{{URL: url}})
	require.Len(t, listings, 1)

	got := listings[0]
	assert.Equal(t, url, got.URL)
	assert.Equal(t, "Agilent 7890B GC System", got.Title)
	assert.Equal(t, 24500.0, got.Price)
	assert.Equal(t, "lab-trader.example.com", got.Source)
	assert.Equal(t, model.ConditionUsed, got.Condition)
}

func TestScrapePricesDomainOverrideSelectors(t *testing.T) {
	url := "https://www.ebay.com/itm/123456"
	rd := &fakeReader{pages: map[string]*reader.Page{
		url: {
			URL:   url,
			Title: "Waters 2695 Separations Module | eBay",
			HTML: `<html><body>
				<div class="x-price-primary"><span class="ux-textspans">US $3,250.00</span></div>
				<div class="x-item-condition-text"><span class="ux-textspans">Seller refurbished</span></div>
				<span class="price">See details</span>
			</body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{{URL: url}})
	require.Len(t, listings, 1)

	got := listings[0]
	assert.Equal(t, 3250.0, got.Price)
	assert.Equal(t, "ebay.com", got.Source)
	assert.Equal(t, model.ConditionRefurbished, got.Condition)
}

func TestScrapePricesMetaContentAttribute(t *testing.T) {
	url := "https://shop.example.com/centrifuge"
	rd := &fakeReader{pages: map[string]*reader.Page{
		url: {
			URL:   url,
			Title: "Eppendorf 5424 Centrifuge",
			HTML: `<html><head>
				<meta property="product:price:amount" content="1500.00">
			</head><body><h1>Eppendorf 5424 Centrifuge</h1></body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{{URL: url}})
	require.Len(t, listings, 1)
	assert.Equal(t, 1500.0, listings[0].Price)
	assert.Equal(t, "Eppendorf 5424 Centrifuge", listings[0].Title)
}

func TestScrapePricesDropsOutOfBandPrice(t *testing.T) {
	url := "https://shop.example.com/manual-reprint"
	rd := &fakeReader{pages: map[string]*reader.Page{
		url: {
			URL:  url,
			HTML: `<html><body><span class="price">$5.00</span></body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{{URL: url}})
	assert.Empty(t, listings)
}

func TestScrapePricesSkipsPageWithoutPrice(t *testing.T) {
	url := "https://blog.example.com/gc-buying-guide"
	rd := &fakeReader{pages: map[string]*reader.Page{
		url: {
			URL:  url,
			HTML: `<html><body><p>How to choose a gas chromatograph.</p></body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{{URL: url}})
	assert.Empty(t, listings)
}

func TestScrapePricesFetchFailureDoesNotAbortBatch(t *testing.T) {
	good := "https://lab-trader.example.com/good"
	bad := "https://lab-trader.example.com/gone"
	rd := &fakeReader{pages: map[string]*reader.Page{
		good: {
			URL:  good,
			HTML: `<html><body><span class="price">$12,000</span></body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{
		{URL: bad},
		{URL: good},
	})
	require.Len(t, listings, 1)
	assert.Equal(t, good, findListing(t, listings, good).URL)
	assert.Len(t, rd.fetched, 2)
}

func TestScrapePricesConditionHintOffMarketplace(t *testing.T) {
	url := "https://lab-trader.example.com/thermo-refurb"
	rd := &fakeReader{pages: map[string]*reader.Page{
		url: {
			URL:   url,
			Title: "Thermo Scientific TSQ Quantum",
			HTML:  `<html><body><span class="price">$48,000</span></body></html>`,
		},
	}}

	listings := newTestScraper(rd).ScrapePrices(context.Background(), []model.SearchResult{
		{URL: url, OriginQuery: "thermo tsq quantum refurbished price"},
	})
	require.Len(t, listings, 1)
	assert.Equal(t, model.ConditionRefurbished, listings[0].Condition)
}

func TestExtractPriceTextRequiresDigit(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body>
			<span class="price">Call for price</span>
			<span class="product-price">$2,400</span>
		</body></html>`))
	require.NoError(t, err)

	assert.Equal(t, "$2,400", extractPriceText(doc, "shop.example.com"))
}

func TestExtractTitleFallbackChain(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		fallback string
		want     string
	}{
		{
			name:     "og title wins",
			html:     `<head><meta property="og:title" content="OG Title"><title>Tag Title</title></head>`,
			fallback: "Page Title",
			want:     "OG Title",
		},
		{
			name:     "fetched page title next",
			html:     `<head><title>Tag Title</title></head>`,
			fallback: "Page Title",
			want:     "Page Title",
		},
		{
			name: "title tag next",
			html: `<head><title>  Tag Title  </title></head><body><h1>Heading</h1></body>`,
			want: "Tag Title",
		},
		{
			name: "h1 last",
			html: `<body><h1>Heading</h1></body>`,
			want: "Heading",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, extractTitle(doc, tt.fallback))
		})
	}
}
