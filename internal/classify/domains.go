package classify

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Domains holds the hand-maintained domain lists the classifier and search
// filter consult. They are configuration data with built-in defaults, not
// hard-coded logic; operators can extend them without a rebuild.
type Domains struct {
	// Marketplace domains classify as offer unconditionally.
	Marketplace []string `yaml:"marketplace" mapstructure:"marketplace"`
	// OfficialNew are manufacturer/distributor storefronts that default to
	// selling new equipment.
	OfficialNew []string `yaml:"official_new" mapstructure:"official_new"`
	// UsedMarketplace are resale/auction sites that default to used.
	UsedMarketplace []string `yaml:"used_marketplace" mapstructure:"used_marketplace"`
	// Documentation are manual repositories and slide-sharing hosts.
	Documentation []string `yaml:"documentation" mapstructure:"documentation"`
}

// DefaultDomains returns the built-in lab/industrial equipment domain lists.
func DefaultDomains() Domains {
	return Domains{
		Marketplace: []string{
			"ebay.com", "ebay.co.uk", "ebay.de",
			"labx.com", "bidspotter.com", "equipnet.com",
			"dotmed.com", "labexchange.com", "machinio.com",
			"surplusrecord.com", "govdeals.com", "alibaba.com",
			"used-line.com", "bimedis.com",
		},
		OfficialNew: []string{
			"agilent.com", "thermofisher.com", "perkinelmer.com",
			"shimadzu.com", "waters.com", "sigmaaldrich.com",
			"fishersci.com", "vwr.com", "grainger.com", "mcmaster.com",
		},
		UsedMarketplace: []string{
			"labx.com", "equipnet.com", "dotmed.com", "labexchange.com",
			"used-line.com", "bimedis.com", "govdeals.com", "surplusrecord.com",
		},
		Documentation: []string{
			"manualslib.com", "manualzz.com", "manualsdir.com",
			"slideshare.net", "scribd.com", "yumpu.com", "archive.org",
		},
	}
}

// LoadDomains reads a domain-list override file. The YAML has a top-level
// "domains" key; groups left empty in the file keep their defaults.
func LoadDomains(path string) (Domains, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Domains{}, eris.Wrapf(err, "classify: read domains %s", path)
	}

	var wrapper struct {
		Domains Domains `yaml:"domains"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Domains{}, eris.Wrap(err, "classify: parse domains")
	}

	d := wrapper.Domains
	defaults := DefaultDomains()
	if len(d.Marketplace) == 0 {
		d.Marketplace = defaults.Marketplace
	}
	if len(d.OfficialNew) == 0 {
		d.OfficialNew = defaults.OfficialNew
	}
	if len(d.UsedMarketplace) == 0 {
		d.UsedMarketplace = defaults.UsedMarketplace
	}
	if len(d.Documentation) == 0 {
		d.Documentation = defaults.Documentation
	}
	return d, nil
}

// Host extracts the lowercase hostname from a raw URL, stripping any
// leading "www.". Returns "" when the URL does not parse.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// Tolerate bare host strings from search snippets.
		if err == nil && u.Path != "" && !strings.Contains(u.Path, "/") {
			return strings.TrimPrefix(strings.ToLower(u.Path), "www.")
		}
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// hostMatches reports whether host equals or is a subdomain of any entry.
func hostMatches(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsMarketplace reports whether the URL belongs to a known commercial
// marketplace domain.
func (d Domains) IsMarketplace(rawURL string) bool {
	return hostMatches(Host(rawURL), d.Marketplace)
}

// IsOfficialNew reports whether the URL belongs to a known official
// new-equipment seller.
func (d Domains) IsOfficialNew(rawURL string) bool {
	return hostMatches(Host(rawURL), d.OfficialNew)
}

// IsUsedMarketplace reports whether the URL belongs to a known
// used/refurbished equipment marketplace.
func (d Domains) IsUsedMarketplace(rawURL string) bool {
	return hostMatches(Host(rawURL), d.UsedMarketplace)
}

// IsDocumentationHost reports whether the URL belongs to a known
// documentation-hosting domain.
func (d Domains) IsDocumentationHost(rawURL string) bool {
	return hostMatches(Host(rawURL), d.Documentation)
}
