package market

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultCurrencyRates returns the fixed reference-currency (USD) conversion
// table. Rates are deliberately static; price discovery needs ballpark
// comparability across locales, not FX precision.
func DefaultCurrencyRates() map[string]float64 {
	return map[string]float64{
		"USD": 1.0,
		"EUR": 1.08,
		"GBP": 1.27,
		"CHF": 1.12,
		"CAD": 0.73,
		"AUD": 0.65,
		"JPY": 0.0067,
	}
}

// currencyCodePattern matches an ISO currency code adjacent to a number.
var currencyCodePattern = regexp.MustCompile(`(?i)\b(usd|eur|gbp|chf|cad|aud|jpy)\b`)

// numberPattern grabs the first digit run including grouping separators.
var numberPattern = regexp.MustCompile(`\d[\d.,'\x{00a0} ]*\d|\d`)

// detectCurrency picks the currency implied by symbols or codes in the raw
// price text, defaulting to USD.
func detectCurrency(text string) string {
	switch {
	case strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "¥"):
		return "JPY"
	}
	if m := currencyCodePattern.FindString(text); m != "" {
		return strings.ToUpper(m)
	}
	return "USD"
}

// normalizeNumber resolves thousands-vs-decimal separator ambiguity:
// a single trailing group of exactly 2 digits after the last separator is a
// decimal mark; 3-digit trailing groups or a repeated separator mean the
// separators are thousands grouping and are stripped.
func normalizeNumber(token string) (float64, bool) {
	token = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', '\'':
			return -1
		}
		return r
	}, token)
	if token == "" {
		return 0, false
	}

	lastSep := strings.LastIndexAny(token, ".,")
	if lastSep >= 0 {
		sep := token[lastSep]
		trailing := len(token) - lastSep - 1
		if trailing == 2 && strings.Count(token, string(sep)) == 1 {
			// Decimal mark: strip the other separator kind, unify to a dot.
			intPart := strings.Map(dropSeparators, token[:lastSep])
			token = intPart + "." + token[lastSep+1:]
		} else {
			token = strings.Map(dropSeparators, token)
		}
	}

	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}

// ParsePrice extracts a USD-normalized price from free-form price text.
// Returns (0, false) when no parseable number is present.
func ParsePrice(text string, rates map[string]float64) (float64, bool) {
	token := numberPattern.FindString(text)
	if token == "" {
		return 0, false
	}

	value, ok := normalizeNumber(token)
	if !ok {
		return 0, false
	}

	rate, ok := rates[detectCurrency(text)]
	if !ok || rate <= 0 {
		rate = 1.0
	}
	return value * rate, true
}

// SanityBand bounds plausible equipment prices. Anything outside is parsing
// noise (shipping costs, part numbers, phone fragments), not data. The
// thresholds are tuned for lab/industrial equipment and are configuration,
// not invariants.
type SanityBand struct {
	MinUSD float64 `yaml:"min_usd" mapstructure:"min_usd"`
	MaxUSD float64 `yaml:"max_usd" mapstructure:"max_usd"`
}

// DefaultSanityBand returns the lab/industrial equipment band.
func DefaultSanityBand() SanityBand {
	return SanityBand{MinUSD: 100, MaxUSD: 2_000_000}
}

// Contains reports whether the price is plausible.
func (b SanityBand) Contains(price float64) bool {
	return price >= b.MinUSD && price <= b.MaxUSD
}
