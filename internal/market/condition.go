package market

import (
	"regexp"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
)

var (
	refurbishedPattern = regexp.MustCompile(`(?i)\b(refurb(ished)?|recondition(ed)?|remanufactured|rebuilt)\b`)
	usedPattern        = regexp.MustCompile(`(?i)\b(used|pre-?owned|second-?hand|as-?is|pulled from)\b`)
	newPattern         = regexp.MustCompile(`(?i)\b(brand new|factory new|new in box|factory sealed|nib|bnib)\b|\bnew\b`)
)

// conditionFromText scans free text for an explicit condition keyword.
// Refurbished wins over used ("seller refurbished, lightly used"), and both
// win over "new" since "like new" sales copy is common on resale pages.
func conditionFromText(text string) (model.Condition, bool) {
	if text == "" {
		return "", false
	}
	if c, ok := model.ParseCondition(text); ok {
		return c, true
	}
	switch {
	case refurbishedPattern.MatchString(text):
		return model.ConditionRefurbished, true
	case usedPattern.MatchString(text):
		return model.ConditionUsed, true
	case newPattern.MatchString(text):
		return model.ConditionNew, true
	}
	return "", false
}

// InferCondition resolves a listing's condition from, in priority order:
// the marketplace condition UI text (auction/resale domains only), explicit
// keywords in the page title, the seller-type default for the domain, and
// finally the hint carried from the originating query variant. The hint only
// ever replaces a default — it never overrides an explicit textual signal.
func InferCondition(domains classify.Domains, pageURL, conditionText, title string, originHint model.Condition) model.Condition {
	if domains.IsMarketplace(pageURL) || domains.IsUsedMarketplace(pageURL) {
		if c, ok := conditionFromText(conditionText); ok {
			return c
		}
	}

	if c, ok := conditionFromText(title); ok {
		return c
	}

	// Seller-type default, overridable by the query hint.
	var fallback model.Condition
	switch {
	case domains.IsOfficialNew(pageURL):
		fallback = model.ConditionNew
	case domains.IsUsedMarketplace(pageURL):
		fallback = model.ConditionUsed
	}

	if originHint != "" {
		return originHint
	}
	if fallback != "" {
		return fallback
	}
	return model.ConditionUsed
}
