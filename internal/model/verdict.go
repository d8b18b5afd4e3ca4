package model

import "strings"

// ResultType is the classifier taxonomy for a search result.
type ResultType string

const (
	ResultManual      ResultType = "manual"
	ResultDatasheet   ResultType = "datasheet"
	ResultBrochure    ResultType = "brochure"
	ResultServiceDoc  ResultType = "service_doc"
	ResultPDFDocument ResultType = "pdf_document"
	ResultWebPage     ResultType = "web_page"
	ResultOffer       ResultType = "offer"
)

// IsDocumentation reports whether the type falls into the documentation
// bucket (as opposed to a commercial offer or a plain web page).
func (t ResultType) IsDocumentation() bool {
	switch t {
	case ResultManual, ResultDatasheet, ResultBrochure, ResultServiceDoc, ResultPDFDocument:
		return true
	}
	return false
}

// Verdict is the derived classification of a SearchResult. It is a pure
// function of the result and is recomputed on demand, never cached.
type Verdict struct {
	ResultType              ResultType `json:"resultType"`
	IsPDF                   bool       `json:"isPdf"`
	IsMarketplaceDomain     bool       `json:"isMarketplaceDomain"`
	IsEquipmentHardwareTerm bool       `json:"isEquipmentHardwareTerm"`
	HasIncidentalDocMention bool       `json:"hasIncidentalDocMention"`
	Rule                    string     `json:"rule,omitempty"`
}

// ParseCondition maps a raw condition string to a Condition. Returns
// ("", false) for anything unrecognized.
func ParseCondition(raw string) (Condition, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new":
		return ConditionNew, true
	case "refurbished", "refurb", "reconditioned", "remanufactured":
		return ConditionRefurbished, true
	case "used", "pre-owned", "preowned", "second hand", "secondhand":
		return ConditionUsed, true
	}
	return "", false
}
