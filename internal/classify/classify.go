// Package classify decides whether a search result is documentation or a
// commercial offer. The decision is an explicit ordered list of named rules
// evaluated top to bottom; the first matching rule wins, which keeps the
// precedence auditable and each rule independently testable.
package classify

import (
	"regexp"
	"strings"

	"github.com/labmarket/pricewatch/internal/model"
)

// hardwarePattern catches products literally named after documents, e.g.
// "manual valve" or "guide rail". For these the word manual/guide is a
// product adjective, not a document noun.
var hardwarePattern = regexp.MustCompile(`(?i)\b(manual|guide)\s+(valve|rail|switch|pump|actuator|press|stage|chuck|feeder?|slide|winch|hoist|crimper|lathe)s?\b|\b(hand|foot|pneumatic|manually)[- ]operated\b|\bmanual\s+(transmission|override|mode)\b`)

// incidentalPattern catches sales copy that mentions a manual as an
// included accessory rather than the page's subject.
var incidentalPattern = regexp.MustCompile(`(?i)\b(includes?\s+(the\s+)?(user\s+|operator'?s?\s+|service\s+)?manual|manual\s+included|comes?\s+with\s+(a\s+)?manual|with\s+original\s+manual)\b`)

// docPhrasePattern matches unambiguous two-word documentation phrases.
var docPhrasePattern = regexp.MustCompile(`(?i)\b(user|owner'?s?|instruction|operating|operation|operator'?s?|service|repair|maintenance|installation|reference|safety)\s+(manual|guide|handbook|instructions)\b|\b(data\s?sheet|spec(ification)?\s+sheet|technical\s+specifications?|quick\s+start\s+guide|product\s+(brochure|catalog(ue)?)|sales\s+brochure)\b`)

// servicePattern, datasheetPattern, brochurePattern pick the documentation
// sub-type once docPhrasePattern fired.
var (
	servicePattern   = regexp.MustCompile(`(?i)\b(service|repair|maintenance)\b`)
	datasheetPattern = regexp.MustCompile(`(?i)\b(data\s?sheet|spec(ification)?s?\b|technical\s+specifications?)`)
	brochurePattern  = regexp.MustCompile(`(?i)\b(brochure|catalog(ue)?)\b`)
)

// docPathPattern matches documentation-shaped URL path segments.
var docPathPattern = regexp.MustCompile(`(?i)/(manuals?|support|docs?|documentation|downloads?|literature|resources|datasheets?|guides?)(/|\.|$)`)

// commercialPattern flags strong commercial signals: a currency amount or
// marketplace verbiage.
var commercialPattern = regexp.MustCompile(`(?i)[$€£¥]\s?\d|\d[\d.,]*\s?(usd|eur|gbp|chf)\b|\b(buy\s+now|for\s+sale|add\s+to\s+cart|in\s+stock|free\s+shipping|auction|place\s+bid|best\s+offer|request\s+a?\s?quote|price:)`)

// titleManualPattern is the weaker title check used for doc-shaped PDFs.
var titleManualPattern = regexp.MustCompile(`(?i)\b(manual|guide|handbook)\b`)

// features precomputes every signal the rules consult so each rule stays a
// cheap predicate over the same view of the result.
type features struct {
	result      model.SearchResult
	title       string
	description string
	text        string
	path        string

	isPDF             bool
	isMarketplace     bool
	isDocHost         bool
	hardwareTerm      bool
	incidentalMention bool
	commercialSignal  bool
	titleDocPhrase    bool
	descDocPhrase     bool
	docPath           bool
}

// rule is one entry of the ordered decision list.
type rule struct {
	name  string
	apply func(f *features) (model.ResultType, bool)
}

// Classifier evaluates the rule list against configured domain lists.
type Classifier struct {
	domains Domains
	rules   []rule
}

// New creates a Classifier using the given domain lists.
func New(domains Domains) *Classifier {
	c := &Classifier{domains: domains}
	c.rules = []rule{
		// Marketplace domain is the strongest, least ambiguous signal and
		// short-circuits everything else, including doc-looking titles.
		{"marketplace_domain", func(f *features) (model.ResultType, bool) {
			if f.isMarketplace {
				return model.ResultOffer, true
			}
			return "", false
		}},
		{"hardware_term", func(f *features) (model.ResultType, bool) {
			if !f.hardwareTerm {
				return "", false
			}
			if f.commercialSignal || !f.isPDF {
				return model.ResultOffer, true
			}
			return model.ResultPDFDocument, true
		}},
		{"incidental_doc_mention", func(f *features) (model.ResultType, bool) {
			if f.incidentalMention && !f.isDocHost {
				return model.ResultOffer, true
			}
			return "", false
		}},
		{"title_doc_phrase", func(f *features) (model.ResultType, bool) {
			if f.titleDocPhrase {
				return docSubType(f.title), true
			}
			return "", false
		}},
		// Description evidence is weaker than title evidence and needs the
		// URL path or a PDF extension to corroborate it.
		{"description_doc_phrase", func(f *features) (model.ResultType, bool) {
			if f.descDocPhrase && (f.docPath || f.isPDF) {
				return docSubType(f.description), true
			}
			return "", false
		}},
		{"documentation_host", func(f *features) (model.ResultType, bool) {
			if !f.isDocHost {
				return "", false
			}
			if f.isPDF {
				return model.ResultManual, true
			}
			return model.ResultWebPage, true
		}},
		{"doc_shaped_pdf", func(f *features) (model.ResultType, bool) {
			if f.isPDF && f.docPath && titleManualPattern.MatchString(f.title) && !f.commercialSignal {
				return model.ResultManual, true
			}
			return "", false
		}},
		{"commercial_signal", func(f *features) (model.ResultType, bool) {
			if f.commercialSignal {
				return model.ResultOffer, true
			}
			return "", false
		}},
		{"default", func(f *features) (model.ResultType, bool) {
			if f.isPDF {
				return model.ResultPDFDocument, true
			}
			return model.ResultWebPage, true
		}},
	}
	return c
}

// Classify derives the verdict for one search result.
func (c *Classifier) Classify(result model.SearchResult) model.Verdict {
	f := c.featuresOf(result)

	v := model.Verdict{
		IsPDF:                   f.isPDF,
		IsMarketplaceDomain:     f.isMarketplace,
		IsEquipmentHardwareTerm: f.hardwareTerm,
		HasIncidentalDocMention: f.incidentalMention,
	}

	for _, r := range c.rules {
		if rt, ok := r.apply(f); ok {
			v.ResultType = rt
			v.Rule = r.name
			return v
		}
	}

	// The default rule always fires; this is unreachable.
	v.ResultType = model.ResultWebPage
	return v
}

func (c *Classifier) featuresOf(result model.SearchResult) *features {
	lowerURL := strings.ToLower(result.URL)
	title := strings.ToLower(result.Title)
	desc := strings.ToLower(result.Description)
	text := title + " " + desc

	path := lowerURL
	if i := strings.Index(lowerURL, "?"); i >= 0 {
		path = lowerURL[:i]
	}

	return &features{
		result:      result,
		title:       title,
		description: desc,
		text:        text,
		path:        path,

		isPDF:             strings.HasSuffix(path, ".pdf"),
		isMarketplace:     c.domains.IsMarketplace(result.URL),
		isDocHost:         c.domains.IsDocumentationHost(result.URL),
		hardwareTerm:      hardwarePattern.MatchString(title),
		incidentalMention: incidentalPattern.MatchString(text),
		commercialSignal:  commercialPattern.MatchString(text),
		titleDocPhrase:    docPhrasePattern.MatchString(title),
		descDocPhrase:     docPhrasePattern.MatchString(desc),
		docPath:           docPathPattern.MatchString(path),
	}
}

// docSubType buckets a documentation phrase into the concrete doc type.
// Service/maintenance/repair terms win over spec-sheet terms, matching how
// "service manual" pages should land in service_doc.
func docSubType(text string) model.ResultType {
	switch {
	case servicePattern.MatchString(text):
		return model.ResultServiceDoc
	case datasheetPattern.MatchString(text):
		return model.ResultDatasheet
	case brochurePattern.MatchString(text):
		return model.ResultBrochure
	default:
		return model.ResultManual
	}
}
