package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/labmarket/pricewatch/internal/model"
	"github.com/labmarket/pricewatch/pkg/anthropic"
)

const estimateSystemPrompt = `You are a used laboratory and industrial equipment pricing analyst. Estimate realistic market price ranges in USD. Respond with only a valid JSON object:
{"new_min": <number or null>, "new_max": <number or null>, "refurbished_min": <number or null>, "refurbished_max": <number or null>, "used_min": <number or null>, "used_max": <number or null>, "breakdown": "<one short paragraph explaining the estimate>"}`

const estimateUserPrompt = `Equipment: %s %s
Category: %s%s

Estimate current market price ranges per condition.`

// Estimate is the generative price estimate, always well-formed: a failed
// model call or malformed JSON yields empty ranges, never an error.
type Estimate struct {
	Ranges    model.PriceRanges
	Breakdown string
	Source    string
}

// EstimateSourceMarker identifies AI-tier provenance strings.
const EstimateSourceMarker = "AI estimate"

// Estimator produces fast generative price estimates.
type Estimator struct {
	ai    anthropic.Client
	model string
}

// NewEstimator creates an Estimator.
func NewEstimator(ai anthropic.Client, modelID string) *Estimator {
	return &Estimator{ai: ai, model: modelID}
}

// Estimate asks the model for per-condition price ranges. The response is
// an untrusted external payload: every field is coerced to number-or-null
// at this boundary and nothing downstream sees the raw shape.
func (e *Estimator) Estimate(ctx context.Context, brand, mdl, category string, condition model.Condition) Estimate {
	var focus string
	if condition != "" {
		focus = fmt.Sprintf("\nFocus: the requester cares most about %s condition.", condition)
	}

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 512,
		System:    estimateSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(estimateUserPrompt, brand, mdl, category, focus)},
		},
	})
	if err != nil {
		// Price context is advisory; degraded output beats an error surface.
		zap.L().Warn("estimate: model call failed",
			zap.String("brand", brand),
			zap.String("model", mdl),
			zap.Error(err),
		)
		return Estimate{Ranges: model.PriceRanges{}, Source: EstimateSourceMarker + " unavailable"}
	}

	ranges, breakdown := parseEstimate(anthropic.Text(resp))
	return Estimate{
		Ranges:    ranges,
		Breakdown: breakdown,
		Source:    EstimateSourceMarker,
	}
}

// parseEstimate coerces the model's JSON into price ranges. Unknown or
// malformed fields become nulls/zeros rather than parse errors.
func parseEstimate(text string) (model.PriceRanges, string) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		zap.L().Warn("estimate: malformed JSON from model", zap.Error(err))
		return model.PriceRanges{}, ""
	}

	ranges := make(model.PriceRanges)
	for _, cond := range model.AllConditions() {
		min, minOK := toFloat(raw[string(cond)+"_min"])
		max, maxOK := toFloat(raw[string(cond)+"_max"])
		if !minOK && !maxOK {
			continue
		}
		if !minOK {
			min = max
		}
		if !maxOK {
			max = min
		}
		if min <= 0 && max <= 0 {
			continue
		}
		ranges[cond] = model.ConditionPricing{
			Min:     min,
			Max:     max,
			Average: math.Round((min + max) / 2),
		}
	}

	breakdown, _ := raw["breakdown"].(string)
	return ranges, breakdown
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// toFloat coerces a decoded JSON value to float64. Nulls and junk return
// false.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		cleaned := strings.TrimPrefix(strings.ReplaceAll(n, ",", ""), "$")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
