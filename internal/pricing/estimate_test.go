package pricing

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labmarket/pricewatch/internal/model"
	"github.com/labmarket/pricewatch/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestEstimatorEstimate(t *testing.T) {
	ctx := context.Background()
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", ctx, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse(`{"new_min": 40000, "new_max": 55000, "used_min": 12000, "used_max": 20000, "breakdown": "Based on recent resale activity."}`), nil).
		Once()

	est := NewEstimator(ai, "claude-sonnet-4-20250514").Estimate(ctx, "Agilent", "7890B", "gas chromatograph", "")

	assert.Equal(t, "AI estimate", est.Source)
	assert.Equal(t, "Based on recent resale activity.", est.Breakdown)
	require.Len(t, est.Ranges, 2)
	assert.Equal(t, 40000.0, est.Ranges[model.ConditionNew].Min)
	assert.Equal(t, 55000.0, est.Ranges[model.ConditionNew].Max)
	assert.Equal(t, 47500.0, est.Ranges[model.ConditionNew].Average)
	assert.Equal(t, 16000.0, est.Ranges[model.ConditionUsed].Average)
	ai.AssertExpectations(t)
}

func TestEstimatorConditionFocusInPrompt(t *testing.T) {
	ctx := context.Background()
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", ctx, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 &&
			req.Messages[0].Role == "user" &&
			strings.Contains(req.Messages[0].Content, "cares most about refurbished condition")
	})).Return(textResponse(`{"used_min": 100, "used_max": 200}`), nil).Once()

	NewEstimator(ai, "m").Estimate(ctx, "Waters", "2695", "hplc", model.ConditionRefurbished)
	ai.AssertExpectations(t)
}

func TestEstimatorModelFailure(t *testing.T) {
	ctx := context.Background()
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", ctx, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(nil, eris.New("anthropic: create message: overloaded")).
		Once()

	est := NewEstimator(ai, "m").Estimate(ctx, "Agilent", "7890B", "", "")

	assert.Empty(t, est.Ranges)
	assert.Equal(t, "AI estimate unavailable", est.Source)
	ai.AssertExpectations(t)
}

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantRanges    model.PriceRanges
		wantBreakdown string
	}{
		{
			name: "plain JSON",
			text: `{"used_min": 1000, "used_max": 2000, "breakdown": "ok"}`,
			wantRanges: model.PriceRanges{
				model.ConditionUsed: {Min: 1000, Max: 2000, Average: 1500},
			},
			wantBreakdown: "ok",
		},
		{
			name: "fenced JSON",
			text: "```json\n{\"new_min\": 500, \"new_max\": 700}\n```",
			wantRanges: model.PriceRanges{
				model.ConditionNew: {Min: 500, Max: 700, Average: 600},
			},
		},
		{
			name: "prose around object",
			text: `Here is my estimate: {"used_min": 300, "used_max": 300} Hope this helps.`,
			wantRanges: model.PriceRanges{
				model.ConditionUsed: {Min: 300, Max: 300, Average: 300},
			},
		},
		{
			name: "min backfilled from max",
			text: `{"refurbished_max": 8000}`,
			wantRanges: model.PriceRanges{
				model.ConditionRefurbished: {Min: 8000, Max: 8000, Average: 8000},
			},
		},
		{
			name: "max backfilled from min",
			text: `{"used_min": 450, "used_max": null}`,
			wantRanges: model.PriceRanges{
				model.ConditionUsed: {Min: 450, Max: 450, Average: 450},
			},
		},
		{
			name: "string numbers with dollar signs",
			text: `{"used_min": "$1,200", "used_max": "2,400"}`,
			wantRanges: model.PriceRanges{
				model.ConditionUsed: {Min: 1200, Max: 2400, Average: 1800},
			},
		},
		{
			name:       "non-positive dropped",
			text:       `{"used_min": 0, "used_max": -5}`,
			wantRanges: model.PriceRanges{},
		},
		{
			name:       "all nulls",
			text:       `{"new_min": null, "new_max": null, "used_min": null, "used_max": null}`,
			wantRanges: model.PriceRanges{},
		},
		{
			name:       "malformed",
			text:       `I cannot provide pricing for this item.`,
			wantRanges: model.PriceRanges{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, breakdown := parseEstimate(tt.text)
			assert.Equal(t, tt.wantRanges, ranges)
			assert.Equal(t, tt.wantBreakdown, breakdown)
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare object", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "anonymous fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "surrounding prose", in: `Sure: {"a": 1} done`, want: `{"a": 1}`},
		{name: "no object", in: "no json here", want: "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{name: "float", in: 1234.5, want: 1234.5, wantOK: true},
		{name: "dollar string", in: "$1,234.56", want: 1234.56, wantOK: true},
		{name: "plain string", in: "500", want: 500, wantOK: true},
		{name: "nil", in: nil, wantOK: false},
		{name: "junk string", in: "n/a", wantOK: false},
		{name: "bool", in: true, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toFloat(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
