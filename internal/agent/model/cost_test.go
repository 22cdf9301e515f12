package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	c, ok := ComputeCost("gemini-2.5-flash", &schema.TokenUsage{
		PromptTokens:     1_000_000,
		CompletionTokens: 100_000,
		TotalTokens:      1_100_000,
	})
	assert.True(t, ok)
	assert.InDelta(t, 0.30, c.InputCost, 1e-9)
	assert.InDelta(t, 0.25, c.OutputCost, 1e-9)
	assert.InDelta(t, 0.55, c.TotalCost, 1e-9)
}

func TestComputeCost_UnknownModelIsFree(t *testing.T) {
	c, ok := ComputeCost("some-local-model", &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 10})
	assert.True(t, ok)
	assert.Zero(t, c.TotalCost)
}

func TestComputeCost_NilUsage(t *testing.T) {
	_, ok := ComputeCost("gemini-2.5-flash", nil)
	assert.False(t, ok)
}

func TestSentimentLabel_Valid(t *testing.T) {
	for _, l := range SentimentLabels {
		assert.True(t, l.Valid(), l)
	}
	assert.False(t, SentimentLabel("positive").Valid())
	assert.False(t, SentimentLabel("").Valid())
}
