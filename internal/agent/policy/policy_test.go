package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendimento-virtual/server/internal/agent/model"
)

func TestTierFor(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		confidence float64
		want       model.PolicyTier
	}{
		{0, model.TierRefuse},
		{0.1, model.TierRefuse},
		{0.2999, model.TierRefuse},
		{0.30, model.TierConfirm},
		{0.5, model.TierConfirm},
		{0.6999, model.TierConfirm},
		{0.70, model.TierProceed},
		{0.92, model.TierProceed},
		{1, model.TierProceed},
		{math.NaN(), model.TierRefuse},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.TierFor(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestFramingFor(t *testing.T) {
	assert.Equal(t, model.FramingEmpathy, FramingFor(model.Negative))
	assert.Equal(t, model.FramingEnthusiasm, FramingFor(model.Positive))
	assert.Equal(t, model.FramingBalanced, FramingFor(model.Neutral))
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()

	d := th.Decide(model.Negative, 0.1)
	assert.Equal(t, model.TierRefuse, d.Tier)
	assert.Equal(t, model.FramingEmpathy, d.Framing)
	assert.True(t, d.SuggestHuman)
	assert.False(t, d.RequiresConfirmation)

	d = th.Decide(model.Positive, 0.5)
	assert.Equal(t, model.TierConfirm, d.Tier)
	assert.True(t, d.RequiresConfirmation)
	assert.False(t, d.SuggestHuman)

	d = th.Decide(model.Neutral, 0.9)
	assert.Equal(t, model.TierProceed, d.Tier)
	assert.Equal(t, model.FramingBalanced, d.Framing)
}

func TestFromConfig(t *testing.T) {
	th, err := FromConfig(model.PolicyConfig{ConfirmThreshold: 0.60, ProceedThreshold: 0.85})
	require.NoError(t, err)
	assert.Equal(t, model.TierConfirm, th.TierFor(0.84))
	assert.Equal(t, model.TierProceed, th.TierFor(0.85))

	_, err = FromConfig(model.PolicyConfig{ConfirmThreshold: 0.9, ProceedThreshold: 0.5})
	assert.Error(t, err)
	_, err = FromConfig(model.PolicyConfig{ConfirmThreshold: -0.1, ProceedThreshold: 0.5})
	assert.Error(t, err)
}
