// Package policy maps a sentiment label and classifier confidence onto the
// behaviour the assistant must follow. The decision is made here, in code;
// the language model only phrases it.
package policy

import (
	"fmt"
	"math"

	"github.com/atendimento-virtual/server/internal/agent/model"
)

const (
	DefaultConfirmThreshold = 0.30
	DefaultProceedThreshold = 0.70
)

// Thresholds are inclusive lower bounds: confidence >= Proceed proceeds,
// confidence >= Confirm asks for confirmation, anything lower refuses.
type Thresholds struct {
	Confirm float64
	Proceed float64
}

// DefaultThresholds returns the 0.30 / 0.70 tiering.
func DefaultThresholds() Thresholds {
	return Thresholds{Confirm: DefaultConfirmThreshold, Proceed: DefaultProceedThreshold}
}

// FromConfig builds thresholds from environment config and validates them.
func FromConfig(cfg model.PolicyConfig) (Thresholds, error) {
	t := Thresholds{Confirm: cfg.ConfirmThreshold, Proceed: cfg.ProceedThreshold}
	return t, t.Validate()
}

func (t Thresholds) Validate() error {
	if t.Confirm < 0 || t.Proceed > 1 || t.Confirm > t.Proceed {
		return fmt.Errorf("policy thresholds must satisfy 0 <= confirm (%.2f) <= proceed (%.2f) <= 1", t.Confirm, t.Proceed)
	}
	return nil
}

// TierFor returns the policy tier for a confidence value. NaN refuses.
func (t Thresholds) TierFor(confidence float64) model.PolicyTier {
	switch {
	case math.IsNaN(confidence):
		return model.TierRefuse
	case confidence >= t.Proceed:
		return model.TierProceed
	case confidence >= t.Confirm:
		return model.TierConfirm
	default:
		return model.TierRefuse
	}
}

// FramingFor returns the opening tone for a sentiment label.
func FramingFor(label model.SentimentLabel) model.Framing {
	switch label {
	case model.Negative:
		return model.FramingEmpathy
	case model.Positive:
		return model.FramingEnthusiasm
	default:
		return model.FramingBalanced
	}
}

// Decide combines tier and framing into the directive carried by the user turn.
func (t Thresholds) Decide(label model.SentimentLabel, confidence float64) model.PolicyDecision {
	tier := t.TierFor(confidence)
	return model.PolicyDecision{
		Tier:                 tier,
		Framing:              FramingFor(label),
		RequiresConfirmation: tier == model.TierConfirm,
		SuggestHuman:         tier == model.TierRefuse,
	}
}
