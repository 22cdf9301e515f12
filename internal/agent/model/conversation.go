package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// GetOrInit returns the customer's history, seeding it with the configured
	// system turns when none exists yet. Seeding happens exactly once.
	GetOrInit(ctx context.Context, customerID string) (*ConversationHistory, error)

	// Append adds turns to an existing history, preserving their order.
	Append(ctx context.Context, customerID string, turns ...*schema.Message) error

	// LoadHistory retrieves the history without seeding it.
	LoadHistory(ctx context.Context, customerID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a customer
	ClearHistory(ctx context.Context, customerID string) error

	// GetMessageCount returns the number of messages in the conversation
	GetMessageCount(ctx context.Context, customerID string) (int, error)

	// SweepExpired evicts histories idle since before now-TTL and reports how many were removed.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	CustomerID string
	Messages   []*schema.Message
}

// Len returns the number of turns, seed turns included.
func (h *ConversationHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Messages)
}

// CloneMessages copies turns so stored history cannot be mutated through returned pointers.
func CloneMessages(msgs []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, &schema.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
