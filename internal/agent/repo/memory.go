package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/atendimento-virtual/server/internal/agent/model"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

type memoryConversation struct {
	messages []*schema.Message
	touched  time.Time
}

// MemoryConversationRepository keeps histories in process memory. Histories
// idle for longer than ttl are dropped by SweepExpired; ttl <= 0 keeps them
// for the life of the process.
type MemoryConversationRepository struct {
	mu            sync.Mutex
	seeds         []*schema.Message
	ttl           time.Duration
	now           func() time.Time
	conversations map[string]*memoryConversation
}

func NewMemoryConversationRepository(seeds []*schema.Message, ttl time.Duration) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		seeds:         model.CloneMessages(seeds),
		ttl:           ttl,
		now:           time.Now,
		conversations: make(map[string]*memoryConversation),
	}
}

func (r *MemoryConversationRepository) expired(c *memoryConversation, now time.Time) bool {
	return r.ttl > 0 && now.Sub(c.touched) > r.ttl
}

func (r *MemoryConversationRepository) GetOrInit(_ context.Context, customerID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c, ok := r.conversations[customerID]
	if ok && r.expired(c, now) {
		delete(r.conversations, customerID)
		ok = false
	}
	if !ok {
		c = &memoryConversation{messages: model.CloneMessages(r.seeds)}
		r.conversations[customerID] = c
		logx.Debug().Str("customer_id", customerID).Int("seed_turns", len(c.messages)).Msg("seeded conversation")
	}
	c.touched = now

	return &model.ConversationHistory{CustomerID: customerID, Messages: model.CloneMessages(c.messages)}, nil
}

func (r *MemoryConversationRepository) Append(_ context.Context, customerID string, turns ...*schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[customerID]
	if !ok {
		return fmt.Errorf("append to %q: %w", customerID, ErrConversationNotFound)
	}
	c.messages = append(c.messages, model.CloneMessages(validTurns(turns))...)
	c.touched = r.now()
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, customerID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[customerID]
	if !ok || r.expired(c, r.now()) {
		return &model.ConversationHistory{CustomerID: customerID, Messages: []*schema.Message{}}, nil
	}
	return &model.ConversationHistory{CustomerID: customerID, Messages: model.CloneMessages(c.messages)}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conversations, customerID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, customerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[customerID]
	if !ok || r.expired(c, r.now()) {
		return 0, nil
	}
	return len(c.messages), nil
}

func (r *MemoryConversationRepository) SweepExpired(_ context.Context, now time.Time) (int, error) {
	if r.ttl <= 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.conversations {
		if r.expired(c, now) {
			delete(r.conversations, id)
			removed++
		}
	}
	return removed, nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
