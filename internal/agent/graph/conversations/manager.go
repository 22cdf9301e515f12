package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/atendimento-virtual/server/internal/agent/model"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	locks            *KeyedMutex
}

func NewMessagesManager(conversationRepo model.ConversationRepository) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		locks:            NewKeyedMutex(),
	}
}

// Lock serialises the read-modify-append sequence of one customer.
func (cm *MessagesManager) Lock(customerID string) (unlock func()) {
	return cm.locks.Lock(customerID)
}

// userPayload is the structured user turn the system prompt teaches the model to read.
type userPayload struct {
	CustomerID      string               `json:"idCliente"`
	UserMessage     string               `json:"mensagemUsuario"`
	Sentiment       model.SentimentLabel `json:"sentimento"`
	Confidence      float64              `json:"confianca"`
	PreferredLocale string               `json:"idiomaPreferido"`
	Policy          model.PolicyDecision `json:"politica"`
}

// BuildUserTurn renders the request and its policy decision as the JSON user turn.
func BuildUserTurn(req model.AssistRequest, decision model.PolicyDecision) (*schema.Message, error) {
	b, err := json.Marshal(userPayload{
		CustomerID:      req.CustomerID,
		UserMessage:     req.UserMessage,
		Sentiment:       req.Sentiment,
		Confidence:      req.Confidence,
		PreferredLocale: req.PreferredLocale,
		Policy:          decision,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal user turn: %w", err)
	}
	return schema.UserMessage(string(b)), nil
}

// BuildResponseContext returns the customer's history (seeded on first use)
// followed by the pending user turn, ready for the chat model.
func (cm *MessagesManager) BuildResponseContext(ctx context.Context, customerID string, pending *schema.Message) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.GetOrInit(ctx, customerID)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, history.Len()+1)
	messages = append(messages, history.Messages...)
	messages = append(messages, pending)
	return messages, nil
}

// SaveExchange commits the user turn and the assistant reply together.
func (cm *MessagesManager) SaveExchange(ctx context.Context, customerID string, user *schema.Message, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("empty assistant reply")
	}
	if err := cm.conversationRepo.Append(ctx, customerID, user, schema.AssistantMessage(content, nil)); err != nil {
		return err
	}

	if n, err := cm.conversationRepo.GetMessageCount(ctx, customerID); err == nil {
		logx.Debug().Str("customer_id", customerID).Int("turns", n).Msg("conversation extended")
	}
	return nil
}
