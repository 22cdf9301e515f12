package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendimento-virtual/server/internal/agent/graph/conversations"
	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/repo"
)

func TestNewResponseChatModel_RejectsIncompleteConfig(t *testing.T) {
	_, err := NewResponseChatModel(context.Background(), ChatModelConfig{RespConfig: &model.ResponseModelConfig{}})
	require.Error(t, err)

	_, err = NewResponseChatModel(context.Background(), ChatModelConfig{APIKey: "k"})
	require.Error(t, err)
}

func TestInputConverterPreHandler_ResetsState(t *testing.T) {
	state := &model.AppState{
		PendingUser:  schema.UserMessage("stale"),
		Reply:        schema.AssistantMessage("stale", nil),
		TotalCostUSD: 1,
	}
	in := model.QueryInput{
		Request:  model.AssistRequest{CustomerID: "abc123"},
		Decision: model.PolicyDecision{Tier: model.TierConfirm},
	}

	out, err := NewInputConverterPreHandler()(context.Background(), in, state)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, "abc123", state.CustomerID)
	assert.Equal(t, model.TierConfirm, state.Decision.Tier)
	assert.Nil(t, state.PendingUser)
	assert.Nil(t, state.Reply)
	assert.Zero(t, state.TotalCostUSD)
}

func newManager(t *testing.T) (*conversations.MessagesManager, *repo.MemoryConversationRepository) {
	t.Helper()
	store := repo.NewMemoryConversationRepository([]*schema.Message{schema.SystemMessage("policy")}, 0)
	_, err := store.GetOrInit(context.Background(), "abc123")
	require.NoError(t, err)
	return conversations.NewMessagesManager(store), store
}

func TestResponsePostHandler_CommitsExchangeAndCost(t *testing.T) {
	ctx := context.Background()
	mm, store := newManager(t)

	var got []model.UsageCost
	h := NewResponseChatModelPostHandler(mm, "gemini-2.5-flash", func(c model.UsageCost) { got = append(got, c) })

	state := &model.AppState{CustomerID: "abc123", PendingUser: schema.UserMessage(`{"mensagemUsuario":"oi"}`)}
	reply := &schema.Message{
		Role:         schema.Assistant,
		Content:      "Olá!",
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 100, TotalTokens: 1100}},
	}

	out, err := h(ctx, reply, state)
	require.NoError(t, err)
	assert.Same(t, reply, out)
	assert.Same(t, reply, state.Reply)
	require.Len(t, got, 1)
	assert.Greater(t, state.TotalCostUSD, 0.0)
	assert.Contains(t, out.Extra, "usage_cost")

	n, err := store.GetMessageCount(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestResponsePostHandler_Failures(t *testing.T) {
	ctx := context.Background()
	mm, store := newManager(t)
	h := NewResponseChatModelPostHandler(mm, "gemini-2.5-flash", nil)

	_, err := h(ctx, nil, &model.AppState{CustomerID: "abc123", PendingUser: schema.UserMessage("u")})
	require.Error(t, err)

	_, err = h(ctx, schema.AssistantMessage("ok", nil), &model.AppState{CustomerID: "abc123"})
	require.Error(t, err)

	_, err = h(ctx, schema.AssistantMessage("  ", nil), &model.AppState{CustomerID: "abc123", PendingUser: schema.UserMessage("u")})
	require.Error(t, err)

	_, err = h(ctx, schema.AssistantMessage("ok", nil), &model.AppState{CustomerID: "never-seeded", PendingUser: schema.UserMessage("u")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, repo.ErrConversationNotFound))

	n, err := store.GetMessageCount(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
