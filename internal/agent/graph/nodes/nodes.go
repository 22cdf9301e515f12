package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/atendimento-virtual/server/internal/agent/graph/conversations"
	"github.com/atendimento-virtual/server/internal/agent/model"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

const (
	NodeInputConverter    = "InputConverter"
	NodeResponseChatModel = "ResponseChatModel"
)

// NewInputConverterPreHandler copies the request identity and decision into state.
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.CustomerID = in.Request.CustomerID
		s.Decision = in.Decision
		s.PendingUser = nil
		s.Reply = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode loads (or seeds) the customer's history and appends
// the pending user turn. Nothing is persisted here.
func NewInputConverterNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) ([]*schema.Message, error) {
		pending, err := conversations.BuildUserTurn(in.Request, in.Decision)
		if err != nil {
			return nil, err
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.PendingUser = pending
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		messages, err := mm.BuildResponseContext(ctx, in.Request.CustomerID, pending)
		if err != nil {
			return nil, fmt.Errorf("build response context: %w", err)
		}

		logx.Debug().
			Str("customer_id", in.Request.CustomerID).
			Str("policy_tier", string(in.Decision.Tier)).
			Str("framing", string(in.Decision.Framing)).
			Int("context_turns", len(messages)).
			Msg("response context ready")
		return messages, nil
	})
}

// NewResponseChatModelPostHandler records usage cost and commits the user
// turn and the reply. Returning an error here leaves history untouched.
func NewResponseChatModelPostHandler(
	mm *conversations.MessagesManager,
	modelName string,
	onUsage model.UsageHook,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("chat model returned no message")
		}

		if out.ResponseMeta != nil {
			if cost, ok := model.ComputeCost(modelName, out.ResponseMeta.Usage); ok {
				state.TotalCostUSD += cost.TotalCost
				if out.Extra == nil {
					out.Extra = map[string]any{}
				}
				out.Extra["usage_cost"] = cost
				logx.Debug().
					Str("customer_id", state.CustomerID).
					Str("node", NodeResponseChatModel).
					Str("model", modelName).
					Int("prompt_tokens", cost.PromptTokens).
					Int("completion_tokens", cost.CompletionTokens).
					Float64("total_cost_usd", cost.TotalCost).
					Msg("LLM usage")
				if onUsage != nil {
					onUsage(cost)
				}
			}
		}

		if state.PendingUser == nil {
			return nil, fmt.Errorf("missing pending user turn in state")
		}
		if err := mm.SaveExchange(ctx, state.CustomerID, state.PendingUser, out.Content); err != nil {
			logx.Error().
				Str("customer_id", state.CustomerID).
				Err(err).
				Msg("Error saving conversation exchange")
			return nil, err
		}

		state.Reply = out
		return out, nil
	}
}
