package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/atendimento-virtual/server/internal/agent/graph/conversations"
	"github.com/atendimento-virtual/server/internal/agent/graph/nodes"
	"github.com/atendimento-virtual/server/internal/agent/graph/observers"
	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/policy"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

// Reply is the assistant's answer together with the policy it was given.
type Reply struct {
	Content  string
	Decision model.PolicyDecision
}

// Runner executes the compiled graph for one customer request.
type Runner interface {
	Invoke(ctx context.Context, req model.AssistRequest) (*Reply, error)
}

// Config holds everything needed to compose the full response graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the ChatModel and MessagesManager.
type Config struct {
	APIKey           string
	BaseURL          string
	ResponseModel    model.ResponseModelConfig
	Thresholds       policy.Thresholds
	ConversationRepo model.ConversationRepository
	// MessagesManager is optional; share it when other callers need the same per-customer locks.
	MessagesManager *conversations.MessagesManager
	OnUsage         model.UsageHook
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModel       einomodel.BaseChatModel
	ModelName       string
	MessagesManager *conversations.MessagesManager
	OnUsage         model.UsageHook
}

// GraphBuilder handles the construction of the assistant graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable   compose.Runnable[model.QueryInput, *schema.Message]
	mm         *conversations.MessagesManager
	thresholds policy.Thresholds
	timeout    time.Duration
}

// NewRunner wraps a compiled graph with per-customer locking, the policy
// decision and the invocation timeout.
func NewRunner(
	runnable compose.Runnable[model.QueryInput, *schema.Message],
	mm *conversations.MessagesManager,
	thresholds policy.Thresholds,
	timeout time.Duration,
) Runner {
	return &graphRunner{runnable: runnable, mm: mm, thresholds: thresholds, timeout: timeout}
}

func (r *graphRunner) Invoke(ctx context.Context, req model.AssistRequest) (*Reply, error) {
	decision := r.thresholds.Decide(req.Sentiment, req.Confidence)

	unlock := r.mm.Lock(req.CustomerID)
	defer unlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.runnable.Invoke(ctx, model.QueryInput{
		Request:  req,
		Decision: decision,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("empty assistant reply")
	}
	return &Reply{Content: strings.TrimSpace(out.Content), Decision: decision}, nil
}

// BuildResponseGraph composes the Gemini ChatModel and MessagesManager, builds the graph, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	mm := cfg.MessagesManager
	if mm == nil {
		if cfg.ConversationRepo == nil {
			return nil, fmt.Errorf("conversation repo is nil")
		}
		mm = conversations.NewMessagesManager(cfg.ConversationRepo)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	cm, err := nodes.NewResponseChatModel(ctx, nodes.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		RespConfig: &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModel:       cm,
		ModelName:       cfg.ResponseModel.Model,
		MessagesManager: mm,
		OnUsage:         cfg.OnUsage,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Str("model", cfg.ResponseModel.Model).Msg("Response graph built successfully")
	return NewRunner(runnable, mm, cfg.Thresholds, cfg.ResponseModel.Timeout), nil
}

// BuildGraph constructs and returns the compiled assistant graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is not initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add input converter node: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeResponseChatModel,
		b.config.ChatModel,
		compose.WithStatePostHandler(nodes.NewResponseChatModelPostHandler(b.config.MessagesManager, b.config.ModelName, b.config.OnUsage)),
	); err != nil {
		return fmt.Errorf("add response chat model node: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeResponseChatModel},
		{nodes.NodeResponseChatModel, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
