package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/atendimento-virtual/server/internal/agent/graph/observers"
	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/policy"
)

//go:embed template/system_prompt.txt
var coreSystemPrompt string

const knowledgeBaseHeader = "Base de conhecimento da loja. Use apenas estas informações sobre produtos, prazos e políticas:\n\n"

// RenderSystem renders the static policy prompt via the Eino prompt component.
func RenderSystem(ctx context.Context, config model.ResponsePromptConfig, th policy.Thresholds) (string, error) {
	labels := make([]string, 0, len(model.SentimentLabels))
	for _, l := range model.SentimentLabels {
		labels = append(labels, fmt.Sprintf("%q", l))
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	vars := map[string]any{
		"BusinessName":      config.BusinessName,
		"Labels":            strings.Join(labels, ", "),
		"ConfirmThreshold":  fmt.Sprintf("%.2f", th.Confirm),
		"ProceedThreshold":  fmt.Sprintf("%.2f", th.Proceed),
		"TierProceed":       model.TierProceed,
		"TierConfirm":       model.TierConfirm,
		"TierRefuse":        model.TierRefuse,
		"FramingEmpathy":    model.FramingEmpathy,
		"FramingEnthusiasm": model.FramingEnthusiasm,
		"FramingBalanced":   model.FramingBalanced,
	}
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "SystemPrompt",
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	}, observers.NewPromptCallbacks())

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

// LoadKnowledgeBase reads the optional knowledge base file. An empty path
// means no knowledge base is configured.
func LoadKnowledgeBase(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read knowledge base: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// SeedTurns returns the system turns every new conversation starts with: the
// policy prompt and, when non-empty, the knowledge base.
func SeedTurns(ctx context.Context, config model.ResponsePromptConfig, th policy.Thresholds) ([]*schema.Message, error) {
	system, err := RenderSystem(ctx, config, th)
	if err != nil {
		return nil, err
	}
	seeds := []*schema.Message{schema.SystemMessage(system)}

	kb, err := LoadKnowledgeBase(config.KnowledgeBasePath)
	if err != nil {
		return nil, err
	}
	if kb != "" {
		seeds = append(seeds, schema.SystemMessage(knowledgeBaseHeader+kb))
	}
	return seeds, nil
}
