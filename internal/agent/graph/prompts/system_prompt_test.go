package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/policy"
)

func TestRenderSystem(t *testing.T) {
	out, err := RenderSystem(context.Background(), model.ResponsePromptConfig{BusinessName: "Loja Teste"}, policy.DefaultThresholds())
	require.NoError(t, err)

	assert.Contains(t, out, "Loja Teste")
	assert.Contains(t, out, `"POSITIVO", "NEGATIVO", "NEUTRO"`)
	assert.Contains(t, out, `"refuse" (confiança < 0.30)`)
	assert.Contains(t, out, `"proceed" (confiança >= 0.70)`)
	assert.NotContains(t, out, "{{")
}

func TestSeedTurns_WithoutKnowledgeBase(t *testing.T) {
	seeds, err := SeedTurns(context.Background(), model.ResponsePromptConfig{BusinessName: "Loja"}, policy.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, schema.System, seeds[0].Role)
}

func TestSeedTurns_WithKnowledgeBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.md")
	require.NoError(t, os.WriteFile(path, []byte("Frete grátis acima de R$ 200.\n"), 0o600))

	seeds, err := SeedTurns(context.Background(), model.ResponsePromptConfig{
		BusinessName:      "Loja",
		KnowledgeBasePath: path,
	}, policy.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, schema.System, seeds[1].Role)
	assert.Contains(t, seeds[1].Content, "Frete grátis acima de R$ 200.")
}

func TestSeedTurns_BlankKnowledgeBaseIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.md")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	seeds, err := SeedTurns(context.Background(), model.ResponsePromptConfig{KnowledgeBasePath: path}, policy.DefaultThresholds())
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestSeedTurns_MissingKnowledgeBaseFile(t *testing.T) {
	_, err := SeedTurns(context.Background(), model.ResponsePromptConfig{
		KnowledgeBasePath: filepath.Join(t.TempDir(), "missing.md"),
	}, policy.DefaultThresholds())
	assert.Error(t, err)
}
