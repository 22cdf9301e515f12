package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendimento-virtual/server/internal/agent/graph"
	"github.com/atendimento-virtual/server/internal/agent/graph/conversations"
	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/policy"
	"github.com/atendimento-virtual/server/internal/agent/repo"
	"github.com/atendimento-virtual/server/internal/agent/sentiment"
	"github.com/atendimento-virtual/server/internal/core"
	errx "github.com/atendimento-virtual/server/internal/core/error"
)

type stubClassifier struct {
	result model.SentimentResult
	err    error
	calls  int
}

func (s *stubClassifier) Classify(context.Context, string) (model.SentimentResult, error) {
	s.calls++
	return s.result, s.err
}

type stubRunner struct {
	reply *graph.Reply
	err   error
	got   []model.AssistRequest
}

func (s *stubRunner) Invoke(_ context.Context, req model.AssistRequest) (*graph.Reply, error) {
	s.got = append(s.got, req)
	return s.reply, s.err
}

type echoChatModel struct{ reply string }

func (m *echoChatModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *echoChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, in, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

type countingRecorder struct {
	sentiments []model.SentimentLabel
	tiers      []model.PolicyTier
	upstreams  map[string]int
	failures   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{upstreams: map[string]int{}, failures: map[string]int{}}
}

func (r *countingRecorder) ObserveSentiment(l model.SentimentLabel) {
	r.sentiments = append(r.sentiments, l)
}

func (r *countingRecorder) ObservePolicy(t model.PolicyTier) { r.tiers = append(r.tiers, t) }

func (r *countingRecorder) ObserveUpstream(u string, _ time.Time, err error) {
	r.upstreams[u]++
	if err != nil {
		r.failures[u]++
	}
}

const scenarioBody = `{"idCliente":"abc123","mensagemUsuario":"Produto veio com defeito","idiomaPreferido":"pt-BR"}`

func TestIntegrated_NegativeScenarioEndToEnd(t *testing.T) {
	ctx := core.WithRequestID(context.Background(), "req-1")
	store := repo.NewMemoryConversationRepository([]*schema.Message{schema.SystemMessage("policy")}, 0)
	mm := conversations.NewMessagesManager(store)
	runnable, err := graph.BuildGraph(ctx, &graph.GraphConfig{
		ChatModel:       &echoChatModel{reply: "Sinto muito pelo defeito. Posso iniciar a troca agora."},
		ModelName:       "gemini-2.5-flash",
		MessagesManager: mm,
	})
	require.NoError(t, err)

	classifier := &stubClassifier{result: model.SentimentResult{Label: model.Negative, Confidence: 0.92}}
	rec := newCountingRecorder()
	o := New(classifier, graph.NewRunner(runnable, mm, policy.DefaultThresholds(), time.Second), rec)

	res, err := o.Integrated(ctx, []byte(scenarioBody))
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, model.Negative, res.Sentiment)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, model.TierProceed, res.Policy.Tier)
	assert.Equal(t, model.FramingEmpathy, res.Policy.Framing)
	assert.NotEmpty(t, res.Assistant)

	n, err := store.GetMessageCount(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []model.SentimentLabel{model.Negative}, rec.sentiments)
	assert.Equal(t, []model.PolicyTier{model.TierProceed}, rec.tiers)
	assert.Equal(t, 1, rec.upstreams["classifier"])
	assert.Equal(t, 1, rec.upstreams["assistant"])
}

func TestIntegrated_ValidationStopsBeforeClassifier(t *testing.T) {
	classifier := &stubClassifier{}
	runner := &stubRunner{}
	o := New(classifier, runner, nil)

	_, err := o.Integrated(context.Background(), []byte(`{"mensagemUsuario":""}`))
	require.Error(t, err)
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))
	assert.Zero(t, classifier.calls)
	assert.Empty(t, runner.got)
}

func TestIntegrated_ClassifierTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	classifier := sentiment.NewHTTPClassifier(model.ClassifierConfig{URL: srv.URL, Timeout: 20 * time.Millisecond}, srv.Client())
	runner := &stubRunner{}
	rec := newCountingRecorder()
	o := New(classifier, runner, rec)

	_, err := o.Integrated(context.Background(), []byte(scenarioBody))
	require.Error(t, err)

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, "Falha na análise de sentimento", appErr.Message)
	assert.Empty(t, runner.got, "assistant must not be called")
	assert.Equal(t, 1, rec.failures["classifier"])
}

func TestIntegrated_ClassifierPlainErrorIsWrapped(t *testing.T) {
	o := New(&stubClassifier{err: errors.New("boom")}, &stubRunner{}, nil)

	_, err := o.Integrated(context.Background(), []byte(scenarioBody))
	require.Error(t, err)
	assert.Equal(t, errx.KindClassificationUnavailable, errx.KindOf(err))
}

func TestAssist_PassesSuppliedSentiment(t *testing.T) {
	runner := &stubRunner{reply: &graph.Reply{
		Content:  "Posso confirmar se é isso que você precisa?",
		Decision: model.PolicyDecision{Tier: model.TierConfirm, Framing: model.FramingBalanced, RequiresConfirmation: true},
	}}
	o := New(&stubClassifier{}, runner, nil)

	res, err := o.Assist(context.Background(), []byte(`{"idCliente":"abc123","mensagemUsuario":"Quero trocar","sentimento":"NEUTRO","confianca":0.5}`))
	require.NoError(t, err)
	require.Len(t, runner.got, 1)
	assert.Equal(t, model.Neutral, runner.got[0].Sentiment)
	assert.Equal(t, 0.5, runner.got[0].Confidence)
	assert.Equal(t, "pt-BR", runner.got[0].PreferredLocale)
	assert.Equal(t, model.TierConfirm, res.Policy.Tier)
	assert.NotEmpty(t, res.RequestID)
}

func TestAssist_CompletionFailure(t *testing.T) {
	o := New(&stubClassifier{}, &stubRunner{err: errors.New("model down")}, nil)

	_, err := o.Assist(context.Background(), []byte(`{"idCliente":"abc123","mensagemUsuario":"oi","sentimento":"POSITIVO","confianca":0.9}`))
	require.Error(t, err)

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, errx.KindCompletionUnavailable, appErr.Kind)
}

func TestAssist_StorageFailurePassesThrough(t *testing.T) {
	storeErr := errx.WrapRedis(errors.New("connection refused"))
	o := New(&stubClassifier{}, &stubRunner{err: storeErr}, nil)

	_, err := o.Assist(context.Background(), []byte(`{"idCliente":"abc123","mensagemUsuario":"oi","sentimento":"POSITIVO","confianca":0.9}`))
	require.Error(t, err)
	assert.Equal(t, errx.KindStorage, errx.KindOf(err))
}
