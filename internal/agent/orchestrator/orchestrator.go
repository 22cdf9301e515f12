// Package orchestrator chains validation, sentiment classification and the
// assistant graph behind the two public operations.
package orchestrator

import (
	"context"
	"time"

	"github.com/atendimento-virtual/server/internal/agent/graph"
	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/sentiment"
	"github.com/atendimento-virtual/server/internal/agent/validate"
	"github.com/atendimento-virtual/server/internal/core"
	errx "github.com/atendimento-virtual/server/internal/core/error"
	"github.com/atendimento-virtual/server/internal/metrics"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

// Recorder receives per-stage observations. *metrics.Metrics implements it.
type Recorder interface {
	ObserveSentiment(label model.SentimentLabel)
	ObservePolicy(tier model.PolicyTier)
	ObserveUpstream(upstream string, started time.Time, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSentiment(model.SentimentLabel)    {}
func (nopRecorder) ObservePolicy(model.PolicyTier)           {}
func (nopRecorder) ObserveUpstream(string, time.Time, error) {}

type Orchestrator struct {
	classifier sentiment.Classifier
	runner     graph.Runner
	recorder   Recorder
}

// New wires the facade. A nil recorder disables observations.
func New(classifier sentiment.Classifier, runner graph.Runner, recorder Recorder) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Orchestrator{classifier: classifier, runner: runner, recorder: recorder}
}

// Integrated validates the payload, classifies the message and asks the
// assistant for a reply. Each stage failure stops the chain.
func (o *Orchestrator) Integrated(ctx context.Context, raw []byte) (*model.AssistResult, error) {
	in, err := validate.ValidateIntegrated(raw)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	sent, err := o.classifier.Classify(ctx, in.UserMessage)
	o.recorder.ObserveUpstream(metrics.UpstreamClassifier, started, err)
	if err != nil {
		if errx.KindOf(err) != errx.KindClassificationUnavailable {
			err = errx.ClassificationUnavailable(err)
		}
		return nil, err
	}
	o.recorder.ObserveSentiment(sent.Label)

	logx.Debug().
		Str("customer_id", in.CustomerID).
		Str("sentiment", string(sent.Label)).
		Float64("confidence", sent.Confidence).
		Msg("message classified")

	return o.assist(ctx, in.WithSentiment(sent))
}

// Assist runs the assistant on a request that already carries sentiment.
func (o *Orchestrator) Assist(ctx context.Context, raw []byte) (*model.AssistResult, error) {
	req, err := validate.ValidateAssist(raw)
	if err != nil {
		return nil, err
	}
	o.recorder.ObserveSentiment(req.Sentiment)
	return o.assist(ctx, req)
}

func (o *Orchestrator) assist(ctx context.Context, req model.AssistRequest) (*model.AssistResult, error) {
	started := time.Now()
	reply, err := o.runner.Invoke(ctx, req)
	o.recorder.ObserveUpstream(metrics.UpstreamAssistant, started, err)
	if err != nil {
		logx.Error().Err(err).Str("customer_id", req.CustomerID).Msg("assistant call failed")
		if errx.KindOf(err) == errx.KindStorage {
			return nil, err
		}
		return nil, errx.CompletionUnavailable(err)
	}
	o.recorder.ObservePolicy(reply.Decision.Tier)

	return &model.AssistResult{
		RequestID:  core.RequestIDFrom(ctx),
		Sentiment:  req.Sentiment,
		Confidence: req.Confidence,
		Policy:     reply.Decision,
		Assistant:  reply.Content,
	}, nil
}
