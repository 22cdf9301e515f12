// Package sentiment talks to the external sentiment classification service.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/atendimento-virtual/server/internal/agent/model"
	errx "github.com/atendimento-virtual/server/internal/core/error"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

const maxResponseBytes = 64 << 10

// ErrEmptyText is returned before any network call when there is nothing to classify.
var ErrEmptyText = errors.New("text to classify is empty")

// Classifier returns the sentiment of a piece of customer text.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.SentimentResult, error)
}

type HTTPClassifier struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewHTTPClassifier builds a classifier for the given config. A nil client
// uses a fresh http.Client; the per-call timeout always comes from cfg.
func NewHTTPClassifier(cfg model.ClassifierConfig, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClassifier{client: client, url: cfg.URL, timeout: cfg.Timeout}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeResponse accepts both the normalised Portuguese fields and the raw
// pipeline output of the classifier.
type analyzeResponse struct {
	Sentimento *string  `json:"sentimento"`
	Label      *string  `json:"label"`
	Confianca  *float64 `json:"confianca"`
	Score      *float64 `json:"score"`
}

func (r analyzeResponse) label() string {
	if r.Sentimento != nil {
		return *r.Sentimento
	}
	if r.Label != nil {
		return *r.Label
	}
	return ""
}

func (r analyzeResponse) confidence() (float64, bool) {
	if r.Confianca != nil {
		return *r.Confianca, true
	}
	if r.Score != nil {
		return *r.Score, true
	}
	return 0, false
}

// Classify sends one request to the classifier. There is no retry; every
// failure is reported as a ClassificationUnavailable error.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (model.SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return model.SentimentResult{}, ErrEmptyText
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.do(ctx, text)
	if err != nil {
		logx.Warn().Err(err).Str("url", c.url).Msg("sentiment classification failed")
		return model.SentimentResult{}, errx.ClassificationUnavailable(err)
	}
	return res, nil
}

func (c *HTTPClassifier) do(ctx context.Context, text string) (model.SentimentResult, error) {
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.SentimentResult{}, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return model.SentimentResult{}, fmt.Errorf("decode response: %w", err)
	}
	return normalize(parsed)
}

func normalize(r analyzeResponse) (model.SentimentResult, error) {
	label, err := NormalizeLabel(r.label())
	if err != nil {
		return model.SentimentResult{}, err
	}
	conf, ok := r.confidence()
	if !ok {
		return model.SentimentResult{}, errors.New("classifier response has no confidence")
	}
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return model.SentimentResult{}, fmt.Errorf("confidence %v out of range [0,1]", conf)
	}
	return model.SentimentResult{Label: label, Confidence: RoundConfidence(conf)}, nil
}

// NormalizeLabel maps the classifier's native vocabulary onto the three-way enum.
// LABEL_0..2 follow the negative/neutral/positive order of the underlying model.
func NormalizeLabel(raw string) (model.SentimentLabel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "positivo", "label_2":
		return model.Positive, nil
	case "neutral", "neutro", "label_1":
		return model.Neutral, nil
	case "negative", "negativo", "label_0":
		return model.Negative, nil
	}
	return "", fmt.Errorf("unknown sentiment label %q", raw)
}

// RoundConfidence rounds to 4 decimal places.
func RoundConfidence(v float64) float64 {
	return math.Round(v*10000) / 10000
}

var _ Classifier = (*HTTPClassifier)(nil)
