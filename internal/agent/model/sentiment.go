package model

// SentimentLabel is the three-way tone classification of a customer message.
type SentimentLabel string

const (
	Positive SentimentLabel = "POSITIVO"
	Negative SentimentLabel = "NEGATIVO"
	Neutral  SentimentLabel = "NEUTRO"
)

// SentimentLabels lists the accepted labels in a stable order.
var SentimentLabels = []SentimentLabel{Positive, Negative, Neutral}

// Valid reports whether l is one of the enumerated labels.
func (l SentimentLabel) Valid() bool {
	switch l {
	case Positive, Negative, Neutral:
		return true
	}
	return false
}

type SentimentResult struct {
	Label      SentimentLabel `json:"sentimento"`
	Confidence float64        `json:"confianca"`
}

// IntegratedInput is the facade payload; sentiment is filled in by the classifier.
type IntegratedInput struct {
	CustomerID      string `json:"idCliente"`
	UserMessage     string `json:"mensagemUsuario"`
	PreferredLocale string `json:"idiomaPreferido,omitempty"`
}

type AssistRequest struct {
	CustomerID      string         `json:"idCliente"`
	UserMessage     string         `json:"mensagemUsuario"`
	Sentiment       SentimentLabel `json:"sentimento"`
	Confidence      float64        `json:"confianca"`
	PreferredLocale string         `json:"idiomaPreferido"`
}

// WithSentiment merges a classifier result into an assist request.
func (in IntegratedInput) WithSentiment(s SentimentResult) AssistRequest {
	return AssistRequest{
		CustomerID:      in.CustomerID,
		UserMessage:     in.UserMessage,
		Sentiment:       s.Label,
		Confidence:      s.Confidence,
		PreferredLocale: in.PreferredLocale,
	}
}

// PolicyTier is the confidence-derived behaviour mode.
type PolicyTier string

const (
	TierProceed PolicyTier = "proceed"
	TierConfirm PolicyTier = "confirm"
	TierRefuse  PolicyTier = "refuse"
)

// Framing is the sentiment-derived tone the reply should open with.
type Framing string

const (
	FramingEmpathy    Framing = "empathy"
	FramingEnthusiasm Framing = "enthusiasm"
	FramingBalanced   Framing = "balanced"
)

type PolicyDecision struct {
	Tier                 PolicyTier `json:"nivel"`
	Framing              Framing    `json:"abordagem"`
	RequiresConfirmation bool       `json:"pedirConfirmacao"`
	SuggestHuman         bool       `json:"sugerirAtendenteHumano"`
}

// AssistResult is what the facade returns to the HTTP layer.
type AssistResult struct {
	RequestID  string         `json:"requestId"`
	Sentiment  SentimentLabel `json:"sentimento"`
	Confidence float64        `json:"confianca"`
	Policy     PolicyDecision `json:"politica"`
	Assistant  string         `json:"assistant"`
}
