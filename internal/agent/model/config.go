package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	Store         string        `envconfig:"CONVERSATION_STORE" default:"memory"`
	TTL           time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	SweepSchedule string        `envconfig:"CONVERSATION_SWEEP_SCHEDULE" default:"@every 5m"`
}

type ResponseModelConfig struct {
	Model       string        `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int           `envconfig:"RESPONSE_MAX_TOKENS" default:"250"`
	Temperature float32       `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`
	Timeout     time.Duration `envconfig:"ASSISTANT_TIMEOUT" default:"10s"`
}

type ClassifierConfig struct {
	URL     string        `envconfig:"CLASSIFIER_URL" default:"http://localhost:8001/analyze"`
	Timeout time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"5s"`
}

type PolicyConfig struct {
	ConfirmThreshold float64 `envconfig:"POLICY_CONFIRM_THRESHOLD" default:"0.30"`
	ProceedThreshold float64 `envconfig:"POLICY_PROCEED_THRESHOLD" default:"0.70"`
}

type ResponsePromptConfig struct {
	BusinessName      string `envconfig:"PROMPT_BUSINESS_NAME" default:"Loja Online"`
	KnowledgeBasePath string `envconfig:"KNOWLEDGE_BASE_PATH"`
}

type ServerConfig struct {
	Port               int      `envconfig:"PORT" default:"8090"`
	APIKey             string   `envconfig:"API_KEY"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"10"`
}
