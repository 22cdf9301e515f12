package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/atendimento-virtual/server/internal/agent/graph"
	"github.com/atendimento-virtual/server/internal/agent/graph/conversations"
	"github.com/atendimento-virtual/server/internal/agent/graph/prompts"
	"github.com/atendimento-virtual/server/internal/agent/model"
	"github.com/atendimento-virtual/server/internal/agent/orchestrator"
	"github.com/atendimento-virtual/server/internal/agent/policy"
	"github.com/atendimento-virtual/server/internal/agent/repo"
	"github.com/atendimento-virtual/server/internal/agent/sentiment"
	"github.com/atendimento-virtual/server/internal/core"
	"github.com/atendimento-virtual/server/internal/gateway"
	"github.com/atendimento-virtual/server/internal/metrics"
	"github.com/atendimento-virtual/server/internal/scheduler"
	logx "github.com/atendimento-virtual/server/pkg/logger"
	pkgredis "github.com/atendimento-virtual/server/pkg/redis"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

// AppConfig defines all configurable parameters of the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Server model.ServerConfig
	Redis  pkgredis.Config

	// LLM provider; required by serve only.
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierConfig
	Policy       model.PolicyConfig
	Response     model.ResponseModelConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "atendimento",
		Short:         "Sentiment-aware customer service assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "Path to a .env file (optional)")
	root.AddCommand(serveCmd(), classifyCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (AppConfig, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	envErr := godotenv.Load(envFile)

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})
	if envErr != nil {
		logx.Debug().Err(envErr).Str("file", envFile).Msg("no .env file loaded")
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if strings.TrimSpace(cfg.APIKey) == "" {
				logx.Fatal().Msg("GEMINI_API_KEY is not set")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg AppConfig) error {
	thresholds, err := policy.FromConfig(cfg.Policy)
	if err != nil {
		return err
	}

	seeds, err := prompts.SeedTurns(ctx, cfg.Prompt, thresholds)
	if err != nil {
		return fmt.Errorf("build seed turns: %w", err)
	}

	store, closeStore, err := newConversationStore(cfg, seeds)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	mm := conversations.NewMessagesManager(store)

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		ResponseModel:    cfg.Response,
		Thresholds:       thresholds,
		ConversationRepo: store,
		MessagesManager:  mm,
		OnUsage:          m.ObserveUsage,
	})
	if err != nil {
		return fmt.Errorf("build response graph: %w", err)
	}

	classifier := sentiment.NewHTTPClassifier(cfg.Classifier, nil)
	facade := orchestrator.New(classifier, runner, m)

	sched := scheduler.New()
	if cfg.Conversation.Store == storeMemory && cfg.Conversation.TTL > 0 {
		if err := sched.RegisterJob(&scheduler.ConversationSweepJob{
			Store:        store,
			ScheduleExpr: cfg.Conversation.SweepSchedule,
			OnEvicted:    m.ObserveEvicted,
		}); err != nil {
			return err
		}
	}
	if err := sched.Start(); err != nil {
		return err
	}

	gw := gateway.New(gateway.Config{
		Server:    cfg.Server,
		StoreName: cfg.Conversation.Store,
	}, facade, store, mm, m)
	if err := gw.Start(); err != nil {
		_ = sched.Stop(context.Background())
		return err
	}

	logx.Info().
		Str("environment", cfg.Environment.String()).
		Str("store", cfg.Conversation.Store).
		Str("model", cfg.Response.Model).
		Bool("auth", cfg.Server.APIKey != "").
		Msg("service started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("gateway shutdown failed")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("scheduler shutdown failed")
	}
	logx.Info().Msg("service stopped")
	return nil
}

func newConversationStore(cfg AppConfig, seeds []*schema.Message) (model.ConversationRepository, func(), error) {
	switch cfg.Conversation.Store {
	case storeMemory, "":
		return repo.NewMemoryConversationRepository(seeds, cfg.Conversation.TTL), func() {}, nil
	case storeRedis:
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, nil, fmt.Errorf("initialise redis client: %w", err)
		}
		logx.Info().Msg("connected to redis")

		store, err := repo.NewRedisConversationRepository(rdb, seeds, cfg.Conversation.TTL)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown CONVERSATION_STORE %q (want %s or %s)", cfg.Conversation.Store, storeMemory, storeRedis)
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Send one text to the sentiment classifier and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			classifier := sentiment.NewHTTPClassifier(cfg.Classifier, nil)
			res, err := classifier.Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
