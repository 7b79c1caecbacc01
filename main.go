package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/alexwox/research-assistant/internal/agent/graph"
	"github.com/alexwox/research-assistant/internal/agent/model"
	"github.com/alexwox/research-assistant/internal/agent/repo"
	"github.com/alexwox/research-assistant/internal/core"
	errx "github.com/alexwox/research-assistant/internal/core/error"
	"github.com/alexwox/research-assistant/internal/knowledge"
	"github.com/alexwox/research-assistant/internal/search"
	"github.com/alexwox/research-assistant/internal/server"
	logx "github.com/alexwox/research-assistant/pkg/logger"
	pkgredis "github.com/alexwox/research-assistant/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`

	// Infrastructure. Redis is optional; without REDIS_URL conversations
	// live in process memory.
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Research configs
	Synthesis    model.SynthesisModelConfig
	Conversation model.ConversationConfig
	Search       model.SearchConfig
	Corpus       model.CorpusConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(errx.NewConfigurationFailure(err)).Msg("Failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Env)})

	conversationRepo, cleanup := buildConversationRepo(cfg)
	defer cleanup()

	toolTimeout, err := time.ParseDuration(cfg.Conversation.Tools.Timeout)
	if err != nil {
		logx.Fatal().Err(errx.NewConfigurationFailure(err)).
			Str("value", cfg.Conversation.Tools.Timeout).
			Msg("Invalid TOOL_TIMEOUT")
	}

	runner, err := graph.BuildResearchGraph(ctx, graph.Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		Synthesis:        cfg.Synthesis,
		Conversation:     cfg.Conversation,
		ConversationRepo: conversationRepo,
		Search:           search.NewClient(cfg.Search.APIKey, cfg.Search.Depth),
		Knowledge:        knowledge.NewIndex(cfg.Corpus.Dir),
		SearchMaxResults: cfg.Search.MaxResults,
		ToolTimeout:      toolTimeout,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build research graph")
	}

	srv := server.New(server.Config{Addr: cfg.Addr}, runner)
	if err := srv.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("Server exited with error")
	}
}

// buildConversationRepo picks Redis when configured and in-memory otherwise.
func buildConversationRepo(cfg AppConfig) (model.ConversationRepository, func()) {
	if !cfg.Redis.Enabled() {
		logx.Info().Msg("REDIS_URL not set, keeping conversations in memory")
		return repo.NewMemoryConversationRepository(), func() {}
	}

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(errx.NewConfigurationFailure(err)).
			Str("value", cfg.Conversation.TTL).
			Msg("Invalid CONVERSATION_TTL")
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}

	logx.Info().Msg("Connected to Redis")
	return repo.NewRedisConversationRepository(rdb, ttl), func() { _ = rdb.Close() }
}
