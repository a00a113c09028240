package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/agent"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/evaluation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/logger"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/relevance"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/store"
)

// components are the long-lived pieces shared by serve and run.
type components struct {
	store       *store.SQLStore
	provider    agent.Provider
	coordinator *matching.Coordinator
}

func (c *components) Close() error {
	return c.store.Close()
}

// setup builds the logger and config, exiting on failure like every command does.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.Build(logger.Config{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: viper.GetString("log-output"),
		Fields: []zap.Field{zap.String("app", app)},
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

func redacted(c *Config) Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	out.Token = mask(out.Token)
	out.Agent.Gemini.APIKey = mask(out.Agent.Gemini.APIKey)
	out.Agent.OpenAI.APIKey = mask(out.Agent.OpenAI.APIKey)
	out.Agent.Anthropic.APIKey = mask(out.Agent.Anthropic.APIKey)
	return out
}

func newComponents(ctx context.Context, config *Config, log *zap.Logger) (*components, error) {
	st, err := store.Open(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	provider, err := agent.NewProvider(ctx, config.Agent, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating agent provider: %w", err)
	}

	adapter := agent.NewAdapter(provider, config.Agent.Timeout, config.Agent.MaxLogLength, log)
	orch := conversation.NewOrchestrator(adapter, conversation.Config{
		Rounds: config.Matching.Rounds,
		Fallbacks: map[conversation.Role]string{
			conversation.RoleFounder:  config.Agent.Fallback.Founder,
			conversation.RoleInvestor: config.Agent.Fallback.Investor,
		},
	}, conversation.WithLogger(log))

	mcfg := config.Matching.Config
	mcfg.RequireCredential = config.Agent.RequiresCredential()

	coord := matching.NewCoordinator(st, orch, evaluation.New(config.Lexicon), relevance.NewScorer(nil), mcfg,
		matching.WithLogger(log),
	)

	log.Info("components ready",
		zap.String("store", config.Store.Driver),
		zap.String(logger.FieldProvider, provider.Name()),
		zap.String(logger.FieldModel, provider.Model()),
		zap.Int("rounds", orch.Rounds()),
	)

	return &components{store: st, provider: provider, coordinator: coord}, nil
}

// seedIfEmpty loads the demo candidates when the store has none of either role.
func seedIfEmpty(ctx context.Context, st store.Repository, log *zap.Logger) error {
	for _, role := range []conversation.Role{conversation.RoleFounder, conversation.RoleInvestor} {
		existing, err := st.Candidates(ctx, role)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
	}
	return seed(ctx, st, log)
}

func seed(ctx context.Context, st store.Repository, log *zap.Logger) error {
	items, err := directory.Seed()
	if err != nil {
		return err
	}
	for _, c := range items {
		if err := st.UpsertCandidate(ctx, c); err != nil {
			return err
		}
	}
	log.Info("seeded demo candidates", zap.Int("count", len(items)))
	return nil
}
