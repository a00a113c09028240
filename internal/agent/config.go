package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/agent/anthropic"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/agent/gemini"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/agent/openai"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/agent/secondme"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/secrets"
)

const (
	ProviderSecondMe  = "secondme"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config selects and tunes the provider.
type Config struct {
	Provider     string         `mapstructure:"provider"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	MaxLogLength int            `mapstructure:"max-log-length"`
	Fallback     FallbackConfig `mapstructure:"fallback"`

	SecondMe  SecondMeConfig `mapstructure:"secondme"`
	Gemini    ModelConfig    `mapstructure:"gemini"`
	OpenAI    ModelConfig    `mapstructure:"openai"`
	Anthropic ModelConfig    `mapstructure:"anthropic"`
}

// FallbackConfig overrides the canned replies used when an agent is silent.
type FallbackConfig struct {
	Founder  string `mapstructure:"founder"`
	Investor string `mapstructure:"investor"`
}

type SecondMeConfig struct {
	APIBase string `mapstructure:"api-base"`
}

// ModelConfig configures a hosted LLM provider.
type ModelConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
	MaxTokens  int64  `mapstructure:"max-tokens"`
}

// RequiresCredential reports whether replies depend on the end user's own
// access token rather than a server-side API key.
func (c Config) RequiresCredential() bool {
	return c.providerName() == ProviderSecondMe
}

func (c Config) providerName() string {
	name := strings.ToLower(strings.TrimSpace(c.Provider))
	if name == "" {
		return ProviderSecondMe
	}
	return name
}

// NewProvider builds the configured provider.
func NewProvider(ctx context.Context, cfg Config, log *zap.Logger) (Provider, error) {
	switch name := cfg.providerName(); name {
	case ProviderSecondMe:
		return secondme.New(cfg.SecondMe.APIBase, log), nil
	case ProviderGemini:
		key, err := secrets.Load(secrets.Source{Name: "gemini api key", Value: cfg.Gemini.APIKey, File: cfg.Gemini.APIKeyFile, Env: "GEMINI_API_KEY"})
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, key, cfg.Gemini.Model)
	case ProviderOpenAI:
		key, err := secrets.Load(secrets.Source{Name: "openai api key", Value: cfg.OpenAI.APIKey, File: cfg.OpenAI.APIKeyFile, Env: "OPENAI_API_KEY"})
		if err != nil {
			return nil, err
		}
		return openai.New(key, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil
	case ProviderAnthropic:
		key, err := secrets.Load(secrets.Source{Name: "anthropic api key", Value: cfg.Anthropic.APIKey, File: cfg.Anthropic.APIKeyFile, Env: "ANTHROPIC_API_KEY"})
		if err != nil {
			return nil, err
		}
		return anthropic.New(key, cfg.Anthropic.Model, cfg.Anthropic.BaseURL, cfg.Anthropic.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", name)
	}
}
