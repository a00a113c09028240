package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/agent"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/evaluation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/server"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/store"
)

const (
	app       = "pitchmatch"
	envPrefix = "PITCHMATCH"
)

type Config struct {
	Server    server.Config      `mapstructure:"server"`
	Store     store.Config       `mapstructure:"store"`
	Matching  MatchingConfig     `mapstructure:"matching"`
	Agent     agent.Config       `mapstructure:"agent"`
	Lexicon   evaluation.Lexicon `mapstructure:"lexicon"`
	Token     string             `mapstructure:"token"`
	TokenFile string             `mapstructure:"token-file"`
}

type MatchingConfig struct {
	Rounds          int `mapstructure:"rounds"`
	matching.Config `mapstructure:",squash"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "pitchmatch lets founder and investor agents talk to each other and ranks who fits",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is pitchmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-output", "stdout", "where logs go: stdout, stderr or a file path")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-output", rootCmd.PersistentFlags().Lookup("log-output"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.credential-cookie", server.DefaultCredentialCookie)
	viper.SetDefault("server.shutdown-timeout", 10*time.Second)
	viper.SetDefault("server.keep-alive", 15*time.Second)
	viper.SetDefault("server.allowed-origins", []string{"*"})

	viper.SetDefault("store.driver", store.DriverSQLite)
	viper.SetDefault("store.dsn", "./data/pitchmatch.db")

	viper.SetDefault("matching.rounds", 3)
	viper.SetDefault("matching.shortlist-size", 3)
	viper.SetDefault("matching.result-limit", matching.DefaultResultLimit)
	viper.SetDefault("matching.exclude", []string{})
	viper.SetDefault("matching.exclude-file", "")

	viper.SetDefault("agent.provider", agent.ProviderSecondMe)
	viper.SetDefault("agent.timeout", 30*time.Second)
	viper.SetDefault("agent.max-log-length", 200)
	viper.SetDefault("agent.fallback.founder", "")
	viper.SetDefault("agent.fallback.investor", "")
	viper.SetDefault("agent.secondme.api-base", "")
	for _, p := range []string{agent.ProviderGemini, agent.ProviderOpenAI, agent.ProviderAnthropic} {
		viper.SetDefault("agent."+p+".api-key", "")
		viper.SetDefault("agent."+p+".api-key-file", "")
		viper.SetDefault("agent."+p+".model", "")
		viper.SetDefault("agent."+p+".base-url", "")
	}
	viper.SetDefault("agent.anthropic.max-tokens", 0)

	viper.SetDefault("token", "")
	viper.SetDefault("token-file", "")
}

func initConfig() {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		// We can't proceed if the given config file is broken.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// bindEnv maps PITCHMATCH_SERVER_ADDR style variables onto config keys.
func bindEnv() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
