package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/filtering"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/secrets"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/server"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/utils"
)

const (
	PromptShowRanking      = "Show ranking"
	PromptShowConversation = "Show a conversation"
	PromptContinue         = "Continue a conversation"
	PromptExcludeShown     = "Append all candidates to exclude file"
	PromptResultToFile     = "Dump result to file"
	PromptExit             = "Exit"
	PromptBack             = "back"

	credentialEnv = "SECONDME_ACCESS_TOKEN"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one matching session from the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("role", "r", "", "your role: founder or investor")
	runCmd.Flags().StringP("statement", "s", "", "one-line profile statement")
	runCmd.Flags().StringP("name", "n", "", "your display name")
	runCmd.Flags().BoolP("auto", "y", false, "print the ranking and exit without asking")
	runCmd.Flags().Bool("seed", false, "load demo candidates when the store is empty")
	runCmd.Flags().StringP("exclude-file", "e", "", "file with candidates to exclude. Default is unset.")

	viper.BindPFlag("matching.exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the interactive entry point of the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	defer logger.Sync()

	logger.Info("starting pitchmatch", zap.String("version", version))

	c, err := newComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer c.Close()

	if seedFlag, _ := cmd.Flags().GetBool("seed"); seedFlag {
		if err := seedIfEmpty(ctx, c.store, logger); err != nil {
			logger.Fatal("seeding candidates", zap.Error(err))
		}
	}

	req, err := buildRequest(ctx, cmd, config, c, logger)
	if err != nil {
		logger.Fatal("preparing the request", zap.Error(err))
	}

	res, err := c.coordinator.Run(ctx, req, progressSink(logger, config.Agent.MaxLogLength))
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}
	saveSession(ctx, c, res, logger)

	if len(res.Matches) == 0 {
		logger.Info("exiting", zap.String("reason", res.Message))
		return
	}

	report(logger, res)

	if auto, _ := cmd.Flags().GetBool("auto"); auto {
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptShowRanking, PromptShowConversation, PromptContinue, PromptExcludeShown, PromptResultToFile, PromptExit},
	}
	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		res, err = handleAction(ctx, action, c, config, req, res, logger)
		if err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func buildRequest(ctx context.Context, cmd *cobra.Command, config *Config, c *components, logger *zap.Logger) (matching.Request, error) {
	rawRole, _ := cmd.Flags().GetString("role")
	if rawRole == "" {
		rolePrompt := promptui.Select{
			Label: "You are a",
			Items: []string{string(conversation.RoleFounder), string(conversation.RoleInvestor)},
		}
		_, selected, err := rolePrompt.Run()
		if err != nil {
			return matching.Request{}, err
		}
		rawRole = selected
	}
	role, err := conversation.ParseRole(rawRole)
	if err != nil {
		return matching.Request{}, err
	}

	statement, _ := cmd.Flags().GetString("statement")
	if strings.TrimSpace(statement) == "" {
		statementPrompt := promptui.Prompt{
			Label: fmt.Sprintf("Describe what you are %s in one line", map[conversation.Role]string{
				conversation.RoleFounder:  "building",
				conversation.RoleInvestor: "looking for",
			}[role]),
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("statement is required")
				}
				return nil
			},
		}
		statement, err = statementPrompt.Run()
		if err != nil {
			return matching.Request{}, err
		}
	}

	req := matching.Request{Role: role, Statement: statement}
	req.Name, _ = cmd.Flags().GetString("name")

	if config.Agent.RequiresCredential() {
		token, err := resolveToken(config)
		if err != nil {
			return matching.Request{}, fmt.Errorf("%w (set token-file, token or %s)", err, credentialEnv)
		}
		req.Credential = token
	}

	if req.Name == "" && req.Credential != "" {
		if profiles, ok := c.provider.(server.ProfileLookup); ok {
			name, err := profiles.DisplayName(ctx, req.Credential)
			if err != nil {
				logger.Warn("looking up profile name", zap.Error(err))
			} else {
				req.Name = name
			}
		}
	}
	return req, nil
}

func resolveToken(config *Config) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "agent credential",
		Value: config.Token,
		File:  config.TokenFile,
		Env:   credentialEnv,
	})
}

// progressSink logs session events as they arrive.
func progressSink(logger *zap.Logger, maxLen int) matching.Sink {
	if maxLen <= 0 {
		maxLen = 200
	}
	return matching.SinkFunc(func(_ context.Context, ev matching.Event) error {
		switch e := ev.(type) {
		case matching.StatusEvent:
			logger.Info(e.Message, zap.String("phase", string(e.Phase)))
		case matching.CandidateStartEvent:
			logger.Info("talking to candidate",
				zap.Int("index", e.CandidateIndex),
				zap.Int("total", e.TotalCandidates),
				zap.String("name", e.CandidateName),
				zap.String("org", e.CandidateOrg),
			)
		case matching.RoundStartEvent:
			logger.Debug("round started", zap.Int("round", e.Round), zap.Int("total_rounds", e.TotalRounds))
		case matching.MessageEvent:
			logger.Info(string(e.Role), zap.Int("round", e.Round), zap.String("content", utils.TruncateForLog(e.Content, maxLen)))
		case matching.CandidateCompleteEvent:
			logger.Info("candidate evaluated", zap.String("candidate_id", e.CandidateID), zap.Bool("matched", e.Matched), zap.Int("score", e.Score))
		case matching.ErrorEvent:
			logger.Error("session failed", zap.String("code", e.Code), zap.String("message", e.Message))
		}
		return nil
	})
}

func report(logger *zap.Logger, res *matching.Result) {
	for i, m := range res.Matches {
		logger.Info(fmt.Sprintf("#%d %s / %s", i+1, m.DisplayName, m.OrgLabel),
			zap.String("candidate_id", m.CandidateID),
			zap.Int("score", m.Score),
			zap.Bool("matched", m.Matched),
			zap.Strings("highlights", m.Highlights),
			zap.Strings("risks", m.Risks),
			zap.String("route", m.ContactRoute),
		)
	}
	logger.Info("session result", zap.String("session_id", res.SessionID), zap.Int("matched", res.TotalMatched), zap.Int("shown", len(res.Matches)))
}

func handleAction(ctx context.Context, action string, c *components, config *Config, req matching.Request, res *matching.Result, logger *zap.Logger) (*matching.Result, error) {
	switch action {
	case PromptShowRanking:
		report(logger, res)
		return res, nil
	case PromptShowConversation:
		id, err := pickCandidate(res)
		if err != nil || id == "" {
			return res, err
		}
		rec, _ := res.Find(id)
		for _, turn := range rec.Transcript {
			logger.Info(string(turn.Role), zap.Int("sequence", turn.Sequence), zap.String("content", turn.Content))
		}
		return res, nil
	case PromptContinue:
		id, err := pickCandidate(res)
		if err != nil || id == "" {
			return res, err
		}
		updated, err := c.coordinator.Continue(ctx, matching.Continuation{
			Request: req,
			Prior:   res,
			Target:  id,
			Rounds:  1,
		}, progressSink(logger, config.Agent.MaxLogLength))
		if errors.Is(err, matching.ErrInvalidInput) {
			logger.Warn("cannot continue", zap.Error(err))
			return res, nil
		}
		if err != nil {
			return res, err
		}
		saveSession(ctx, c, updated, logger)
		return updated, nil
	case PromptExcludeShown:
		return res, appendToExcludeFile(config.Matching.ExcludeFile, res, logger)
	case PromptResultToFile:
		filename, err := res.DumpToTmpFile()
		if err != nil {
			return res, fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return res, nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return res, errExit
	default:
		return res, fmt.Errorf("invalid action: %s", action)
	}
}

// pickCandidate asks for one record. An empty id means the user went back.
func pickCandidate(res *matching.Result) (string, error) {
	items := make([]string, 0, len(res.Matches)+1)
	for _, m := range res.Matches {
		items = append(items, fmt.Sprintf("%s %s / %s / score %d / %d rounds", m.CandidateID, m.DisplayName, m.OrgLabel, m.Score, m.RoundCount))
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptBack),
	}
	_, selected, err := candidatePrompt.Run()
	if err != nil {
		return "", err
	}
	if selected == PromptBack {
		return "", nil
	}
	return strings.Split(selected, " ")[0], nil
}

func appendToExcludeFile(path string, res *matching.Result, logger *zap.Logger) error {
	if path == "" {
		logger.Warn("exclude file is not configured", zap.String("hint", "set matching.exclude-file or pass --exclude-file"))
		return nil
	}

	excluded, err := filtering.LoadExcluded(path)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, m := range res.Matches {
		excluded.Append(filtering.ExcludedCandidate{
			ID:         m.CandidateID,
			Name:       m.DisplayName,
			Reason:     fmt.Sprintf("session %s, score %d", res.SessionID, m.Score),
			ExcludedAt: now,
		})
	}
	if err := excluded.ToFile(path); err != nil {
		return err
	}
	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", len(excluded.Items)))
	return nil
}

func saveSession(ctx context.Context, c *components, res *matching.Result, logger *zap.Logger) {
	if err := c.store.SaveSession(ctx, res); err != nil {
		logger.Warn("saving session", zap.Error(err))
		return
	}
	logger.Debug("session saved", zap.String("session_id", res.SessionID), zap.Int("matched", res.TotalMatched))
}
