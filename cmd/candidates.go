package cmd

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/store"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage the founder and investor directory",
}

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates of a role",
	Run: func(cmd *cobra.Command, _ []string) {
		withStore(func(ctx context.Context, st *store.SQLStore, logger *zap.Logger) error {
			raw, _ := cmd.Flags().GetString("role")
			role, err := conversation.ParseRole(raw)
			if err != nil {
				return err
			}
			items, err := st.Candidates(ctx, role)
			if err != nil {
				return err
			}
			for _, c := range items {
				logger.Info(fmt.Sprintf("%s %s / %s", c.ID, c.DisplayName, c.OrgLabel),
					zap.String("statement", c.Statement),
					zap.String("route", c.ContactRoute),
				)
			}
			logger.Info("candidates", zap.String("role", string(role)), zap.Int("count", len(items)))
			return nil
		})
	},
}

var candidatesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create or update candidates from a yaml or json file with a top-level candidates list",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withStore(func(ctx context.Context, st *store.SQLStore, logger *zap.Logger) error {
			items, err := loadCandidatesFile(args[0])
			if err != nil {
				return err
			}
			for _, c := range items {
				if err := st.UpsertCandidate(ctx, c); err != nil {
					return err
				}
			}
			logger.Info("imported candidates", zap.String("file", args[0]), zap.Int("count", len(items)))
			return nil
		})
	},
}

var candidatesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo candidates",
	Run: func(_ *cobra.Command, _ []string) {
		withStore(func(ctx context.Context, st *store.SQLStore, logger *zap.Logger) error {
			return seed(ctx, st, logger)
		})
	},
}

var candidatesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a candidate",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withStore(func(ctx context.Context, st *store.SQLStore, logger *zap.Logger) error {
			if err := st.DeleteCandidate(ctx, args[0]); err != nil {
				return err
			}
			logger.Info("deleted candidate", zap.String("candidate_id", args[0]))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesListCmd, candidatesImportCmd, candidatesSeedCmd, candidatesDeleteCmd)

	candidatesListCmd.Flags().StringP("role", "r", string(conversation.RoleInvestor), "founder or investor")
}

func withStore(fn func(ctx context.Context, st *store.SQLStore, logger *zap.Logger) error) {
	ctx := context.Background()
	logger, config := setup()
	defer logger.Sync()

	st, err := store.Open(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer st.Close()

	if err := fn(ctx, st, logger); err != nil {
		logger.Fatal("candidates", zap.Error(err))
	}
}

// loadCandidatesFile reads the candidates list of a config-style file.
func loadCandidatesFile(path string) ([]directory.Candidate, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	raw := v.Get("candidates")
	if raw == nil {
		return nil, fmt.Errorf("%s: no candidates list", path)
	}

	var items []directory.Candidate
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &items,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding candidates: %w", err)
	}

	for i := range items {
		items[i].Normalize()
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("candidate #%d: %w", i+1, err)
		}
	}
	return items, nil
}
