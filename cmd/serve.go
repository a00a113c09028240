package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().Bool("seed", false, "load demo candidates when the store is empty")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	defer logger.Sync()

	logger.Info("starting the pitchmatch server", zap.String("version", version))

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

	deps := server.Deps{
		Coordinator: c.coordinator,
		Store:       c.store,
		Logger:      logger,
	}
	if profiles, ok := c.provider.(server.ProfileLookup); ok {
		deps.Profiles = profiles
	}

	if err := server.New(config.Server, deps).ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
