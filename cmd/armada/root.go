package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/app"
	"github.com/JakeFAU/wallpaper-armada/internal/config"
	"github.com/JakeFAU/wallpaper-armada/internal/logging"
)

type cfgKeyType struct{}

// runApp builds and runs the armada. It is a variable so tests can stub it.
var runApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize armada: %w", err)
	}
	defer a.Close(context.Background())
	return a.Run(ctx)
}

// newRootCmd creates the root command with its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "armada",
		Short: "Polls image feeds and archives qualifying wallpapers.",
		Long: `armada runs a fleet of feed sources. Each cycle it pulls recent posts, keeps the
wide, large images, writes them (plus a thumbnail) to blob storage, and records
their metadata and title keywords.`,
		SilenceUsage: true,

		// Config is loaded once here so every subcommand sees the same validated values.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKeyType{}, cfg))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON, or TOML)")

	cmd.AddCommand(newRunCmd(), newValidateCmd())
	cmd.SetContext(context.Background())
	return cmd
}

func configFrom(cmd *cobra.Command) config.Config {
	cfg, _ := cmd.Context().Value(cfgKeyType{}).(config.Config)
	return cfg
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the fleet until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := runApp(ctx, cfg, logger); err != nil {
				logger.Error("armada stopped with error", zap.Error(err))
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: %d source(s), storage=%s, metadata=%s, poll every %s\n",
				len(cfg.Sources), cfg.Storage.Provider, cfg.Metadata.Provider, cfg.PollInterval())
			for _, s := range cfg.Sources {
				fmt.Fprintf(out, "  - %s r/%s (%s)\n", s.Type, s.Subreddit, s.Listing)
			}
			return nil
		},
	}
}
