package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatline-server/internal/app"
	"github.com/vovakirdan/chatline-server/internal/config"
	chatlog "github.com/vovakirdan/chatline-server/internal/log"
)

var version = "dev"

type rootFlags struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "chatline",
		Short:         "Two-party real-time chat server",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to config.yaml (written with defaults if missing)")
	pf.StringVar(&flags.overrides.Addr, "addr", "", "HTTP listen address")
	pf.StringVar(&flags.overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.DurationVar(&flags.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	root.AddCommand(newMigrateCmd(flags), newVersionCmd())
	return root
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	bootLogger := chatlog.New("info")
	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(flags.overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	bootLogger.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func serve(ctx context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := chatlog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize application")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting chatline server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
