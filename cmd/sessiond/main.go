package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/session-console/internal/config"
	"github.com/sandeepkv93/session-console/internal/di"
	"github.com/sandeepkv93/session-console/internal/observability"
	"github.com/sandeepkv93/session-console/internal/repository"
	"github.com/sandeepkv93/session-console/internal/security"
	"github.com/sandeepkv93/session-console/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sessiond:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "sessiond",
		Short:         "Session API consumed by sessionctl",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file read before the environment")
	cmd.AddCommand(newServeCommand(&envFile), newSeedCommand(&envFile))
	return cmd
}

func loadServerConfig(envFile string) (*config.Config, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadServerConfig(*envFile)
			if err != nil {
				return err
			}
			logger, lp, err := observability.NewLogger(ctx, cfg, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			a, cleanup, err := di.InitializeApp(ctx, cfg, logger, lp)
			if err != nil {
				if lp != nil {
					_ = lp.Shutdown(context.Background())
				}
				return err
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
}

func newSeedCommand(envFile *string) *cobra.Command {
	var (
		userID uint
		count  int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create development sessions and print an access token for the newest one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadServerConfig(*envFile)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer func() { _ = sqlDB.Close() }()
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			svc := service.NewSessionService(repository.NewSessionRepository(db), cfg.SessionTTL, slog.Default())
			seeded, err := svc.Seed(ctx, userID, count)
			if err != nil {
				return err
			}
			token, err := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret).
				SignAccessToken(userID, seeded[0].ID, cfg.JWTAccessTTL)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %d sessions created for user %d; current session %s\n", len(seeded), userID, seeded[0].ID)
			fmt.Fprintf(out, "AUTH_TOKEN=%s\n", token)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 1, "user id owning the sessions")
	cmd.Flags().IntVar(&count, "count", 20, "number of sessions to create")
	return cmd
}
