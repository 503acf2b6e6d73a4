package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/config"
	"github.com/bengobox/oauth-provider/internal/database"
	"github.com/bengobox/oauth-provider/internal/logger"
	"github.com/bengobox/oauth-provider/internal/services/clients"
	"github.com/bengobox/oauth-provider/internal/services/provider"
	"github.com/bengobox/oauth-provider/internal/store/postgres"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "oauthctl",
		Short: "Manage OAuth clients and tokens",
		// Errors are printed by cobra; usage only for flag mistakes.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile == "" {
				return nil
			}
			if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading OAUTH_* variables")

	cmd.AddCommand(
		newDBCmd(),
		newClientsCmd(),
		newTokensCmd(),
		newExchangeCmd(),
		newAuditCmd(),
	)
	return cmd
}

// env bundles the services a command needs against the configured database.
type env struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	auditor  *audit.Logger
	clients  *clients.Service
	provider *provider.Service
	logger   *zap.Logger
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	zapLogger, err := logger.New(cfg.App.Environment, "oauthctl")
	if err != nil {
		return nil, err
	}
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	store := postgres.New(pool)
	auditor := audit.New(store, zapLogger)

	return &env{
		cfg:     cfg,
		pool:    pool,
		auditor: auditor,
		clients: clients.New(clients.Dependencies{
			Store:   store,
			Auditor: auditor,
			Logger:  zapLogger,
		}),
		provider: provider.New(provider.Dependencies{
			Store: store,
			Config: provider.Config{
				AuthorizationTTL: cfg.Provider.AuthorizationTTL,
				TokenTTL:         cfg.Provider.TokenTTL,
			},
			Auditor: auditor,
			Logger:  zapLogger,
		}),
		logger: zapLogger,
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
	_ = e.logger.Sync()
}

// withEnv runs fn with an opened env. Audit entries are attributed to
// oauthctl.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx = audit.WithRequestMeta(ctx, audit.RequestMeta{ActorID: "oauthctl"})
	return fn(ctx, e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
