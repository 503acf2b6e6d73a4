package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bengobox/oauth-provider/internal/config"
)

// NewPool initialises a pgx connection pool backed by PostgreSQL.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxOpenConns
	poolCfg.MinConns = cfg.MaxIdleConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// RunMigrations creates the provider tables. Every statement is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS oauth_clients (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		client_id     TEXT NOT NULL,
		client_secret TEXT NOT NULL,
		redirect_uri  TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS oauth_clients_name_key ON oauth_clients (name)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS oauth_clients_client_id_key ON oauth_clients (client_id)`,
	`CREATE TABLE IF NOT EXISTS oauth_authorizations (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		oauth_client_id TEXT NOT NULL REFERENCES oauth_clients (id),
		code            TEXT NOT NULL,
		expires_at      BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS oauth_authorizations_code_key ON oauth_authorizations (code)`,
	`CREATE INDEX IF NOT EXISTS oauth_authorizations_client_idx ON oauth_authorizations (oauth_client_id)`,
	`CREATE TABLE IF NOT EXISTS oauth_tokens (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		oauth_client_id TEXT NOT NULL REFERENCES oauth_clients (id),
		access_token    TEXT NOT NULL,
		refresh_token   TEXT NOT NULL,
		expires_at      BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS oauth_tokens_access_token_key ON oauth_tokens (access_token)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS oauth_tokens_refresh_token_key ON oauth_tokens (refresh_token)`,
	`CREATE INDEX IF NOT EXISTS oauth_tokens_user_client_idx ON oauth_tokens (user_id, oauth_client_id)`,
	`CREATE TABLE IF NOT EXISTS oauth_audit_logs (
		id          BIGSERIAL PRIMARY KEY,
		actor_id    TEXT NOT NULL DEFAULT '',
		action      TEXT NOT NULL,
		resource    TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		ip_address  TEXT NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		context     JSONB,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS oauth_audit_logs_occurred_at_idx ON oauth_audit_logs (occurred_at DESC)`,
}
