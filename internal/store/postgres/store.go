// Package postgres implements oauth.Store on PostgreSQL. Statements are built
// with ent's SQL builder and executed through a pgx pool or transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/oauth"
)

const (
	clientsTable        = "oauth_clients"
	authorizationsTable = "oauth_authorizations"
	tokensTable         = "oauth_tokens"
	auditTable          = "oauth_audit_logs"

	uniqueViolation = "23505"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL backed oauth.Store.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	tx   bool
}

var (
	_ oauth.Store = (*Store)(nil)
	_ audit.Sink  = (*Store)(nil)
)

// New wraps a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Clients() oauth.ClientRepository               { return clientRepo{s} }
func (s *Store) Authorizations() oauth.AuthorizationRepository { return authorizationRepo{s} }
func (s *Store) Tokens() oauth.TokenRepository                 { return tokenRepo{s} }

// InTx runs fn inside a database transaction. Nested calls join the outer one.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx oauth.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, q: tx, tx: true})
	})
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", oauth.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// AppendAudit implements audit.Sink.
func (s *Store) AppendAudit(ctx context.Context, entry audit.Entry) error {
	query, args := builder().Insert(auditTable).
		Columns("actor_id", "action", "resource", "resource_id", "ip_address", "user_agent", "context", "occurred_at").
		Values(entry.ActorID, entry.Action, entry.Resource, entry.ResourceID, entry.IPAddress, entry.UserAgent, entry.Context, entry.OccurredAt).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	query, args := builder().
		Select("actor_id", "action", "resource", "resource_id", "ip_address", "user_agent", "context", "occurred_at").
		From(builder().Table(auditTable)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit).
		Query()
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Entry, error) {
		var e audit.Entry
		err := row.Scan(&e.ActorID, &e.Action, &e.Resource, &e.ResourceID, &e.IPAddress, &e.UserAgent, &e.Context, &e.OccurredAt)
		return e, err
	})
}
