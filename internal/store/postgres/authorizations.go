package postgres

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"

	"github.com/bengobox/oauth-provider/internal/oauth"
)

var authorizationColumns = []string{"id", "user_id", "oauth_client_id", "code", "expires_at"}

type authorizationRepo struct{ s *Store }

func scanAuthorization(row pgx.CollectableRow) (*oauth.Authorization, error) {
	var a oauth.Authorization
	if err := row.Scan(&a.ID, &a.UserID, &a.OAuthClientID, &a.Code, &a.ExpiresAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r authorizationRepo) Create(ctx context.Context, a *oauth.Authorization) error {
	query, args := builder().Insert(authorizationsTable).
		Columns(authorizationColumns...).
		Values(a.ID, a.UserID, a.OAuthClientID, a.Code, a.ExpiresAt).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert authorization: %w", err)
	}
	return nil
}

func (r authorizationRepo) FindByCode(ctx context.Context, code string) (*oauth.Authorization, error) {
	found, err := r.find(ctx, builder().Select(authorizationColumns...).
		From(builder().Table(authorizationsTable)).
		Where(entsql.EQ("code", code)))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, oauth.ErrNotFound
	}
	return found[0], nil
}

func (r authorizationRepo) ListByClient(ctx context.Context, oauthClientID string) ([]*oauth.Authorization, error) {
	return r.find(ctx, builder().Select(authorizationColumns...).
		From(builder().Table(authorizationsTable)).
		Where(entsql.EQ("oauth_client_id", oauthClientID)).
		OrderBy(entsql.Asc("expires_at")))
}

func (r authorizationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.deleteWhere(ctx, entsql.EQ("id", id))
	return err
}

func (r authorizationRepo) DeleteByClient(ctx context.Context, oauthClientID string) (int, error) {
	return r.deleteWhere(ctx, entsql.EQ("oauth_client_id", oauthClientID))
}

// TakeByCode locks the row, then deletes it in the same transaction. A
// concurrent caller blocks on the lock and finds nothing once it is released.
func (r authorizationRepo) TakeByCode(ctx context.Context, code string) (*oauth.Authorization, error) {
	var taken *oauth.Authorization
	err := r.s.InTx(ctx, func(ctx context.Context, tx oauth.Store) error {
		txRepo := authorizationRepo{tx.(*Store)}
		found, err := txRepo.find(ctx, builder().Select(authorizationColumns...).
			From(builder().Table(authorizationsTable)).
			Where(entsql.EQ("code", code)).
			ForUpdate())
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return oauth.ErrNotFound
		}
		if err := txRepo.Delete(ctx, found[0].ID); err != nil {
			return err
		}
		taken = found[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (r authorizationRepo) deleteWhere(ctx context.Context, p *entsql.Predicate) (int, error) {
	query, args := builder().Delete(authorizationsTable).Where(p).Query()
	n, err := r.s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("delete authorizations: %w", err)
	}
	return int(n), nil
}

func (r authorizationRepo) find(ctx context.Context, sel *entsql.Selector) ([]*oauth.Authorization, error) {
	query, args := sel.Query()
	rows, err := r.s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query authorizations: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanAuthorization)
	if err != nil {
		return nil, fmt.Errorf("scan authorizations: %w", err)
	}
	return out, nil
}
