package postgres

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"

	"github.com/bengobox/oauth-provider/internal/oauth"
)

var tokenColumns = []string{"id", "user_id", "oauth_client_id", "access_token", "refresh_token", "expires_at"}

type tokenRepo struct{ s *Store }

func scanToken(row pgx.CollectableRow) (*oauth.Token, error) {
	var t oauth.Token
	if err := row.Scan(&t.ID, &t.UserID, &t.OAuthClientID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r tokenRepo) Create(ctx context.Context, t *oauth.Token) error {
	query, args := builder().Insert(tokensTable).
		Columns(tokenColumns...).
		Values(t.ID, t.UserID, t.OAuthClientID, t.AccessToken, t.RefreshToken, t.ExpiresAt).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r tokenRepo) FindByID(ctx context.Context, id string) (*oauth.Token, error) {
	return r.findOne(ctx, entsql.EQ("id", id))
}

func (r tokenRepo) FindByAccessToken(ctx context.Context, accessToken string) (*oauth.Token, error) {
	return r.findOne(ctx, entsql.EQ("access_token", accessToken))
}

func (r tokenRepo) ListByUser(ctx context.Context, userID string) ([]*oauth.Token, error) {
	return r.find(ctx, r.selectWhere(entsql.EQ("user_id", userID)))
}

func (r tokenRepo) ListByClient(ctx context.Context, oauthClientID string) ([]*oauth.Token, error) {
	return r.find(ctx, r.selectWhere(entsql.EQ("oauth_client_id", oauthClientID)))
}

func (r tokenRepo) Delete(ctx context.Context, id string) error {
	_, err := r.deleteWhere(ctx, entsql.EQ("id", id))
	return err
}

func (r tokenRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.deleteWhere(ctx, entsql.EQ("user_id", userID))
}

func (r tokenRepo) DeleteByUserAndClient(ctx context.Context, userID, oauthClientID string) (int, error) {
	return r.deleteWhere(ctx, entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("oauth_client_id", oauthClientID),
	))
}

func (r tokenRepo) DeleteByClient(ctx context.Context, oauthClientID string) (int, error) {
	return r.deleteWhere(ctx, entsql.EQ("oauth_client_id", oauthClientID))
}

// TakeByRefreshToken locks and deletes the token in one transaction.
func (r tokenRepo) TakeByRefreshToken(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	var taken *oauth.Token
	err := r.s.InTx(ctx, func(ctx context.Context, tx oauth.Store) error {
		txRepo := tokenRepo{tx.(*Store)}
		found, err := txRepo.find(ctx, txRepo.selectWhere(entsql.EQ("refresh_token", refreshToken)).ForUpdate())
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

func (r tokenRepo) selectWhere(p *entsql.Predicate) *entsql.Selector {
	return builder().Select(tokenColumns...).
		From(builder().Table(tokensTable)).
		Where(p).
		OrderBy(entsql.Asc("expires_at"))
}

func (r tokenRepo) findOne(ctx context.Context, p *entsql.Predicate) (*oauth.Token, error) {
	found, err := r.find(ctx, r.selectWhere(p))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, oauth.ErrNotFound
	}
	return found[0], nil
}

func (r tokenRepo) deleteWhere(ctx context.Context, p *entsql.Predicate) (int, error) {
	query, args := builder().Delete(tokensTable).Where(p).Query()
	n, err := r.s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("delete tokens: %w", err)
	}
	return int(n), nil
}

func (r tokenRepo) find(ctx context.Context, sel *entsql.Selector) ([]*oauth.Token, error) {
	query, args := sel.Query()
	rows, err := r.s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanToken)
	if err != nil {
		return nil, fmt.Errorf("scan tokens: %w", err)
	}
	return out, nil
}
