package postgres

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"

	"github.com/bengobox/oauth-provider/internal/oauth"
)

var clientColumns = []string{"id", "name", "client_id", "client_secret", "redirect_uri", "created_at", "updated_at"}

type clientRepo struct{ s *Store }

func scanClient(row pgx.CollectableRow) (*oauth.Client, error) {
	var c oauth.Client
	if err := row.Scan(&c.ID, &c.Name, &c.ClientID, &c.ClientSecret, &c.RedirectURI, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r clientRepo) Create(ctx context.Context, c *oauth.Client) error {
	query, args := builder().Insert(clientsTable).
		Columns(clientColumns...).
		Values(c.ID, c.Name, c.ClientID, c.ClientSecret, c.RedirectURI, c.CreatedAt, c.UpdatedAt).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (r clientRepo) Update(ctx context.Context, c *oauth.Client) error {
	query, args := builder().Update(clientsTable).
		Set("name", c.Name).
		Set("redirect_uri", c.RedirectURI).
		Set("updated_at", c.UpdatedAt).
		Where(entsql.EQ("id", c.ID)).
		Query()
	n, err := r.s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if n == 0 {
		return oauth.ErrNotFound
	}
	return nil
}

func (r clientRepo) FindByID(ctx context.Context, id string) (*oauth.Client, error) {
	return r.findOne(ctx, entsql.EQ("id", id))
}

func (r clientRepo) FindByClientID(ctx context.Context, clientID string) (*oauth.Client, error) {
	return r.findOne(ctx, entsql.EQ("client_id", clientID))
}

func (r clientRepo) FindByName(ctx context.Context, name string) (*oauth.Client, error) {
	return r.findOne(ctx, entsql.EQ("name", name))
}

func (r clientRepo) FindByRedirectURI(ctx context.Context, redirectURI string) (*oauth.Client, error) {
	return r.findOne(ctx, entsql.EQ("redirect_uri", redirectURI))
}

func (r clientRepo) List(ctx context.Context) ([]*oauth.Client, error) {
	return r.find(ctx, nil)
}

func (r clientRepo) Delete(ctx context.Context, id string) error {
	query, args := builder().Delete(clientsTable).Where(entsql.EQ("id", id)).Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}

func (r clientRepo) findOne(ctx context.Context, p *entsql.Predicate) (*oauth.Client, error) {
	found, err := r.find(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, oauth.ErrNotFound
	}
	return found[0], nil
}

func (r clientRepo) find(ctx context.Context, p *entsql.Predicate) ([]*oauth.Client, error) {
	sel := builder().Select(clientColumns...).From(builder().Table(clientsTable))
	if p != nil {
		sel.Where(p)
	}
	query, args := sel.OrderBy(entsql.Asc("created_at")).Query()
	rows, err := r.s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanClient)
	if err != nil {
		return nil, fmt.Errorf("scan clients: %w", err)
	}
	return out, nil
}
