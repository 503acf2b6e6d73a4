package oauth

import "context"

// ClientRepository persists registered clients.
type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	Update(ctx context.Context, c *Client) error
	FindByID(ctx context.Context, id string) (*Client, error)
	FindByClientID(ctx context.Context, clientID string) (*Client, error)
	FindByName(ctx context.Context, name string) (*Client, error)
	FindByRedirectURI(ctx context.Context, redirectURI string) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
	Delete(ctx context.Context, id string) error
}

// AuthorizationRepository persists authorization codes.
type AuthorizationRepository interface {
	Create(ctx context.Context, a *Authorization) error
	FindByCode(ctx context.Context, code string) (*Authorization, error)
	ListByClient(ctx context.Context, oauthClientID string) ([]*Authorization, error)
	Delete(ctx context.Context, id string) error
	DeleteByClient(ctx context.Context, oauthClientID string) (int, error)
	// TakeByCode finds and deletes the authorization in one atomic step.
	// Concurrent callers presenting the same code see ErrNotFound except one.
	TakeByCode(ctx context.Context, code string) (*Authorization, error)
}

// TokenRepository persists access/refresh token pairs.
type TokenRepository interface {
	Create(ctx context.Context, t *Token) error
	FindByID(ctx context.Context, id string) (*Token, error)
	FindByAccessToken(ctx context.Context, accessToken string) (*Token, error)
	ListByUser(ctx context.Context, userID string) ([]*Token, error)
	ListByClient(ctx context.Context, oauthClientID string) ([]*Token, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
	DeleteByUserAndClient(ctx context.Context, userID, oauthClientID string) (int, error)
	DeleteByClient(ctx context.Context, oauthClientID string) (int, error)
	// TakeByRefreshToken finds and deletes the token in one atomic step.
	TakeByRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// Store groups the repositories and runs application level transactions.
type Store interface {
	Clients() ClientRepository
	Authorizations() AuthorizationRepository
	Tokens() TokenRepository
	// InTx runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
