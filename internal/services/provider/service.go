package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/clock"
	"github.com/bengobox/oauth-provider/internal/metrics"
	"github.com/bengobox/oauth-provider/internal/oauth"
)

var (
	// ErrClientNotFound is returned by Authorize for an unknown client_id.
	ErrClientNotFound = errors.New("oauth client not found")
	// ErrRedirectURIMismatch is returned by Authorize when the redirect URI
	// differs from the registered one.
	ErrRedirectURIMismatch = errors.New("redirect uri does not match registered client")
)

// Config carries provider settings fixed at construction time.
type Config struct {
	Clock            clock.Clock
	AuthorizationTTL time.Duration
	TokenTTL         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clock.System{}
	}
	if c.AuthorizationTTL <= 0 {
		c.AuthorizationTTL = oauth.DefaultAuthorizationTTL
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = oauth.DefaultTokenTTL
	}
	return c
}

// Service issues, exchanges and revokes authorizations and tokens.
type Service struct {
	store   oauth.Store
	cfg     Config
	auditor *audit.Logger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Dependencies aggregates constructor inputs.
type Dependencies struct {
	Store   oauth.Store
	Config  Config
	Auditor *audit.Logger
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// New initialises the provider service.
func New(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		store:   deps.Store,
		cfg:     deps.Config.withDefaults(),
		auditor: deps.Auditor,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Now returns the provider clock's current time.
func (s *Service) Now() time.Time {
	return s.cfg.Clock.Now()
}

// AuthorizeRequest is the approval of a user for a client.
type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string
	State       string
}

// AuthorizeResult carries the new code and where to send the user agent.
type AuthorizeResult struct {
	Authorization *oauth.Authorization
	Client        *oauth.Client
	RedirectURL   string
}

// LookupClient resolves the client named by an authorization request and
// checks its redirect URI.
func (s *Service) LookupClient(ctx context.Context, clientID, redirectURI string) (*oauth.Client, error) {
	client, err := s.store.Clients().FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("lookup client: %w", err)
	}
	if client.RedirectURI != redirectURI {
		return nil, ErrRedirectURIMismatch
	}
	return client, nil
}

// Authorize records the user's approval and returns the redirect carrying
// the authorization code.
func (s *Service) Authorize(ctx context.Context, userID string, req AuthorizeRequest) (*AuthorizeResult, error) {
	if userID == "" {
		return nil, oauth.ErrNotAuthorized
	}
	client, err := s.LookupClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return nil, err
	}
	authz, err := s.CreateAuthorization(ctx, userID, client)
	if err != nil {
		return nil, err
	}
	redirect, err := redirectWith(client.RedirectURI, url.Values{
		"code":       {authz.Code},
		"expires_in": {strconv.FormatInt(authz.ExpiresIn(s.Now()), 10)},
	}, req.State)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{Authorization: authz, Client: client, RedirectURL: redirect}, nil
}

// DenyRedirectURL builds the redirect sent when the user declines.
func DenyRedirectURL(redirectURI, state string) (string, error) {
	return redirectWith(redirectURI, url.Values{"error": {"access-denied"}}, state)
}

func redirectWith(redirectURI string, params url.Values, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CreateAuthorization mints a fresh authorization code for userID.
func (s *Service) CreateAuthorization(ctx context.Context, userID string, client *oauth.Client) (*oauth.Authorization, error) {
	code, err := oauth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	authz := &oauth.Authorization{
		ID:            uuid.NewString(),
		UserID:        userID,
		OAuthClientID: client.ID,
		Code:          code,
		ExpiresAt:     oauth.ExpiryFrom(s.Now(), s.cfg.AuthorizationTTL),
	}
	if err := s.store.Authorizations().Create(ctx, authz); err != nil {
		return nil, fmt.Errorf("create authorization: %w", err)
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    userID,
		Action:     "oauth.authorization.created",
		Resource:   "oauth_authorization",
		ResourceID: authz.ID,
		Context:    map[string]any{"oauth_client_id": client.ID},
	})
	return authz, nil
}

// GenerateAccessToken converts authz into a token. The user's existing
// tokens for the same client are destroyed first and authz is consumed.
func (s *Service) GenerateAccessToken(ctx context.Context, authz *oauth.Authorization) (*oauth.Token, error) {
	var token *oauth.Token
	err := s.store.InTx(ctx, func(ctx context.Context, tx oauth.Store) error {
		if _, err := tx.Tokens().DeleteByUserAndClient(ctx, authz.UserID, authz.OAuthClientID); err != nil {
			return fmt.Errorf("destroy previous tokens: %w", err)
		}
		client, err := tx.Clients().FindByID(ctx, authz.OAuthClientID)
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		if token, err = s.createToken(ctx, tx, client, authz.UserID); err != nil {
			return err
		}
		if err := tx.Authorizations().Delete(ctx, authz.ID); err != nil {
			return fmt.Errorf("consume authorization: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    authz.UserID,
		Action:     "oauth.token.issued",
		Resource:   "oauth_token",
		ResourceID: token.ID,
		Context:    map[string]any{"oauth_client_id": token.OAuthClientID},
	})
	return token, nil
}

// RefreshToken destroys old and issues a brand-new token for the same user
// and client.
func (s *Service) RefreshToken(ctx context.Context, old *oauth.Token) (*oauth.Token, error) {
	var token *oauth.Token
	err := s.store.InTx(ctx, func(ctx context.Context, tx oauth.Store) error {
		if err := tx.Tokens().Delete(ctx, old.ID); err != nil {
			return fmt.Errorf("destroy refreshed token: %w", err)
		}
		client, err := tx.Clients().FindByID(ctx, old.OAuthClientID)
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		token, err = s.createToken(ctx, tx, client, old.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    old.UserID,
		Action:     "oauth.token.refreshed",
		Resource:   "oauth_token",
		ResourceID: token.ID,
		Context:    map[string]any{"previous_token_id": old.ID},
	})
	return token, nil
}

// CreateTokenForUser mints a token for userID on client.
func (s *Service) CreateTokenForUser(ctx context.Context, client *oauth.Client, userID string) (*oauth.Token, error) {
	return s.createToken(ctx, s.store, client, userID)
}

func (s *Service) createToken(ctx context.Context, store oauth.Store, client *oauth.Client, userID string) (*oauth.Token, error) {
	access, err := oauth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	refresh, err := oauth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	token := &oauth.Token{
		ID:            uuid.NewString(),
		UserID:        userID,
		OAuthClientID: client.ID,
		AccessToken:   access,
		RefreshToken:  refresh,
		ExpiresAt:     oauth.ExpiryFrom(s.Now(), s.cfg.TokenTTL),
	}
	if err := store.Tokens().Create(ctx, token); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken returns the live token for accessToken, or
// oauth.ErrNotFound when it is unknown or expired.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*oauth.Token, error) {
	if accessToken == "" {
		return nil, oauth.ErrNotFound
	}
	token, err := s.store.Tokens().FindByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if token.Expired(s.Now()) {
		return nil, oauth.ErrNotFound
	}
	return token, nil
}
