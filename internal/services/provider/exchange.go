package provider

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/oauth"
)

// Supported grant types.
const (
	GrantAuthorizationCode = "authorization-code"
	GrantRefreshToken      = "refresh-token"
)

// ExchangeRequest carries the token endpoint parameters.
type ExchangeRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// ExchangeResult is the success payload of the token endpoint.
type ExchangeResult struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Exchange turns an authorization code or refresh token into a new token
// pair. Any code or refresh token presented is consumed before validation,
// so a value can be used at most once even when the request fails.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	result, err := s.exchange(ctx, req)
	outcome := "ok"
	if err != nil {
		var exErr *oauth.ExchangeError
		if errors.As(err, &exErr) {
			outcome = exErr.Code
		} else {
			outcome = "error"
		}
	}
	s.metrics.Exchange(req.GrantType, outcome)
	return result, err
}

func (s *Service) exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	var authz *oauth.Authorization
	if req.Code != "" {
		taken, err := s.store.Authorizations().TakeByCode(ctx, req.Code)
		if err != nil && !errors.Is(err, oauth.ErrNotFound) {
			return nil, fmt.Errorf("consume authorization code: %w", err)
		}
		authz = taken
	}

	var previous *oauth.Token
	if req.RefreshToken != "" {
		taken, err := s.store.Tokens().TakeByRefreshToken(ctx, req.RefreshToken)
		if err != nil && !errors.Is(err, oauth.ErrNotFound) {
			return nil, fmt.Errorf("consume refresh token: %w", err)
		}
		previous = taken
	}

	if req.GrantType != GrantAuthorizationCode && req.GrantType != GrantRefreshToken {
		return nil, oauth.ErrUnsupportedGrantType
	}

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	if client.RedirectURI != req.RedirectURI {
		return nil, oauth.ErrRedirectURIMismatch
	}

	var token *oauth.Token
	switch req.GrantType {
	case GrantAuthorizationCode:
		if authz == nil || authz.Expired(s.Now()) || authz.OAuthClientID != client.ID {
			return nil, oauth.ErrAuthorizationInvalid
		}
		token, err = s.GenerateAccessToken(ctx, authz)
	case GrantRefreshToken:
		if previous == nil || previous.OAuthClientID != client.ID {
			return nil, oauth.ErrRefreshTokenInvalid
		}
		token, err = s.RefreshToken(ctx, previous)
	}
	if err != nil {
		s.logger.Error("token issuance failed",
			zap.String("grant_type", req.GrantType),
			zap.String("oauth_client_id", client.ID),
			zap.Error(err),
		)
		return nil, err
	}

	return &ExchangeResult{
		AccessToken:  token.AccessToken,
		ExpiresIn:    token.ExpiresIn(s.Now()),
		RefreshToken: token.RefreshToken,
	}, nil
}

func (s *Service) authenticateClient(ctx context.Context, clientID, clientSecret string) (*oauth.Client, error) {
	if clientID == "" {
		return nil, oauth.ErrInvalidClientCredentials
	}
	client, err := s.store.Clients().FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotFound) {
			return nil, oauth.ErrInvalidClientCredentials
		}
		return nil, fmt.Errorf("lookup client: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) != 1 {
		return nil, oauth.ErrInvalidClientCredentials
	}
	return client, nil
}
