package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/oauth"
)

// UserToken is a token row shown in the user's token management list.
type UserToken struct {
	ID         string `json:"id"`
	ClientName string `json:"client_name"`
	ExpiresIn  int64  `json:"expires_in"`
	Expired    bool   `json:"expired"`
}

// ListUserTokens returns every token held by userID.
func (s *Service) ListUserTokens(ctx context.Context, userID string) ([]UserToken, error) {
	tokens, err := s.store.Tokens().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user tokens: %w", err)
	}
	names := map[string]string{}
	now := s.Now()
	out := make([]UserToken, 0, len(tokens))
	for _, t := range tokens {
		name, ok := names[t.OAuthClientID]
		if !ok {
			client, err := s.store.Clients().FindByID(ctx, t.OAuthClientID)
			switch {
			case err == nil:
				name = client.Name
			case !errors.Is(err, oauth.ErrNotFound):
				return nil, fmt.Errorf("load token client: %w", err)
			}
			names[t.OAuthClientID] = name
		}
		out = append(out, UserToken{
			ID:         t.ID,
			ClientName: name,
			ExpiresIn:  t.ExpiresIn(now),
			Expired:    t.Expired(now),
		})
	}
	return out, nil
}

// RevokeForUser destroys tokenID when it belongs to userID.
func (s *Service) RevokeForUser(ctx context.Context, userID, tokenID string) error {
	if userID == "" || tokenID == "" {
		return oauth.ErrNotAuthorized
	}
	token, err := s.store.Tokens().FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotFound) {
			return oauth.ErrNotAuthorized
		}
		return fmt.Errorf("lookup token: %w", err)
	}
	if token.UserID != userID {
		return oauth.ErrNotAuthorized
	}
	if err := s.store.Tokens().Delete(ctx, token.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    userID,
		Action:     "oauth.token.revoked",
		Resource:   "oauth_token",
		ResourceID: token.ID,
	})
	s.metrics.Revoked("user", 1)
	return nil
}

// AdminRevokeRequest selects what an administrator revokes. TokenID wins
// when both are set.
type AdminRevokeRequest struct {
	TokenID string
	UserID  string
}

// RevokeByAdmin destroys one token or every token of a user and returns
// how many were destroyed.
func (s *Service) RevokeByAdmin(ctx context.Context, req AdminRevokeRequest) (int, error) {
	switch {
	case req.TokenID != "":
		token, err := s.store.Tokens().FindByID(ctx, req.TokenID)
		if err != nil {
			if errors.Is(err, oauth.ErrNotFound) {
				return 0, oauth.ErrNotAuthorized
			}
			return 0, fmt.Errorf("lookup token: %w", err)
		}
		if err := s.store.Tokens().Delete(ctx, token.ID); err != nil {
			return 0, fmt.Errorf("revoke token: %w", err)
		}
		s.auditor.Record(ctx, audit.Entry{
			Action:     "oauth.token.revoked_by_admin",
			Resource:   "oauth_token",
			ResourceID: token.ID,
			Context:    map[string]any{"user_id": token.UserID},
		})
		s.metrics.Revoked("admin", 1)
		return 1, nil
	case req.UserID != "":
		n, err := s.store.Tokens().DeleteByUser(ctx, req.UserID)
		if err != nil {
			return 0, fmt.Errorf("revoke user tokens: %w", err)
		}
		s.auditor.Record(ctx, audit.Entry{
			Action:     "oauth.token.revoked_by_admin",
			Resource:   "user",
			ResourceID: req.UserID,
			Context:    map[string]any{"tokens_destroyed": n},
		})
		s.metrics.Revoked("admin", n)
		return n, nil
	default:
		return 0, oauth.ErrNotAuthorized
	}
}
