package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/services/provider"
)

// TokenService describes the provider capabilities used by the token
// endpoint.
type TokenService interface {
	Exchange(ctx context.Context, req provider.ExchangeRequest) (*provider.ExchangeResult, error)
	ValidateAccessToken(ctx context.Context, accessToken string) (*oauth.Token, error)
	Now() time.Time
}

// TokenHandler exposes the token endpoint.
type TokenHandler struct {
	service TokenService
	logger  *zap.Logger
}

// NewTokenHandler constructs a handler.
func NewTokenHandler(service TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{service: service, logger: logger}
}

// Token exchanges an authorization code or refresh token for a new pair.
func (h *TokenHandler) Token(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	params, err := requestParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request", "Unable to parse request body.", nil)
		return
	}

	result, err := h.service.Exchange(r.Context(), provider.ExchangeRequest{
		GrantType:    params["grant_type"],
		Code:         params["code"],
		RefreshToken: params["refresh_token"],
		ClientID:     params["client_id"],
		ClientSecret: params["client_secret"],
		RedirectURI:  params["redirect_uri"],
	})
	if err != nil {
		var exErr *oauth.ExchangeError
		if errors.As(err, &exErr) {
			writeError(w, http.StatusBadRequest, exErr.Code, exErr.Description, nil)
			return
		}
		reqID := middleware.GetReqID(r.Context())
		h.logger.Error("token exchange failed", zap.String("request_id", reqID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server-error", "internal server error", map[string]any{"request_id": reqID})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TokenInfo describes the access token presented as a bearer credential.
func (h *TokenHandler) TokenInfo(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	header := r.Header.Get("Authorization")
	accessToken := ""
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		accessToken = strings.TrimSpace(header[7:])
	}
	token, err := h.service.ValidateAccessToken(r.Context(), accessToken)
	if err != nil {
		if errors.Is(err, oauth.ErrNotFound) {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid-token"`)
			writeError(w, http.StatusUnauthorized, "invalid-token", "Access token is invalid or expired.", nil)
			return
		}
		h.logger.Error("token lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server-error", "internal server error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         token.UserID,
		"oauth_client_id": token.OAuthClientID,
		"expires_in":      token.ExpiresIn(h.service.Now()),
	})
}
