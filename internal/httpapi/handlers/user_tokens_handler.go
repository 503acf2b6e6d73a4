package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authmiddleware "github.com/bengobox/oauth-provider/internal/httpapi/middleware"
	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/services/provider"
)

const (
	msgNotAuthorizedToken = "You are not authorized to revoke this token."
	msgAdminRevokeInvalid = "A valid token_id or user_id is required to revoke tokens."
)

// RevocationService describes the provider capabilities used for token
// management.
type RevocationService interface {
	ListUserTokens(ctx context.Context, userID string) ([]provider.UserToken, error)
	RevokeForUser(ctx context.Context, userID, tokenID string) error
	RevokeByAdmin(ctx context.Context, req provider.AdminRevokeRequest) (int, error)
}

// UserTokensHandler lists and revokes tokens.
type UserTokensHandler struct {
	service RevocationService
	prefix  string
	logger  *zap.Logger
}

// NewUserTokensHandler constructs a handler. prefix is the mount point of
// the /oauth routes and is used to build revoke links.
func NewUserTokensHandler(service RevocationService, prefix string, logger *zap.Logger) *UserTokensHandler {
	return &UserTokensHandler{service: service, prefix: strings.TrimRight(prefix, "/"), logger: logger}
}

type userTokenView struct {
	provider.UserToken
	RevokePath string `json:"revoke_path"`
}

// List returns the caller's tokens.
func (h *UserTokensHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := authmiddleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	tokens, err := h.service.ListUserTokens(r.Context(), principal.UserID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	views := make([]userTokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, userTokenView{
			UserToken:  t,
			RevokePath: h.prefix + "/oauth/user_tokens/revoke/" + t.ID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": views})
}

// Revoke destroys one of the caller's own tokens.
func (h *UserTokensHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal, ok := authmiddleware.PrincipalFromContext(r.Context())
	if !ok {
		writeText(w, http.StatusBadRequest, msgNotAuthorizedToken)
		return
	}
	err := h.service.RevokeForUser(r.Context(), principal.UserID, chi.URLParam(r, "tokenID"))
	switch {
	case errors.Is(err, oauth.ErrNotAuthorized):
		writeText(w, http.StatusBadRequest, msgNotAuthorizedToken)
	case err != nil:
		h.serverError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"notice": "Access token successfully revoked."})
	}
}

// RevokeByAdmin destroys a token by token_id or all of a user's tokens by
// user_id.
func (h *UserTokensHandler) RevokeByAdmin(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, msgAdminRevokeInvalid)
		return
	}
	n, err := h.service.RevokeByAdmin(r.Context(), provider.AdminRevokeRequest{
		TokenID: params["token_id"],
		UserID:  params["user_id"],
	})
	switch {
	case errors.Is(err, oauth.ErrNotAuthorized):
		writeText(w, http.StatusBadRequest, msgAdminRevokeInvalid)
	case err != nil:
		h.serverError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"notice":  "Access tokens successfully revoked.",
			"revoked": n,
		})
	}
}

func (h *UserTokensHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.Error("user tokens handler error", zap.String("request_id", reqID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server-error", "internal server error", map[string]any{"request_id": reqID})
}
