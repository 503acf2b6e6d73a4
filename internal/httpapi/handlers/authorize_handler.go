package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authmiddleware "github.com/bengobox/oauth-provider/internal/httpapi/middleware"
	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/oauth/consent"
	"github.com/bengobox/oauth-provider/internal/services/provider"
)

// AuthorizeService describes the provider capabilities behind the approval
// step.
type AuthorizeService interface {
	LookupClient(ctx context.Context, clientID, redirectURI string) (*oauth.Client, error)
	Authorize(ctx context.Context, userID string, req provider.AuthorizeRequest) (*provider.AuthorizeResult, error)
}

// TicketSigner issues and verifies consent tickets.
type TicketSigner interface {
	Encode(payload consent.Payload) (string, error)
	Decode(ticket string) (*consent.Payload, error)
}

// AuthorizeHandler lets a signed-in user approve a client.
type AuthorizeHandler struct {
	service AuthorizeService
	signer  TicketSigner
	logger  *zap.Logger
}

func NewAuthorizeHandler(service AuthorizeService, signer TicketSigner, logger *zap.Logger) *AuthorizeHandler {
	return &AuthorizeHandler{service: service, signer: signer, logger: logger}
}

// Show validates the request and returns what the consent screen needs.
func (h *AuthorizeHandler) Show(w http.ResponseWriter, r *http.Request) {
	principal, ok := authmiddleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	q := r.URL.Query()
	client, err := h.service.LookupClient(r.Context(), q.Get("client_id"), q.Get("redirect_uri"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ticket, err := h.signer.Encode(consent.Payload{
		UserID:      principal.UserID,
		ClientID:    client.ClientID,
		RedirectURI: client.RedirectURI,
		State:       q.Get("state"),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"client": map[string]string{
			"name":         client.Name,
			"redirect_uri": client.RedirectURI,
		},
		"ticket": ticket,
	})
}

// Approve consumes a consent ticket and redirects back to the client with
// either a code or an access-denied error.
func (h *AuthorizeHandler) Approve(w http.ResponseWriter, r *http.Request) {
	principal, ok := authmiddleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	params, err := requestParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request", "Unable to parse request body.", nil)
		return
	}
	payload, err := h.signer.Decode(params["ticket"])
	if err != nil || payload.UserID != principal.UserID {
		writeError(w, http.StatusBadRequest, "invalid-ticket", "Consent ticket is invalid or expired.", nil)
		return
	}

	if allow, _ := strconv.ParseBool(params["allow"]); !allow {
		location, err := provider.DenyRedirectURL(payload.RedirectURI, payload.State)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		http.Redirect(w, r, location, http.StatusFound)
		return
	}

	result, err := h.service.Authorize(r.Context(), principal.UserID, provider.AuthorizeRequest{
		ClientID:    payload.ClientID,
		RedirectURI: payload.RedirectURI,
		State:       payload.State,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *AuthorizeHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, provider.ErrClientNotFound):
		writeError(w, http.StatusBadRequest, "invalid-client-id", "Unknown client.", nil)
	case errors.Is(err, provider.ErrRedirectURIMismatch):
		writeError(w, http.StatusBadRequest, "redirect-uri-mismatch", "Redirect uri mismatch!", nil)
	case errors.Is(err, oauth.ErrNotAuthorized):
		writeError(w, http.StatusBadRequest, "not-authorized", "User is not authorized.", nil)
	default:
		reqID := middleware.GetReqID(r.Context())
		h.logger.Error("authorize handler error", zap.String("request_id", reqID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server-error", "internal server error", map[string]any{"request_id": reqID})
	}
}
