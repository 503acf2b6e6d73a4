package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/services/clients"
)

// ClientService describes the client registry used by the admin API.
type ClientService interface {
	Create(ctx context.Context, in clients.Input) (*oauth.Client, error)
	Update(ctx context.Context, id string, in clients.Input) (*oauth.Client, error)
	Destroy(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*oauth.Client, error)
	List(ctx context.Context) ([]*oauth.Client, error)
}

// ClientsHandler provides the admin client registration API. Routes are
// expected behind an admin-only middleware.
type ClientsHandler struct {
	service ClientService
	logger  *zap.Logger
}

// NewClientsHandler constructs a handler.
func NewClientsHandler(service ClientService, logger *zap.Logger) *ClientsHandler {
	return &ClientsHandler{service: service, logger: logger}
}

// Index lists every registered client.
func (h *ClientsHandler) Index(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": items})
}

// Create registers a client and returns it with fresh credentials.
func (h *ClientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req clients.Input
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request", "invalid JSON payload", nil)
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Show returns one client by id.
func (h *ClientsHandler) Show(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update changes a client's name and redirect URI. Serves PUT and PATCH.
func (h *ClientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req clients.Input
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request", "invalid JSON payload", nil)
		return
	}
	c, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Destroy removes a client with its tokens and authorizations.
func (h *ClientsHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Destroy(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientsHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *oauth.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make(map[string]any, len(verr.Fields))
		for field, msgs := range verr.Fields {
			details[field] = msgs
		}
		writeError(w, http.StatusUnprocessableEntity, "validation-failed", "client is invalid", details)
	case errors.Is(err, oauth.ErrNotFound):
		writeError(w, http.StatusNotFound, "not-found", "client not found", nil)
	default:
		reqID := middleware.GetReqID(r.Context())
		h.logger.Error("clients handler error", zap.String("request_id", reqID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server-error", "internal server error", map[string]any{"request_id": reqID})
	}
}
