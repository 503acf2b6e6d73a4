package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bengobox/oauth-provider/internal/httpapi/handlers"
)

// RouterDeps defines router construction dependencies.
type RouterDeps struct {
	// PathPrefix is mounted in front of /oauth.
	PathPrefix     string
	AllowedOrigins []string

	Health         *handlers.HealthHandler
	Docs           *handlers.DocsHandler
	MetricsHandler http.Handler

	Token      *handlers.TokenHandler
	Authorize  *handlers.AuthorizeHandler
	UserTokens *handlers.UserTokensHandler
	Clients    *handlers.ClientsHandler

	RequireAuth    func(http.Handler) http.Handler
	RequireAdmin   func(http.Handler) http.Handler
	RateLimitToken func(http.Handler) http.Handler
}

// NewRouter wires HTTP routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Live)
		r.Get("/readyz", deps.Health.Ready)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.Docs != nil {
		r.Get("/openapi.json", deps.Docs.Spec)
		r.Get("/docs", deps.Docs.UI)
		r.Get("/docs/*", deps.Docs.UI)
	}

	mount := strings.TrimRight(deps.PathPrefix, "/") + "/oauth"
	r.Route(mount, func(r chi.Router) {
		if deps.Token != nil {
			token := r.With()
			if deps.RateLimitToken != nil {
				token = r.With(deps.RateLimitToken)
			}
			token.Post("/token", deps.Token.Token)
			r.Get("/token_info", deps.Token.TokenInfo)
		}

		r.Group(func(r chi.Router) {
			if deps.RequireAuth != nil {
				r.Use(deps.RequireAuth)
			}
			if deps.Authorize != nil {
				r.Get("/authorize", deps.Authorize.Show)
				r.Post("/authorize", deps.Authorize.Approve)
			}
			if deps.UserTokens != nil {
				r.Get("/user_tokens", deps.UserTokens.List)
				r.Delete("/user_tokens/revoke/{tokenID}", deps.UserTokens.Revoke)
			}
		})

		// RequireAdmin authenticates on its own.
		r.Group(func(r chi.Router) {
			if deps.RequireAdmin != nil {
				r.Use(deps.RequireAdmin)
			}
			if deps.UserTokens != nil {
				r.Delete("/user_tokens/revoke_by_admin", deps.UserTokens.RevokeByAdmin)
			}
			if deps.Clients != nil {
				r.Route("/clients", func(r chi.Router) {
					r.Get("/", deps.Clients.Index)
					r.Post("/", deps.Clients.Create)
					r.Get("/{id}", deps.Clients.Show)
					r.Put("/{id}", deps.Clients.Update)
					r.Patch("/{id}", deps.Clients.Update)
					r.Delete("/{id}", deps.Clients.Destroy)
				})
			}
		})
	})

	return r
}
