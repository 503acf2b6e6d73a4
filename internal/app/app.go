package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/cache"
	"github.com/bengobox/oauth-provider/internal/clock"
	"github.com/bengobox/oauth-provider/internal/config"
	"github.com/bengobox/oauth-provider/internal/database"
	"github.com/bengobox/oauth-provider/internal/httpapi"
	"github.com/bengobox/oauth-provider/internal/httpapi/handlers"
	httpmiddleware "github.com/bengobox/oauth-provider/internal/httpapi/middleware"
	"github.com/bengobox/oauth-provider/internal/metrics"
	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/oauth/consent"
	"github.com/bengobox/oauth-provider/internal/services/clients"
	"github.com/bengobox/oauth-provider/internal/services/provider"
	"github.com/bengobox/oauth-provider/internal/store/postgres"
)

// App wires core dependencies and exposes server lifecycle controls.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	httpServer *http.Server
}

// New constructs the application.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	redisClient, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, err
	}

	handler, err := NewHandler(HandlerDeps{
		Config:  cfg,
		Store:   postgres.New(pool),
		Redis:   redisClient,
		Clock:   clock.System{},
		Metrics: metrics.New(),
		Logger:  logger,
		Checks: map[string]handlers.Pinger{
			"postgres": handlers.PingFunc(pool.Ping),
		},
	})
	if err != nil {
		pool.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		httpServer: server,
	}, nil
}

// Store is what the HTTP layer needs from persistence.
type Store interface {
	oauth.Store
	audit.Sink
}

// HandlerDeps are the inputs of NewHandler.
type HandlerDeps struct {
	Config  *config.Config
	Store   Store
	Redis   *redis.Client
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Checks  map[string]handlers.Pinger
}

// NewHandler builds the services and returns the routed HTTP handler.
func NewHandler(deps HandlerDeps) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}

	auditor := audit.New(deps.Store, logger)

	clientService := clients.New(clients.Dependencies{
		Store:   deps.Store,
		Clock:   clk,
		Auditor: auditor,
		Metrics: deps.Metrics,
		Logger:  logger,
	})
	providerService := provider.New(provider.Dependencies{
		Store: deps.Store,
		Config: provider.Config{
			Clock:            clk,
			AuthorizationTTL: cfg.Provider.AuthorizationTTL,
			TokenTTL:         cfg.Provider.TokenTTL,
		},
		Auditor: auditor,
		Metrics: deps.Metrics,
		Logger:  logger,
	})

	signer, err := consent.NewSigner(cfg.Security.ConsentSecret, cfg.Security.ConsentTTL, clk)
	if err != nil {
		return nil, err
	}

	authMiddleware := httpmiddleware.NewAuth(
		httpmiddleware.NewSessionVerifier(cfg.Security.SessionSecret, clk),
		func(p httpmiddleware.Principal) bool {
			return p.Admin || cfg.Provider.IsAdmin(p.UserID)
		},
	)

	routerDeps := httpapi.RouterDeps{
		PathPrefix:     cfg.Provider.PathPrefix,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Health:         handlers.NewHealthHandler(clk, deps.Checks),
		Docs:           handlers.NewDocsHandler("OAuth Provider API", "/openapi.json"),
		Token:          handlers.NewTokenHandler(providerService, logger),
		Authorize:      handlers.NewAuthorizeHandler(providerService, signer, logger),
		UserTokens:     handlers.NewUserTokensHandler(providerService, cfg.Provider.PathPrefix, logger),
		Clients:        handlers.NewClientsHandler(clientService, logger),
		RequireAuth:    authMiddleware.RequireAuth,
		RequireAdmin:   authMiddleware.RequireAdmin,
	}
	if deps.Metrics != nil {
		routerDeps.MetricsHandler = deps.Metrics.Handler()
	}
	if deps.Redis != nil && cfg.Provider.TokenRateLimit > 0 {
		limiter := httpmiddleware.NewRateLimiter(
			httpmiddleware.RedisCounter{Client: deps.Redis},
			cfg.Redis.Namespace,
			deps.Metrics,
			logger,
		)
		routerDeps.RateLimitToken = limiter.Limit("token", cfg.Provider.TokenRateLimit, cfg.Provider.TokenRateWindow, remoteHost)
	}
	return httpapi.NewRouter(routerDeps), nil
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Run starts the HTTP server.
func (a *App) Run() error {
	a.logger.Info("starting HTTP server",
		zap.String("addr", a.httpServer.Addr),
		zap.String("path_prefix", a.cfg.Provider.PathPrefix),
	)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes resources.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownErr := a.httpServer.Shutdown(ctx)

	a.pool.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	}
	return shutdownErr
}
