package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/clock"
)

// SessionCookie is the cookie the host application stores its session in.
const SessionCookie = "session"

// Principal is the user authenticated by the host application.
type Principal struct {
	UserID string
	Admin  bool
}

// Authenticator resolves the host user behind a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// SessionClaims are the claims of a host-issued session token.
type SessionClaims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// SessionVerifier validates HS256 session tokens issued by the host
// application, read from the Authorization header or the session cookie.
type SessionVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewSessionVerifier returns a verifier for tokens signed with secret.
func NewSessionVerifier(secret string, clk clock.Clock) *SessionVerifier {
	if clk == nil {
		clk = clock.System{}
	}
	return &SessionVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clk.Now),
		),
	}
}

// Authenticate implements Authenticator.
func (v *SessionVerifier) Authenticate(r *http.Request) (*Principal, error) {
	raw := bearerToken(r)
	if raw == "" {
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			raw = cookie.Value
		}
	}
	if raw == "" {
		return nil, errors.New("missing session")
	}
	token, err := v.parser.ParseWithClaims(raw, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("session invalid")
	}
	return &Principal{UserID: claims.Subject, Admin: claims.Admin}, nil
}

// Auth provides session-backed authentication middleware.
type Auth struct {
	authenticator Authenticator
	isAdmin       func(Principal) bool
}

// NewAuth creates a new instance. isAdmin decides who may manage clients
// and revoke other users' tokens.
func NewAuth(authenticator Authenticator, isAdmin func(Principal) bool) *Auth {
	if isAdmin == nil {
		isAdmin = func(p Principal) bool { return p.Admin }
	}
	return &Auth{authenticator: authenticator, isAdmin: isAdmin}
}

// RequireAuth ensures incoming requests belong to a signed-in user.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.authenticator.Authenticate(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		principal.Admin = a.isAdmin(*principal)

		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		ctx = audit.WithRequestMeta(ctx, audit.RequestMeta{
			ActorID:   principal.UserID,
			IPAddress: remoteIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin runs RequireAuth and then rejects non-admin users.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok || !principal.Admin {
			writeAuthError(w, http.StatusForbidden, "forbidden", "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             code,
		"error_description": message,
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type principalContextKey struct{}

// PrincipalFromContext extracts the user stored by RequireAuth.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}

// WithPrincipal stores principal in ctx.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}
