package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/clock"
)

const testSecret = "session-secret"

func sessionToken(t *testing.T, secret, subject string, admin bool, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestSessionVerifier(t *testing.T) {
	clk := clock.NewMock(time.Now())
	v := NewSessionVerifier(testSecret, clk)
	valid := sessionToken(t, testSecret, "7", true, clk.Now().Add(time.Hour))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		p, err := v.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "7", p.UserID)
		assert.True(t, p.Admin)
	})

	t.Run("session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: valid})
		p, err := v.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "7", p.UserID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := v.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Error(t, err)
	})

	t.Run("wrong signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, "other", "7", false, clk.Now().Add(time.Hour)))
		_, err := v.Authenticate(req)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, testSecret, "7", false, clk.Now().Add(-time.Minute)))
		_, err := v.Authenticate(req)
		assert.Error(t, err)
	})

	t.Run("no subject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, testSecret, "", false, clk.Now().Add(time.Hour)))
		_, err := v.Authenticate(req)
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	clk := clock.NewMock(time.Now())
	auth := NewAuth(NewSessionVerifier(testSecret, clk), nil)

	var seen *Principal
	var meta audit.RequestMeta
	handler := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		meta, _ = audit.RequestMetaFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejects anonymous requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized","error_description":"authentication required"}`, rec.Body.String())
	})

	t.Run("stores principal and audit metadata", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		req.Header.Set("User-Agent", "curl/8")
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, testSecret, "7", false, clk.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "7", seen.UserID)
		assert.Equal(t, audit.RequestMeta{ActorID: "7", IPAddress: "10.1.2.3", UserAgent: "curl/8"}, meta)
	})
}

func TestRequireAdmin(t *testing.T) {
	clk := clock.NewMock(time.Now())
	auth := NewAuth(NewSessionVerifier(testSecret, clk), func(p Principal) bool {
		return p.Admin || p.UserID == "root"
	})
	handler := auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name    string
		subject string
		admin   bool
		want    int
	}{
		{"admin claim", "7", true, http.StatusNoContent},
		{"configured admin id", "root", false, http.StatusNoContent},
		{"regular user", "7", false, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+sessionToken(t, testSecret, tc.subject, tc.admin, clk.Now().Add(time.Hour)))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
