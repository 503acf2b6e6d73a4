package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DefaultAuthorizationTTL is the lifetime of an authorization code.
	DefaultAuthorizationTTL = time.Hour
	// DefaultTokenTTL is the nominal lifetime of an access/refresh token pair.
	DefaultTokenTTL = 90 * 24 * time.Hour

	secretBytes = 32
)

// Client is a registered third-party application.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Authorization is a short-lived, single-use authorization code issued to a
// user for a client.
type Authorization struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	OAuthClientID string `json:"oauth_client_id"`
	Code          string `json:"code"`
	ExpiresAt     int64  `json:"expires_at"`
}

// ExpiresIn returns the seconds left before the code expires.
func (a *Authorization) ExpiresIn(now time.Time) int64 {
	return expiresIn(a.ExpiresAt, now)
}

// Expired reports whether the code can no longer be exchanged.
func (a *Authorization) Expired(now time.Time) bool {
	return a.ExpiresIn(now) <= 0
}

// Token is an access/refresh token pair issued to a user for a client.
type Token struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	OAuthClientID string `json:"oauth_client_id"`
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	ExpiresAt     int64  `json:"expires_at"`
}

// ExpiresIn returns the seconds left before the access token expires.
func (t *Token) ExpiresIn(now time.Time) int64 {
	return expiresIn(t.ExpiresAt, now)
}

// Expired reports whether the access token has expired.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresIn(now) <= 0
}

func expiresIn(expiresAt int64, now time.Time) int64 {
	return expiresAt - now.Unix()
}

// ExpiryFrom returns the epoch second ttl after now.
func ExpiryFrom(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).Unix()
}

// GenerateSecret returns 32 random bytes encoded as 64 lowercase hex chars.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
