// Package consent signs the tickets that carry a pending authorization
// request from the consent screen to the approval submission.
package consent

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bengobox/oauth-provider/internal/clock"
)

// ErrInvalidTicket is returned for tickets that fail verification.
var ErrInvalidTicket = errors.New("consent ticket invalid")

// Payload captures the authorization request awaiting approval.
type Payload struct {
	UserID      string `json:"uid"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state,omitempty"`
	Nonce       string `json:"nonce"`
}

type claims struct {
	Payload
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 consent tickets.
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

// NewSigner returns a Signer. secret must not be empty.
func NewSigner(secret string, ttl time.Duration, clk clock.Clock) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("consent secret missing")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// Encode signs payload. An empty nonce is filled with random bytes.
func (s *Signer) Encode(payload Payload) (string, error) {
	if payload.Nonce == "" {
		nonce, err := randomNonce()
		if err != nil {
			return "", err
		}
		payload.Nonce = nonce
	}
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign consent ticket: %w", err)
	}
	return signed, nil
}

// Decode verifies ticket and extracts its payload.
func (s *Signer) Decode(ticket string) (*Payload, error) {
	parsed, err := s.parser.ParseWithClaims(ticket, &claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidTicket
	}
	return &c.Payload, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
