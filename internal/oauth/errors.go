package oauth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by repositories when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrNotAuthorized is returned when the caller may not act on a token.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrConflict is returned by repositories on unique constraint violations.
	ErrConflict = errors.New("record conflicts with an existing record")
)

// Exchange error codes returned by the token endpoint.
const (
	CodeUnsupportedGrantType     = "unsupported-grant-type"
	CodeInvalidClientCredentials = "invalid-client-credentials"
	CodeInvalidGrant             = "invalid-grant"
)

// ExchangeError is a terminal token exchange failure.
type ExchangeError struct {
	Code        string
	Description string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newExchangeError(code, description string) *ExchangeError {
	return &ExchangeError{Code: code, Description: description}
}

// Exchange failures, one per rejected step of the token endpoint.
var (
	ErrUnsupportedGrantType     = newExchangeError(CodeUnsupportedGrantType, "The grant type is not supported!")
	ErrInvalidClientCredentials = newExchangeError(CodeInvalidClientCredentials, "Invalid client credentials!")
	ErrRedirectURIMismatch      = newExchangeError(CodeInvalidGrant, "Redirect uri mismatch!")
	ErrAuthorizationInvalid     = newExchangeError(CodeInvalidGrant, "Authorization expired or invalid!")
	ErrRefreshTokenInvalid      = newExchangeError(CodeInvalidGrant, "Refresh token is invalid!")
)

// ValidationError collects field level problems with client input.
type ValidationError struct {
	Fields map[string][]string
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no problems were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
