package provider

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengobox/oauth-provider/internal/oauth"
)

func assertExchangeError(t *testing.T, err error, code, description string) {
	t.Helper()
	var exErr *oauth.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, code, exErr.Code)
	if description != "" {
		assert.Equal(t, description, exErr.Description)
	}
}

func TestExchangeAuthorizationCodeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.registerClient(t, "ci")
	assert.Regexp(t, `^[0-9a-f]{64}$`, c.ClientID)
	assert.Regexp(t, `^[0-9a-f]{64}$`, c.ClientSecret)

	authz := f.authorize(t, "7", c)
	assert.Regexp(t, `^[0-9a-f]{64}$`, authz.Code)
	assert.Equal(t, f.clock.Now().Unix()+3600, authz.ExpiresAt)

	res, err := f.svc.Exchange(ctx, codeRequest(c, authz.Code))
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{64}$`, res.AccessToken)
	assert.Regexp(t, `^[0-9a-f]{64}$`, res.RefreshToken)
	assert.Equal(t, int64(7776000), res.ExpiresIn)

	tokens, err := f.store.Tokens().ListByUser(ctx, "7")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, c.ID, tokens[0].OAuthClientID)

	_, err = f.store.Authorizations().FindByCode(ctx, authz.Code)
	assert.ErrorIs(t, err, oauth.ErrNotFound)

	_, err = f.svc.Exchange(ctx, codeRequest(c, authz.Code))
	assertExchangeError(t, err, oauth.CodeInvalidGrant, "Authorization expired or invalid!")

	expected := `
# HELP oauth_provider_token_exchanges_total Token endpoint requests by grant type and outcome.
# TYPE oauth_provider_token_exchanges_total counter
oauth_provider_token_exchanges_total{grant_type="authorization-code",outcome="invalid-grant"} 1
oauth_provider_token_exchanges_total{grant_type="authorization-code",outcome="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "oauth_provider_token_exchanges_total"))
}

func TestExchangeFailuresBurnTheCode(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*ExchangeRequest)
		code   string
	}{
		{"unsupported grant", func(r *ExchangeRequest) { r.GrantType = "password" }, oauth.CodeUnsupportedGrantType},
		{"underscored grant", func(r *ExchangeRequest) { r.GrantType = "authorization_code" }, oauth.CodeUnsupportedGrantType},
		{"wrong secret", func(r *ExchangeRequest) { r.ClientSecret = "nope" }, oauth.CodeInvalidClientCredentials},
		{"unknown client", func(r *ExchangeRequest) { r.ClientID = "nope" }, oauth.CodeInvalidClientCredentials},
		{"missing client", func(r *ExchangeRequest) { r.ClientID = "" }, oauth.CodeInvalidClientCredentials},
		{"redirect mismatch", func(r *ExchangeRequest) { r.RedirectURI += "/other" }, oauth.CodeInvalidGrant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.registerClient(t, "ci")
			authz := f.authorize(t, "7", c)

			req := codeRequest(c, authz.Code)
			tc.mutate(&req)
			_, err := f.svc.Exchange(ctx, req)
			assertExchangeError(t, err, tc.code, "")

			_, err = f.svc.Exchange(ctx, codeRequest(c, authz.Code))
			assertExchangeError(t, err, oauth.CodeInvalidGrant, "Authorization expired or invalid!")
		})
	}
}

func TestExchangeRedirectURIPinning(t *testing.T) {
	f := newFixture(t)
	c := f.registerClient(t, "ci")
	authz := f.authorize(t, "7", c)

	req := codeRequest(c, authz.Code)
	req.RedirectURI = "https://ci.example/cb?extra=1"
	_, err := f.svc.Exchange(context.Background(), req)
	assertExchangeError(t, err, oauth.CodeInvalidGrant, "Redirect uri mismatch!")
}

func TestExchangeExpiryBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("one second before expiry", func(t *testing.T) {
		f := newFixture(t)
		c := f.registerClient(t, "ci")
		authz := f.authorize(t, "7", c)
		f.clock.Advance(time.Hour - time.Second)

		_, err := f.svc.Exchange(ctx, codeRequest(c, authz.Code))
		assert.NoError(t, err)
	})

	t.Run("at expiry", func(t *testing.T) {
		f := newFixture(t)
		c := f.registerClient(t, "ci")
		authz := f.authorize(t, "7", c)
		f.clock.Advance(time.Hour)

		_, err := f.svc.Exchange(ctx, codeRequest(c, authz.Code))
		assertExchangeError(t, err, oauth.CodeInvalidGrant, "Authorization expired or invalid!")
	})
}

func TestExchangeCodeOfAnotherClient(t *testing.T) {
	f := newFixture(t)
	owner := f.registerClient(t, "owner")
	thief := f.registerClient(t, "thief")
	authz := f.authorize(t, "7", owner)

	_, err := f.svc.Exchange(context.Background(), codeRequest(thief, authz.Code))
	assertExchangeError(t, err, oauth.CodeInvalidGrant, "Authorization expired or invalid!")
}

func TestSingleLiveTokenPerUserAndClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.registerClient(t, "ci")
	other := f.registerClient(t, "other")

	first, err := f.svc.Exchange(ctx, codeRequest(c, f.authorize(t, "7", c).Code))
	require.NoError(t, err)
	_, err = f.svc.Exchange(ctx, codeRequest(other, f.authorize(t, "7", other).Code))
	require.NoError(t, err)
	second, err := f.svc.Exchange(ctx, codeRequest(c, f.authorize(t, "7", c).Code))
	require.NoError(t, err)

	tokens, err := f.store.Tokens().ListByClient(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, second.AccessToken, tokens[0].AccessToken)

	_, err = f.store.Tokens().FindByAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, oauth.ErrNotFound)

	others, err := f.store.Tokens().ListByClient(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, others, 1, "tokens for other clients survive")
}

func TestConcurrentCodeExchange(t *testing.T) {
	f := newFixture(t)
	c := f.registerClient(t, "ci")
	authz := f.authorize(t, "7", c)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Exchange(context.Background(), codeRequest(c, authz.Code)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	tokens, err := f.store.Tokens().ListByUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestExchangeRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.registerClient(t, "ci")
	issued, err := f.svc.Exchange(ctx, codeRequest(c, f.authorize(t, "7", c).Code))
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	refreshed, err := f.svc.Exchange(ctx, refreshRequest(c, issued.RefreshToken))
	require.NoError(t, err)
	assert.NotEqual(t, issued.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, issued.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, int64(7776000), refreshed.ExpiresIn)

	_, err = f.svc.ValidateAccessToken(ctx, issued.AccessToken)
	assert.ErrorIs(t, err, oauth.ErrNotFound, "old access token dies with its refresh token")

	_, err = f.svc.Exchange(ctx, refreshRequest(c, issued.RefreshToken))
	assertExchangeError(t, err, oauth.CodeInvalidGrant, "Refresh token is invalid!")

	tokens, err := f.store.Tokens().ListByUser(ctx, "7")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "7", tokens[0].UserID)
	assert.Equal(t, c.ID, tokens[0].OAuthClientID)
}

func TestExchangeRefreshTokenFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong client burns the token", func(t *testing.T) {
		f := newFixture(t)
		owner := f.registerClient(t, "owner")
		thief := f.registerClient(t, "thief")
		issued, err := f.svc.Exchange(ctx, codeRequest(owner, f.authorize(t, "7", owner).Code))
		require.NoError(t, err)

		_, err = f.svc.Exchange(ctx, refreshRequest(thief, issued.RefreshToken))
		assertExchangeError(t, err, oauth.CodeInvalidGrant, "Refresh token is invalid!")

		_, err = f.svc.Exchange(ctx, refreshRequest(owner, issued.RefreshToken))
		assertExchangeError(t, err, oauth.CodeInvalidGrant, "Refresh token is invalid!")
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		f := newFixture(t)
		c := f.registerClient(t, "ci")
		_, err := f.svc.Exchange(ctx, refreshRequest(c, "deadbeef"))
		assertExchangeError(t, err, oauth.CodeInvalidGrant, "Refresh token is invalid!")
	})

	t.Run("expired tokens can still be refreshed", func(t *testing.T) {
		f := newFixture(t)
		c := f.registerClient(t, "ci")
		issued, err := f.svc.Exchange(ctx, codeRequest(c, f.authorize(t, "7", c).Code))
		require.NoError(t, err)
		f.clock.Advance(100 * 24 * time.Hour)

		_, err = f.svc.Exchange(ctx, refreshRequest(c, issued.RefreshToken))
		assert.NoError(t, err)
	})
}
