package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/clock"
	"github.com/bengobox/oauth-provider/internal/metrics"
	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/services/clients"
	"github.com/bengobox/oauth-provider/internal/store/memory"
)

type fixture struct {
	svc     *Service
	clients *clients.Service
	store   *memory.Store
	clock   *clock.Mock
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clk := clock.NewMock(time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC))
	auditor := audit.New(store, nil)
	m := metrics.New()
	return &fixture{
		svc: New(Dependencies{
			Store:   store,
			Config:  Config{Clock: clk},
			Auditor: auditor,
			Metrics: m,
		}),
		clients: clients.New(clients.Dependencies{
			Store:   store,
			Clock:   clk,
			Auditor: auditor,
		}),
		store:   store,
		clock:   clk,
		metrics: m,
	}
}

func (f *fixture) registerClient(t *testing.T, name string) *oauth.Client {
	t.Helper()
	c, err := f.clients.Create(context.Background(), clients.Input{
		Name:        name,
		RedirectURI: "https://" + name + ".example/cb",
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) authorize(t *testing.T, userID string, c *oauth.Client) *oauth.Authorization {
	t.Helper()
	authz, err := f.svc.CreateAuthorization(context.Background(), userID, c)
	require.NoError(t, err)
	return authz
}

func codeRequest(c *oauth.Client, code string) ExchangeRequest {
	return ExchangeRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
	}
}

func refreshRequest(c *oauth.Client, refreshToken string) ExchangeRequest {
	return ExchangeRequest{
		GrantType:    GrantRefreshToken,
		RefreshToken: refreshToken,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
	}
}

func clientsInput(name, redirectURI string) clients.Input {
	return clients.Input{Name: name, RedirectURI: redirectURI}
}
