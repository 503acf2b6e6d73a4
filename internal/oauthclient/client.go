// Package oauthclient is a relying-party helper for talking to the provider
// with golang.org/x/oauth2.
package oauthclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/services/provider"
)

// Client performs the relying-party side of the code and refresh grants.
type Client struct {
	cfg *oauth2.Config

	// refreshes collapses concurrent refreshes of one token. The provider
	// burns a refresh token on first use, so a second request would fail.
	refreshes singleflight.Group
}

// Options describe a registered client and where the provider is mounted.
type Options struct {
	// BaseURL is the provider origin including any path prefix.
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// New returns a Client. Credentials are always posted in the form body.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	return &Client{cfg: &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/oauth/authorize",
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}}
}

// AuthCodeURL is where the user is sent to approve the client.
func (c *Client) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.cfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("grant_type", provider.GrantAuthorizationCode),
	)
	return tok, translate(err)
}

// Refresh trades a refresh token for a new pair. The old pair stops working.
// Concurrent callers holding the same refresh token share one exchange.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	v, err, _ := c.refreshes.Do(refreshToken, func() (any, error) {
		return c.cfg.Exchange(ctx, "",
			oauth2.SetAuthURLParam("grant_type", provider.GrantRefreshToken),
			oauth2.SetAuthURLParam("refresh_token", refreshToken),
		)
	})
	if err != nil {
		return nil, translate(err)
	}
	return v.(*oauth2.Token), nil
}

// HTTPClient returns a client that sends tok as a bearer credential.
func (c *Client) HTTPClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
}

// translate maps provider rejections onto *oauth.ExchangeError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		return &oauth.ExchangeError{Code: re.ErrorCode, Description: re.ErrorDescription}
	}
	return err
}
