package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/bengobox/oauth-provider/internal/oauthclient"
)

type exchangeOptions struct {
	oauthclient.Options
}

func newExchangeCmd() *cobra.Command {
	opts := &exchangeOptions{}
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Call the token endpoint as a registered client",
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.BaseURL, "base-url", "http://localhost:4102", "provider origin including any path prefix")
	flags.StringVar(&opts.ClientID, "client-id", "", "client_id")
	flags.StringVar(&opts.ClientSecret, "client-secret", "", "client_secret")
	flags.StringVar(&opts.RedirectURI, "redirect-uri", "", "registered redirect URI")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "url STATE",
			Short: "Print the authorization URL for the client",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				state := ""
				if len(args) == 1 {
					state = args[0]
				}
				cmd.Println(oauthclient.New(opts.Options).AuthCodeURL(state))
				return nil
			},
		},
		&cobra.Command{
			Use:   "code CODE",
			Short: "Exchange an authorization code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := opts.validate(); err != nil {
					return err
				}
				tok, err := oauthclient.New(opts.Options).Exchange(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tokenView(tok))
			},
		},
		&cobra.Command{
			Use:   "refresh REFRESH_TOKEN",
			Short: "Exchange a refresh token for a new pair",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := opts.validate(); err != nil {
					return err
				}
				tok, err := oauthclient.New(opts.Options).Refresh(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tokenView(tok))
			},
		},
	)
	return cmd
}

func (o *exchangeOptions) validate() error {
	if o.ClientID == "" || o.ClientSecret == "" || o.RedirectURI == "" {
		return errors.New("--client-id, --client-secret and --redirect-uri are required")
	}
	return nil
}

func tokenView(tok *oauth2.Token) map[string]any {
	return map[string]any{
		"access_token":  tok.AccessToken,
		"refresh_token": tok.RefreshToken,
		"expiry":        tok.Expiry.UTC().Format(time.RFC3339),
	}
}
