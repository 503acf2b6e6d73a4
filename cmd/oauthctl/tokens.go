package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bengobox/oauth-provider/internal/oauth"
	"github.com/bengobox/oauth-provider/internal/services/provider"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tokens",
		Aliases: []string{"token"},
		Short:   "Inspect, issue and revoke access tokens",
	}
	cmd.AddCommand(newTokensListCmd(), newTokensIssueCmd(), newTokensRevokeCmd())
	return cmd
}

func newTokensListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user-id is required")
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				tokens, err := e.provider.ListUserTokens(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tokens)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "owner of the tokens")
	return cmd
}

func newTokensIssueCmd() *cobra.Command {
	var clientID, userID string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a token pair for a user without the authorization step",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" || userID == "" {
				return errors.New("--client-id and --user-id are required")
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				client, err := e.clients.GetByClientID(ctx, clientID)
				if err != nil {
					return fmt.Errorf("client %s: %w", clientID, err)
				}
				token, err := e.provider.CreateTokenForUser(ctx, client, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), provider.ExchangeResult{
					AccessToken:  token.AccessToken,
					ExpiresIn:    token.ExpiresIn(e.provider.Now()),
					RefreshToken: token.RefreshToken,
				})
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "public client_id of the client")
	cmd.Flags().StringVar(&userID, "user-id", "", "token owner")
	return cmd
}

func newTokensRevokeCmd() *cobra.Command {
	var req provider.AdminRevokeRequest
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke one token by id or every token of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				n, err := e.provider.RevokeByAdmin(ctx, req)
				if errors.Is(err, oauth.ErrNotAuthorized) {
					return errors.New("a valid --token-id or --user-id is required")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d token(s) revoked\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.TokenID, "token-id", "", "token to revoke; takes precedence over --user-id")
	cmd.Flags().StringVar(&req.UserID, "user-id", "", "revoke every token of this user")
	return cmd
}
