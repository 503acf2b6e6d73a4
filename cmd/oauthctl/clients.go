package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bengobox/oauth-provider/internal/services/clients"
)

func newClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clients",
		Aliases: []string{"client"},
		Short:   "Register and manage OAuth clients",
	}
	cmd.AddCommand(
		newClientsCreateCmd(),
		newClientsUpdateCmd(),
		newClientsListCmd(),
		newClientsShowCmd(),
		newClientsDeleteCmd(),
	)
	return cmd
}

func newClientsCreateCmd() *cobra.Command {
	var in clients.Input
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client and print its credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				c, err := e.clients.Create(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "unique client name")
	cmd.Flags().StringVar(&in.RedirectURI, "redirect-uri", "", "http(s) redirect URI")
	return cmd
}

func newClientsUpdateCmd() *cobra.Command {
	var in clients.Input
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a client's name and redirect URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				c, err := e.clients.Update(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "unique client name")
	cmd.Flags().StringVar(&in.RedirectURI, "redirect-uri", "", "http(s) redirect URI")
	return cmd
}

func newClientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				items, err := e.clients.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
}

func newClientsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				c, err := e.clients.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
}

func newClientsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a client together with its tokens and authorizations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.clients.Destroy(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "client %s deleted\n", args[0])
				return nil
			})
		},
	}
}
