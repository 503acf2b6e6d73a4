package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				entries, err := e.auditor.ListRecent(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	return cmd
}
