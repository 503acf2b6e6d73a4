package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/bengobox/oauth-provider/internal/config"
	"github.com/bengobox/oauth-provider/internal/database"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Create and migrate the provider database",
	}
	cmd.AddCommand(newDBCreateCmd(), newDBMigrateCmd())
	return cmd
}

func newDBCreateCmd() *cobra.Command {
	var maintenanceDB string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the database named in OAUTH_DB_URL if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			created, name, err := createDatabase(cmd.Context(), cfg.Database.URL, maintenanceDB)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "database %q created\n", name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "database %q already exists\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&maintenanceDB, "maintenance-db", "postgres", "database to connect to while creating the target")
	return cmd
}

func createDatabase(ctx context.Context, url, maintenanceDB string) (bool, string, error) {
	connCfg, err := pgx.ParseConfig(url)
	if err != nil {
		return false, "", fmt.Errorf("parse postgres url: %w", err)
	}
	name := connCfg.Database
	if name == "" {
		return false, "", errors.New("no database name in OAUTH_DB_URL")
	}
	connCfg.Database = maintenanceDB

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return false, name, fmt.Errorf("connect to %s: %w", maintenanceDB, err)
	}
	defer conn.Close(ctx) //nolint:errcheck

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return false, name, fmt.Errorf("check database: %w", err)
	}
	if exists {
		return false, name, nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, name, fmt.Errorf("create database: %w", err)
	}
	return true, name, nil
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := database.RunMigrations(ctx, e.pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
				return nil
			})
		},
	}
}
