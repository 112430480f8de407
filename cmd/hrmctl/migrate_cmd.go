package main

import (
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/noah-isme/railway-hrm-api/migrations"
	"github.com/noah-isme/railway-hrm-api/pkg/config"
	"github.com/noah-isme/railway-hrm-api/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded database migrations",
	}

	run := func(action string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}

			ctx := cmd.Context()
			switch action {
			case "up":
				return goose.UpContext(ctx, db.DB, ".")
			case "down":
				return goose.DownContext(ctx, db.DB, ".")
			case "down-to":
				version, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return goose.DownToContext(ctx, db.DB, ".", version)
			default:
				return goose.StatusContext(ctx, db.DB, ".")
			}
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run("up")},
		&cobra.Command{Use: "down", Short: "Roll back the latest migration", RunE: run("down")},
		&cobra.Command{Use: "down-to <version>", Short: "Roll back to a version", Args: cobra.ExactArgs(1), RunE: run("down-to")},
		&cobra.Command{Use: "status", Short: "Show applied and pending migrations", RunE: run("status")},
	)
	return cmd
}
