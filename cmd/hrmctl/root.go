package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/railway-hrm-api/internal/app"
	"github.com/noah-isme/railway-hrm-api/pkg/config"
	"github.com/noah-isme/railway-hrm-api/pkg/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hrmctl",
		Short:         "Railway HRM maintenance tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newMigrateCmd(), newOfficesCmd(), newStagingCmd())
	return cmd
}

// loadApp builds the application graph from the environment.
func loadApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		_ = logr.Sync()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		_ = logr.Sync()
	}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
