package main

import (
	"context"

	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/smallbiznis/carbonvault/internal/migration"
	"github.com/smallbiznis/carbonvault/internal/observability"
	"github.com/smallbiznis/carbonvault/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			if err := app.Err(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(ctx)
		},
	}
}
