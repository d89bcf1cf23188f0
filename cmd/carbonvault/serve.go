package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carbonvault/internal/clock"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/smallbiznis/carbonvault/internal/migration"
	"github.com/smallbiznis/carbonvault/internal/observability"
	"github.com/smallbiznis/carbonvault/internal/server"
	"github.com/smallbiznis/carbonvault/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			nodeID, err := cmd.Flags().GetInt64("node-id")
			if err != nil {
				return err
			}

			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(registerSnowflake(nodeID)),
				db.Module,
				clock.Module,
				migration.Module,
				server.Module,
				fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: log.Named("fx")}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func registerSnowflake(nodeID int64) func() (*snowflake.Node, error) {
	return func() (*snowflake.Node, error) {
		return snowflake.NewNode(nodeID)
	}
}
