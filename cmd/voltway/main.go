package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/voltway/internal/clock"
	"github.com/smallbiznis/voltway/internal/config"
	"github.com/smallbiznis/voltway/internal/logger"
	"github.com/smallbiznis/voltway/internal/migration"
	"github.com/smallbiznis/voltway/internal/scheduler"
	"github.com/smallbiznis/voltway/internal/server"
	"github.com/smallbiznis/voltway/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
