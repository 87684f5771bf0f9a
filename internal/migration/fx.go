package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/voltway/internal/config"
	"github.com/smallbiznis/voltway/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if err := RunMigrations(conn); err != nil {
			return err
		}
		if cfg.SeedDefaults {
			return seed.EnsureDefaults(conn, genID)
		}
		return nil
	}),
)
