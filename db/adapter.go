package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/lastlight-game/server/config"
	dbmysql "github.com/lastlight-game/server/db/mysql"
	dbsqlite "github.com/lastlight-game/server/db/sqlite"
)

const (
	ModeMemory = "memory" // in-process SQLite, for tests and local runs
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeMemory:
		return dbsqlite.Open(":memory:")
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
