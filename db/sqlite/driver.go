// Package sqlite opens the file-backed (or in-memory) store used by single
// node deployments and tests.
package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects GORM to the SQLite database at path. Pass ":memory:" for a
// throwaway store. GORM's own query logging stays off; the server logs
// through zap instead.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
