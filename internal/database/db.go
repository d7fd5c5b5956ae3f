package database

import (
	"os"
	"path/filepath"

	"shellpilot/internal/accesstokens"
	"shellpilot/internal/history"
	"shellpilot/internal/servers"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB opens the sqlite database at path, creating its parent directory,
// and migrates every table.
func InitDB(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})

	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&servers.Server{},
		&history.ExecutionRecord{},
		&history.CommandRecord{},
		&accesstokens.AccessToken{},
	)

	if err != nil {
		return nil, err
	}

	return db, nil
}

func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()

	if err != nil {
		return err
	}

	return sqlDB.Close()
}
