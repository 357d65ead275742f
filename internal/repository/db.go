package repository

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/session-console/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to DATABASE_URL. "sqlite:<path>" opens a sqlite file,
// postgres:// and postgresql:// URLs open Postgres.
func Open(databaseURL string) (*gorm.DB, error) {
	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	raw := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(raw, "sqlite:"):
		path := strings.TrimPrefix(raw, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("parse DATABASE_URL: sqlite path is empty")
		}
		return sqlite.Open(path), nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return postgres.Open(raw), nil
	default:
		return nil, fmt.Errorf("parse DATABASE_URL: unsupported scheme in %q", raw)
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Session{}); err != nil {
		return fmt.Errorf("migrate sessions: %w", err)
	}
	return nil
}
