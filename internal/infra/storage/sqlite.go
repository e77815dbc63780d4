package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	config "github.com/inference-gateway/desktop-agent/config"
	migrations "github.com/inference-gateway/desktop-agent/internal/infra/storage/migrations"
)

// SQLiteStore implements EventStore using SQLite
type SQLiteStore struct {
	sqlEventStore
	path string
}

// NewSQLiteStore opens the database file and applies pending migrations
func NewSQLiteStore(cfg config.SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		sqlEventStore: sqlEventStore{db: db, dialect: migrations.DialectSQLite},
		path:          cfg.Path,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.path
}
