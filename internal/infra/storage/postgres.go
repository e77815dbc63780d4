package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	config "github.com/inference-gateway/desktop-agent/config"
	migrations "github.com/inference-gateway/desktop-agent/internal/infra/storage/migrations"
)

// PostgresStore implements EventStore using PostgreSQL
type PostgresStore struct {
	sqlEventStore
}

func postgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)
}

// NewPostgresStore connects, verifies the server is reachable and applies
// pending migrations
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("PostgreSQL connection test failed: %w\n\n"+
			"Failed to connect to PostgreSQL. Verify:\n"+
			"  - PostgreSQL server is running at %s:%d\n"+
			"  - Database '%s' exists\n"+
			"  - User '%s' has proper permissions", err, cfg.Host, cfg.Port, cfg.Database, cfg.Username)
	}

	store := &PostgresStore{sqlEventStore{db: db, dialect: migrations.DialectPostgres}}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
