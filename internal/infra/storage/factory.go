package storage

import (
	"fmt"

	config "github.com/inference-gateway/desktop-agent/config"
)

// NewStorage creates the event store selected by cfg.Type
func NewStorage(cfg config.StorageConfig) (EventStore, error) {
	switch cfg.Type {
	case "", "jsonl":
		return NewJSONLStore(cfg.JSONL)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite)
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
