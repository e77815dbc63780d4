package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Dialect names accepted by NewRunner
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Migration is one versioned schema change
type Migration struct {
	Version     string
	Description string
	UpSQL       string
}

// Status reports whether a migration has been applied
type Status struct {
	Version     string
	Description string
	Applied     bool
}

// Runner applies migrations and tracks them in schema_migrations
type Runner struct {
	db      *sql.DB
	dialect string
}

// NewRunner creates a runner for the given dialect
func NewRunner(db *sql.DB, dialect string) *Runner {
	return &Runner{db: db, dialect: dialect}
}

// For returns the migration set of a dialect
func For(dialect string) []Migration {
	switch dialect {
	case DialectPostgres:
		return PostgresMigrations()
	default:
		return SQLiteMigrations()
	}
}

func (r *Runner) ensureTable(ctx context.Context) error {
	var ddl string
	switch r.dialect {
	case DialectSQLite:
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)`
	case DialectPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`
	default:
		return fmt.Errorf("unsupported dialect: %s", r.dialect)
	}

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
	}

	record := "INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)"
	if r.dialect == DialectPostgres {
		record = "INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)"
	}
	if _, err := tx.ExecContext(ctx, record, m.Version, m.Description, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
	}

	return tx.Commit()
}

// Apply runs every pending migration in version order and returns how many ran
func (r *Runner) Apply(ctx context.Context, migrations []Migration) (int, error) {
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}

	pending := append([]Migration(nil), migrations...)
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	count := 0
	for _, m := range pending {
		if applied[m.Version] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return count, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
		count++
	}
	return count, nil
}

// Status lists each known migration and whether it has been applied
func (r *Runner) Status(ctx context.Context, migrations []Migration) ([]Status, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]Status, 0, len(migrations))
	for _, m := range migrations {
		status = append(status, Status{Version: m.Version, Description: m.Description, Applied: applied[m.Version]})
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Version < status[j].Version })
	return status, nil
}
