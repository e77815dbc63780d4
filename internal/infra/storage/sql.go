package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	migrations "github.com/inference-gateway/desktop-agent/internal/infra/storage/migrations"
)

// sqliteTimeFormat has a fixed-width fraction so stored text sorts by time
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// sqlEventStore holds the queries shared by the SQLite and PostgreSQL stores
type sqlEventStore struct {
	db      *sql.DB
	dialect string
}

func (s *sqlEventStore) migrate(ctx context.Context) error {
	runner := migrations.NewRunner(s.db, s.dialect)
	if _, err := runner.Apply(ctx, migrations.For(s.dialect)); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", s.dialect, err)
	}
	return nil
}

// bind rewrites ? placeholders for PostgreSQL
func (s *sqlEventStore) bind(query string) string {
	if s.dialect != migrations.DialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *sqlEventStore) timeArg(t time.Time) any {
	if s.dialect == migrations.DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeFormat)
}

func (s *sqlEventStore) Append(ctx context.Context, event domain.SessionEvent) error {
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.bind(`
		INSERT INTO session_events (session_id, sequence, event_type, timestamp, data)
		VALUES (?, ?, ?, ?, ?)`),
		event.SessionID, event.Sequence, event.Type, s.timeArg(event.Timestamp), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *sqlEventStore) Load(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT sequence, event_type, timestamp, data
		FROM session_events WHERE session_id = ? ORDER BY id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.SessionEvent
	for rows.Next() {
		var (
			event   = domain.SessionEvent{SessionID: sessionID}
			ts      string
			payload string
		)
		if err := rows.Scan(&event.Sequence, &event.Type, &ts, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if event.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return events, nil
}

func (s *sqlEventStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT session_id, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM session_events
		GROUP BY session_id
		ORDER BY MAX(timestamp) DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []SessionSummary
	for rows.Next() {
		var (
			summary     SessionSummary
			first, last string
		)
		if err := rows.Scan(&summary.ID, &summary.EventCount, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		if summary.FirstEvent, err = parseTime(first); err != nil {
			return nil, err
		}
		if summary.LastEvent, err = parseTime(last); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *sqlEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlEventStore) Close() error {
	return s.db.Close()
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", v, err)
	}
	return t, nil
}
