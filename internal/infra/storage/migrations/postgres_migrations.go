package migrations

// PostgresMigrations returns the PostgreSQL schema history in order
func PostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "Session events table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS session_events (
					id BIGSERIAL PRIMARY KEY,
					session_id VARCHAR(64) NOT NULL,
					sequence BIGINT NOT NULL,
					event_type VARCHAR(64) NOT NULL,
					timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
					data JSONB NOT NULL DEFAULT '{}'::jsonb
				);
				CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, id);
			`,
		},
		{
			Version:     "002",
			Description: "Index events by time for session listing",
			UpSQL:       `CREATE INDEX IF NOT EXISTS idx_session_events_timestamp ON session_events(timestamp DESC);`,
		},
	}
}
