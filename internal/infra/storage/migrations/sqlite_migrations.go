package migrations

// SQLiteMigrations returns the SQLite schema history in order
func SQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "Session events table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS session_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id TEXT NOT NULL,
					sequence INTEGER NOT NULL,
					event_type TEXT NOT NULL,
					timestamp DATETIME NOT NULL,
					data TEXT NOT NULL DEFAULT '{}'
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
