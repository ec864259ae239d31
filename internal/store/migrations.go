package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				id          TEXT PRIMARY KEY,
				state       TEXT NOT NULL,
				fields      TEXT NOT NULL DEFAULT '{}',
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_state ON sessions (state);
			CREATE INDEX idx_sessions_updated ON sessions (updated_at);
		`,
	},
}
