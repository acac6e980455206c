package journal

// Schema contains the SQLite journal schema.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,       -- one monitor run
    worker TEXT NOT NULL,
    kind TEXT NOT NULL,             -- 'status', 'power_cycle', 'failsafe', 'error'
    online INTEGER,                 -- status events only
    last_seen_seconds INTEGER,      -- status events only
    failures INTEGER NOT NULL DEFAULT 0,
    message TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_worker ON events(worker, created_at);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// Migrations maps a version to the statements that bring the previous
// version up to it.
var Migrations = map[int]string{}
