// ABOUTME: SQLite database schema for consultation storage
// ABOUTME: Creates session, snapshot fact and firing audit tables with their indexes
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Sessions table (one row per consultation)
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'AWAITING_INPUT',
    pending_question TEXT,
    result TEXT,
    result_cf REAL DEFAULT 0,
    answer_count INTEGER DEFAULT 0,
    failure_reason TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Session facts table (latest snapshot, one row per live fact in handle order)
CREATE TABLE IF NOT EXISTS session_facts (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    kind TEXT NOT NULL,
    fact_key TEXT,
    fields TEXT NOT NULL,
    PRIMARY KEY (session_id, seq)
);

-- Firings table (append-only rule firing audit log)
CREATE TABLE IF NOT EXISTS firings (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    cycle INTEGER NOT NULL,
    rule TEXT NOT NULL,
    salience INTEGER DEFAULT 0,
    bindings TEXT,
    fired_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
CREATE INDEX IF NOT EXISTS idx_firings_session ON firings(session_id, cycle);
CREATE INDEX IF NOT EXISTS idx_firings_rule ON firings(rule);
`

// SchemaVersion is stamped into PRAGMA user_version. Files written by a newer
// schema are refused rather than read with the wrong layout.
const SchemaVersion = 1
