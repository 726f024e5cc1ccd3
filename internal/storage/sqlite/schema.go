package sqlite

// Schema defines the SQLite database schema. Every statement is idempotent
// so the schema can be applied on every open.
//
// Embeddings are stored inline as little-endian float32 BLOBs; the memory
// set per agent is bounded, so similarity scans load candidate vectors and
// rank them in Go.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id         TEXT NOT NULL,
	content          TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	keywords         TEXT NOT NULL DEFAULT '[]',
	keywords_text    TEXT NOT NULL DEFAULT '',
	importance       TEXT NOT NULL DEFAULT 'medium'
	                 CHECK (importance IN ('low','medium','high','critical')),
	embedding        BLOB,
	status           TEXT NOT NULL DEFAULT 'active'
	                 CHECK (status IN ('active','archived','contradicted')),
	superseded_by    INTEGER REFERENCES memories(id),
	access_count     INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMP,
	visibility       TEXT NOT NULL DEFAULT 'private'
	                 CHECK (visibility IN ('private','shared','broadcast')),
	source_agent     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_agent_status
	ON memories(agent_id, status);

CREATE INDEX IF NOT EXISTS idx_memories_agent_category_status
	ON memories(agent_id, category, status);

CREATE INDEX IF NOT EXISTS idx_memories_status_created
	ON memories(status, created_at);

CREATE INDEX IF NOT EXISTS idx_memories_visibility
	ON memories(visibility) WHERE visibility != 'private';

CREATE TABLE IF NOT EXISTS conflict_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	winner_id   INTEGER,
	loser_id    INTEGER NOT NULL,
	similarity  REAL,
	resolution  TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conflict_log_created
	ON conflict_log(created_at);

CREATE TABLE IF NOT EXISTS maintenance_log (
	run_id       TEXT PRIMARY KEY,
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL,
	archived     INTEGER NOT NULL DEFAULT 0,
	decayed      INTEGER NOT NULL DEFAULT 0,
	consolidated INTEGER NOT NULL DEFAULT 0,
	errors       TEXT NOT NULL DEFAULT '[]'
);
`
