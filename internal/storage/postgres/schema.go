package postgres

// Schema defines the PostgreSQL schema. All statements are idempotent.
// The embedding is stored as BYTEA (little-endian float32) on every server;
// MigrationPgvector adds a native vector column when the extension exists.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id               BIGSERIAL PRIMARY KEY,
	agent_id         TEXT NOT NULL,
	content          TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	keywords         JSONB NOT NULL DEFAULT '[]',
	keywords_text    TEXT NOT NULL DEFAULT '',
	importance       TEXT NOT NULL DEFAULT 'medium'
	                 CHECK (importance IN ('low','medium','high','critical')),
	embedding        BYTEA,
	status           TEXT NOT NULL DEFAULT 'active'
	                 CHECK (status IN ('active','archived','contradicted')),
	superseded_by    BIGINT REFERENCES memories(id),
	access_count     INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMPTZ,
	visibility       TEXT NOT NULL DEFAULT 'private'
	                 CHECK (visibility IN ('private','shared','broadcast')),
	source_agent     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_memories_agent_status
	ON memories(agent_id, status);

CREATE INDEX IF NOT EXISTS idx_memories_agent_category_status
	ON memories(agent_id, category, status);

CREATE INDEX IF NOT EXISTS idx_memories_visibility
	ON memories(visibility) WHERE visibility != 'private';

CREATE TABLE IF NOT EXISTS conflict_log (
	id          BIGSERIAL PRIMARY KEY,
	winner_id   BIGINT,
	loser_id    BIGINT NOT NULL,
	similarity  DOUBLE PRECISION,
	resolution  TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS maintenance_log (
	run_id       TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	archived     INTEGER NOT NULL DEFAULT 0,
	decayed      INTEGER NOT NULL DEFAULT 0,
	consolidated INTEGER NOT NULL DEFAULT 0,
	errors       JSONB NOT NULL DEFAULT '[]'
);
`

// MigrationPgvector adds the native vector column and cosine index. Applied
// only when the pgvector extension is installed.
const MigrationPgvector = `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_name = 'memories' AND column_name = 'embedding_vec'
	) THEN
		ALTER TABLE memories ADD COLUMN embedding_vec vector;
	END IF;
END $$;

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes WHERE indexname = 'idx_memories_vec_cosine'
	) THEN
		EXECUTE 'CREATE INDEX idx_memories_vec_cosine ON memories USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)';
	END IF;
END $$;
`
