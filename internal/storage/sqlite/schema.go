package sqlite

const schema = `
-- Toolchain index: release → content-addressed blob
CREATE TABLE IF NOT EXISTS toolchains (
    version TEXT PRIMARY KEY,
    long_version TEXT NOT NULL DEFAULT '',
    sha256 TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    path TEXT NOT NULL,
    fetched_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_toolchains_sha256 ON toolchains(sha256);

-- Key/value settings (schema version, etc.)
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// schemaVersion is bumped whenever the toolchains table changes shape
const schemaVersion = "1"
