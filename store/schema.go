package store

// Schema contains the complete DDL for the polwatch tables. Timestamps are
// unix milliseconds.
const Schema = `
-- Snapshots: every distinct captured version of a policy
CREATE TABLE IF NOT EXISTS snapshots (
    id           TEXT PRIMARY KEY,
    policy_name  TEXT NOT NULL,
    source_url   TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    captured_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_policy ON snapshots(policy_name, captured_at);

-- Comparisons: one row per compare step that ran
CREATE TABLE IF NOT EXISTS comparisons (
    id             TEXT PRIMARY KEY,
    policy_name    TEXT NOT NULL,
    session_id     TEXT NOT NULL DEFAULT '',
    has_changes    INTEGER NOT NULL,
    counts         TEXT NOT NULL DEFAULT '{}',
    overall_impact TEXT NOT NULL,
    summary        TEXT NOT NULL,
    report_json    TEXT NOT NULL,
    compared_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comparisons_policy ON comparisons(policy_name, compared_at DESC);

-- Audit log: what happened in which session
CREATE TABLE IF NOT EXISTS audit_log (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL DEFAULT '',
    policy_name TEXT NOT NULL,
    action      TEXT NOT NULL,
    details     TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id, created_at);
`
