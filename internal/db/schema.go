package db

// Schema is the DDL for the crosslist journal database.
const Schema = `
CREATE TABLE IF NOT EXISTS journal (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT NOT NULL,
    kind         TEXT NOT NULL,
    platform     TEXT NOT NULL,
    mail_id      TEXT,
    item_id      TEXT,
    tracking_id  TEXT,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_run ON journal(run_id);
CREATE INDEX IF NOT EXISTS idx_journal_kind ON journal(kind, created_at);
`
