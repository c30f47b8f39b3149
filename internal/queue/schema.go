package queue

const schemaVersion = "1"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_info (
    version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queues (
    name TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queue_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    queue TEXT NOT NULL,
    body TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'ready',
    delivery_count INTEGER NOT NULL DEFAULT 0,
    enqueued_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    lease_expires_at TEXT,
    last_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_queue_messages_ready
    ON queue_messages (queue, state);
`
