package sqlite

// Schema creates the tables used by SQLiteStore. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	bio           TEXT NOT NULL DEFAULT '',
	profile_pic   TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	sender_id    TEXT NOT NULL REFERENCES users(id),
	recipient_id TEXT NOT NULL REFERENCES users(id),
	text         TEXT NOT NULL DEFAULT '',
	image        TEXT NOT NULL DEFAULT '',
	seen         BOOLEAN NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, recipient_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages(recipient_id, seen);
`
