package repositories

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (or creates) the relational store and applies the schema.
// The returned pool is shared by every repository; callers acquire it per
// statement and never hold it across unrelated operations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func initSchema(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			uid             TEXT PRIMARY KEY,
			phone_number    TEXT NOT NULL,
			username        TEXT,
			profile_pic_url TEXT,
			last_seen       TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id            TEXT PRIMARY KEY,
			sender_uid    TEXT NOT NULL,
			recipient_uid TEXT NOT NULL,
			content       TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL,
			status        TEXT NOT NULL DEFAULT 'sent'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_uid, recipient_uid, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_uid, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
