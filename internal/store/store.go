package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a record does not exist for the requesting
// owner. A record owned by another user is indistinguishable from a missing
// one.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database holding conversations and messages.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path, ensuring
// that the parent directory exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create db directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "open db at %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping db at %s", path)
	}

	return &Store{db: db}, nil
}

// Init creates the conversations and messages tables.
//
// messages.conversation_id is nullable: a NULL value marks a turn stored in
// the conversation-less degraded mode.
func (s *Store) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch()),
			updated_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_owner_updated
			ON conversations(owner_user_id, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			conversation_id TEXT,
			role TEXT NOT NULL CHECK (role IN ('user','assistant')),
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages(owner_user_id, created_at);
	`)
	if err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
