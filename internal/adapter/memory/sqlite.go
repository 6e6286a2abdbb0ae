// Package memory persists chat conversation history in SQLite so sessions
// survive restarts. The store is append-only: one row per message, replayed
// into the LLM prompt as recent history.
package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lucasmend/askdb/internal/core/port"

	// Register the modernc sqlite driver under the name "sqlite".
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, id);
`

// SQLiteStore implements ConversationStore on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and bootstraps the
// schema. Use ":memory:" for an in-memory store in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// PRAGMAs applied at connection time via DSN query parameters.
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store %q: %w", path, err)
	}

	// A single connection keeps :memory: databases coherent (each connection
	// would otherwise get its own empty database) and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrapping sqlite store: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append records one message at the end of a session's history.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msg port.Message) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)",
		sessionID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// History returns the last limit messages of a session in chronological
// order. limit <= 0 means no limit.
func (s *SQLiteStore) History(ctx context.Context, sessionID string, limit int) ([]port.Message, error) {
	query := "SELECT role, content FROM messages WHERE session_id = ? ORDER BY id DESC"
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var msgs []port.Message
	for rows.Next() {
		var m port.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	// Newest-first from the query, oldest-first for the prompt.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NoopStore is used when conversation persistence is disabled. History is
// always empty, so every question stands alone.
type NoopStore struct{}

func (NoopStore) Append(context.Context, string, port.Message) error { return nil }

func (NoopStore) History(context.Context, string, int) ([]port.Message, error) {
	return nil, nil
}

func (NoopStore) Close() error { return nil }
