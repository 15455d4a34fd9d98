package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" driver
)

// SQLiteStore is the local/dev conversation store, used when no
// POSTGRES_URL is configured. Its schema mirrors the original prototype's
// conversations table, including the sentiment_score and latency_ms
// analytics columns added by that prototype's schema migration.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if absent) a SQLite conversation database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if err = migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			sentiment_score REAL,
			latency_ms INTEGER
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conversations_user_id ON conversations(user_id, created_at)`)
	return err
}

// ReadHistory returns the most recent turns for a user, oldest first.
func (s *SQLiteStore) ReadHistory(ctx context.Context, userID string, limit int) ([]ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT role, content, created_at FROM conversations
			WHERE user_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		) recent ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var turns []ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		if err = rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// AppendTurn inserts a new conversation turn with optional sentiment and latency.
func (s *SQLiteStore) AppendTurn(ctx context.Context, userID, role, content string, sentiment *float64, latencyMs *int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, role, content, created_at, sentiment_score, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, role, content, time.Now().UTC(), sentiment, latencyMs,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
