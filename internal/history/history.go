// Package history persists fetched digests and chat transcripts in a local
// SQLite database under the user data directory.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/scoutpulse/pulse/internal/session"
)

const (
	dataDirName = "scout-pulse"
	dbFileName  = "history.db"

	// timeLayout is fixed-width so lexicographic ORDER BY created_at is
	// also chronological.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS digests (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	article_count INTEGER NOT NULL,
	raw           TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// DigestRecord is one stored digest snapshot.
type DigestRecord struct {
	ID           string
	Title        string
	ArticleCount int
	Raw          string
	CreatedAt    time.Time
}

// Store wraps the SQLite database holding digests and transcripts.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// DefaultPath returns the database location under $XDG_DATA_HOME, falling
// back to ~/.local/share.
func DefaultPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, dataDirName, dbFileName), nil
}

// Open opens (creating if needed) the database at path and prepares the
// schema. SQLite supports one writer at a time, so the pool is pinned to a
// single connection.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, builder: sq.StatementBuilder}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SaveDigest stores one digest snapshot.
func (s *Store) SaveDigest(ctx context.Context, rec DigestRecord) error {
	_, err := s.builder.
		Insert("digests").
		Columns("id", "title", "article_count", "raw", "created_at").
		Values(rec.ID, rec.Title, rec.ArticleCount, rec.Raw, rec.CreatedAt.UTC().Format(timeLayout)).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to save digest: %w", err)
	}
	return nil
}

// ListDigests returns the most recent digests, newest first.
func (s *Store) ListDigests(ctx context.Context, limit int) ([]DigestRecord, error) {
	query := s.builder.
		Select("id", "title", "article_count", "raw", "created_at").
		From("digests").
		OrderBy("created_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query digests: %w", err)
	}
	defer rows.Close()

	records := make([]DigestRecord, 0)
	for rows.Next() {
		rec, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// LastDigest returns the most recently stored digest, or sql.ErrNoRows
// when the store is empty.
func (s *Store) LastDigest(ctx context.Context) (DigestRecord, error) {
	rows, err := s.builder.
		Select("id", "title", "article_count", "raw", "created_at").
		From("digests").
		OrderBy("created_at DESC").
		Limit(1).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return DigestRecord{}, fmt.Errorf("failed to query last digest: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return DigestRecord{}, fmt.Errorf("rows iteration: %w", err)
		}
		return DigestRecord{}, sql.ErrNoRows
	}
	return scanDigest(rows)
}

func scanDigest(rows *sql.Rows) (DigestRecord, error) {
	var rec DigestRecord
	var createdAt string
	if err := rows.Scan(&rec.ID, &rec.Title, &rec.ArticleCount, &rec.Raw, &createdAt); err != nil {
		return DigestRecord{}, fmt.Errorf("failed to scan digest: %w", err)
	}

	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return DigestRecord{}, fmt.Errorf("failed to parse digest timestamp: %w", err)
	}
	rec.CreatedAt = parsed
	return rec, nil
}

// SaveMessages appends chat messages to the transcript of one session.
func (s *Store) SaveMessages(ctx context.Context, sessionID string, msgs []session.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	insert := s.builder.
		Insert("messages").
		Columns("id", "session_id", "role", "content", "created_at")
	for _, msg := range msgs {
		insert = insert.Values(msg.ID, sessionID, msg.Role, msg.Content, msg.CreatedAt.UTC().Format(timeLayout))
	}

	if _, err := insert.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	return nil
}

// Transcript returns the stored messages of one session in insertion
// order.
func (s *Store) Transcript(ctx context.Context, sessionID string) ([]session.Message, error) {
	rows, err := s.builder.
		Select("id", "role", "content", "created_at").
		From("messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	msgs := make([]session.Message, 0)
	for rows.Next() {
		var msg session.Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		parsed, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp: %w", err)
		}
		msg.CreatedAt = parsed
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return msgs, nil
}
