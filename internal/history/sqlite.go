// Package history is the durable ledger of post attempts: one row per
// platform upload, successful or not.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"autopost-go/internal/agent"
	"autopost-go/internal/history/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements agent.HistoryStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ agent.HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the ledger database.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite default is OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Migrate brings the ledger schema to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the ledger schema is current.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// RecordPost inserts one post attempt.
func (s *SQLiteStore) RecordPost(ctx context.Context, p *agent.PostRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_history (id, agent, group_name, video_url, platform, success, post_url, error, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Agent, p.Group, p.VideoURL, p.Platform, boolToInt(p.Success), p.PostURL, p.Error, p.Attempts, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting post record: %w", err)
	}
	return nil
}

// RecentByAgent returns the newest post attempts for an agent, most recent
// first.
func (s *SQLiteStore) RecentByAgent(ctx context.Context, agentName string, limit int) ([]*agent.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, group_name, video_url, platform, success, post_url, error, attempts, created_at
		FROM post_history
		WHERE agent = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		agentName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying post history: %w", err)
	}
	defer rows.Close()

	var records []*agent.PostRecord
	for rows.Next() {
		var p agent.PostRecord
		var success int
		if err := rows.Scan(&p.ID, &p.Agent, &p.Group, &p.VideoURL, &p.Platform, &success, &p.PostURL, &p.Error, &p.Attempts, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning post record: %w", err)
		}
		p.Success = success != 0
		records = append(records, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating post history: %w", err)
	}
	return records, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
