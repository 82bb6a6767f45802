package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"estatechat/internal/model"
)

// PostgresStore persists conversation turns in a relational table.
// Expected schema:
//
//	CREATE TABLE conversation_turns (
//	    id         BIGSERIAL PRIMARY KEY,
//	    session_id TEXT NOT NULL,
//	    role       TEXT NOT NULL,
//	    text       TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX idx_turns_session ON conversation_turns (session_id, id);
type PostgresStore struct {
	db        *sqlx.DB
	sessionID string
}

// ConnectPostgres opens the shared connection pool for turn persistence
func ConnectPostgres(dsn string, maxConn, maxIdleConn int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a history store bound to one session
func NewPostgresStore(db *sqlx.DB, sessionID string) *PostgresStore {
	return &PostgresStore{db: db, sessionID: sessionID}
}

// Append inserts a turn at the tail
func (s *PostgresStore) Append(ctx context.Context, turn model.Turn) error {
	query := `INSERT INTO conversation_turns (session_id, role, text) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, s.sessionID, turn.Role, turn.Text); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ReplaceLastOfRole rewrites the newest turn of the given role, appending
// when the session has none
func (s *PostgresStore) ReplaceLastOfRole(ctx context.Context, role model.Role, text string) error {
	query := `
		UPDATE conversation_turns SET text = $3
		WHERE id = (
			SELECT id FROM conversation_turns
			WHERE session_id = $1 AND role = $2
			ORDER BY id DESC LIMIT 1
		)
	`
	res, err := s.db.ExecContext(ctx, query, s.sessionID, role, text)
	if err != nil {
		return fmt.Errorf("failed to replace turn: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return s.Append(ctx, model.Turn{Role: role, Text: text})
	}
	return nil
}

// Snapshot returns the session's full history, oldest first
func (s *PostgresStore) Snapshot(ctx context.Context) ([]model.Turn, error) {
	query := `
		SELECT role, text, created_at FROM conversation_turns
		WHERE session_id = $1 ORDER BY id ASC
	`
	var turns []model.Turn
	err := s.db.SelectContext(ctx, &turns, query, s.sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []model.Turn{}, nil
		}
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	return turns, nil
}
