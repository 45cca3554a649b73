package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-pos-register/internal/database"
)

func GetSessionToken(ctx context.Context, db *sql.DB, terminalID string) (string, error) {
	var token string

	query := `
		SELECT token
		FROM register_sessions
		WHERE terminal_id = $1`

	err := db.QueryRowContext(ctx, query, terminalID).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", database.ErrSessionNotFound
		}
		return "", fmt.Errorf("get session token: %w", err)
	}

	return token, nil
}

func SaveSessionToken(ctx context.Context, db *sql.DB, terminalID, token string) error {
	query := `
		INSERT INTO register_sessions (terminal_id, token, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (terminal_id)
		DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`

	if _, err := db.ExecContext(ctx, query, terminalID, token); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

func DeleteSessionToken(ctx context.Context, db *sql.DB, terminalID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM register_sessions WHERE terminal_id = $1`, terminalID); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

// SessionStore keeps one terminal's token in Postgres so a restarted
// register resumes its session.
type SessionStore struct {
	db         *sql.DB
	terminalID string
}

func NewSessionStore(db *sql.DB, terminalID string) *SessionStore {
	return &SessionStore{db: db, terminalID: terminalID}
}

func (s *SessionStore) Load(ctx context.Context) (string, error) {
	token, err := GetSessionToken(ctx, s.db, s.terminalID)
	if errors.Is(err, database.ErrSessionNotFound) {
		return "", nil
	}
	return token, err
}

func (s *SessionStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return s.Delete(ctx)
	}
	return SaveSessionToken(ctx, s.db, s.terminalID, token)
}

func (s *SessionStore) Delete(ctx context.Context) error {
	return DeleteSessionToken(ctx, s.db, s.terminalID)
}
