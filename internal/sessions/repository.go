package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"accesslearn/internal/database"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotSessionOwner is returned when a close is attempted by a caller
	// who does not own the session
	ErrNotSessionOwner = errors.New("session does not belong to caller")
)

// Repository handles all database operations for learning sessions
type Repository struct {
	db database.Service
}

// NewRepository creates a new sessions repository
func NewRepository(db database.Service) *Repository {
	return &Repository{db: db}
}

// Insert stores a newly opened session
func (r *Repository) Insert(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO sessions (session_id, user_id, login_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := r.db.Exec(ctx, query, s.SessionID, s.UserID, s.LoginAt)
	if err != nil {
		log.Printf("Error inserting session: %v", err)
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetByID retrieves a single session by ID
func (r *Repository) GetByID(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	query := `
		SELECT session_id, user_id, login_at, logout_at, duration_minutes, created_at
		FROM sessions
		WHERE session_id = $1
	`

	s := &Session{}
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&s.SessionID,
		&s.UserID,
		&s.LoginAt,
		&s.LogoutAt,
		&s.DurationMinutes,
		&s.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		log.Printf("Error getting session by ID: %v", err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// Close writes logout_at and duration_minutes onto a still-open session.
// The WHERE clause makes the close conditional: when the session was already
// closed by a racing caller, no row is touched and applied is false, which
// is how the caller knows not to update the profile total again.
func (r *Repository) Close(ctx context.Context, sessionID uuid.UUID, logoutAt time.Time, durationMinutes int64) (bool, error) {
	query := `
		UPDATE sessions
		SET logout_at = $2, duration_minutes = $3
		WHERE session_id = $1 AND logout_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, sessionID, logoutAt, durationMinutes)
	if err != nil {
		log.Printf("Error closing session: %v", err)
		return false, fmt.Errorf("failed to close session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ListByUserID retrieves a user's sessions, newest first
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]Session, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT session_id, user_id, login_at, logout_at, duration_minutes, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY login_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		log.Printf("Error querying sessions: %v", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	result := []Session{}
	for rows.Next() {
		var s Session
		err := rows.Scan(
			&s.SessionID,
			&s.UserID,
			&s.LoginAt,
			&s.LogoutAt,
			&s.DurationMinutes,
			&s.CreatedAt,
		)
		if err != nil {
			log.Printf("Error scanning session row: %v", err)
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		result = append(result, s)
	}

	if err = rows.Err(); err != nil {
		log.Printf("Error iterating sessions: %v", err)
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return result, nil
}
