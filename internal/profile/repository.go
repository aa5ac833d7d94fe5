// Package profile persists the per-user usage rollup: last login/logout
// timestamps and the cumulative active-minutes counter.
package profile

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
	ErrProfileNotFound = errors.New("profile not found")
)

// Repository handles all database operations for profiles
type Repository struct {
	db database.Service
}

// NewRepository creates a new profile repository
func NewRepository(db database.Service) *Repository {
	return &Repository{db: db}
}

// RecordLogin stamps last_login_at, creating the profile row the first time
// the user authenticates.
func (r *Repository) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `
		INSERT INTO profiles (user_id, last_login_at, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET last_login_at = EXCLUDED.last_login_at, updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query, userID, at)
	if err != nil {
		log.Printf("Error recording login for profile %s: %v", userID, err)
		return fmt.Errorf("failed to record login: %w", err)
	}

	return nil
}

// RecordLogout stamps last_logout_at and folds the closed session's duration
// into the cumulative total. The increment happens in the database so
// concurrent closes cannot lose an update.
func (r *Repository) RecordLogout(ctx context.Context, userID uuid.UUID, at time.Time, minutes int64) error {
	query := `
		UPDATE profiles
		SET last_logout_at = $2,
		    total_active_minutes = total_active_minutes + $3,
		    updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.db.Exec(ctx, query, userID, at, minutes)
	if err != nil {
		log.Printf("Error recording logout for profile %s: %v", userID, err)
		return fmt.Errorf("failed to record logout: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// GetByID retrieves a single profile by user ID
func (r *Repository) GetByID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `
		SELECT user_id, last_login_at, last_logout_at, total_active_minutes, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	p := &Profile{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.LastLoginAt,
		&p.LastLogoutAt,
		&p.TotalActiveMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		log.Printf("Error getting profile by ID: %v", err)
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}
