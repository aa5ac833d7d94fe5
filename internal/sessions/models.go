package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one continuous login interval. LogoutAt and
// DurationMinutes are always set together, exactly once; a session is open
// while both are nil.
type Session struct {
	SessionID       uuid.UUID  `json:"session_id" db:"session_id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	LoginAt         time.Time  `json:"login_at" db:"login_at"`
	LogoutAt        *time.Time `json:"logout_at,omitempty" db:"logout_at"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty" db:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Open reports whether the session has not been closed yet
func (s *Session) Open() bool {
	return s.LogoutAt == nil
}

// OpenSessionRequest represents the request body for opening a session
type OpenSessionRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// OpenSessionResponse is returned with the new session's identifier
type OpenSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CloseSessionResponse is returned by the explicit-logout close path
type CloseSessionResponse struct {
	DurationMinutes int64 `json:"duration_minutes"`
}

// BeaconCloseRequest is the fire-and-forget payload sent during page
// teardown. It carries the user id explicitly because the beacon transport
// cannot attach interactive credentials.
type BeaconCloseRequest struct {
	SessionID string     `json:"session_id" binding:"required"`
	UserID    string     `json:"user_id" binding:"required"`
	LogoutAt  *time.Time `json:"logout_at,omitempty"`
}

// BeaconCloseResponse acknowledges a beacon close. The sender never reads
// it; it exists for the explicit-close parity and for tests.
type BeaconCloseResponse struct {
	Success         bool  `json:"success"`
	DurationMinutes int64 `json:"duration_minutes"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
