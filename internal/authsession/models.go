package authsession

import "time"

// Session represents an authenticated browser session. It carries identity
// only; learning-session intervals live in the sessions package.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
