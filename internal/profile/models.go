package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the durable per-user rollup of lifetime usage. The lifecycle
// manager is its only writer.
type Profile struct {
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	LastLogoutAt       *time.Time `json:"last_logout_at,omitempty" db:"last_logout_at"`
	TotalActiveMinutes int64      `json:"total_active_minutes" db:"total_active_minutes"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}
