package database

import (
	"context"
	"database/sql"
)

// sessionTrackingMigration creates the tables backing session lifecycle
// tracking. It is safe to run on every startup.
//
// A session is "open" while logout_at is NULL; logout_at and duration_minutes
// are always written together, exactly once.
const sessionTrackingMigration = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id uuid PRIMARY KEY,
    last_login_at timestamptz,
    last_logout_at timestamptz,
    total_active_minutes bigint NOT NULL DEFAULT 0
        CHECK (total_active_minutes >= 0),
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
    session_id uuid PRIMARY KEY,
    user_id uuid NOT NULL,
    login_at timestamptz NOT NULL,
    logout_at timestamptz,
    duration_minutes bigint,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS sessions_user_login_idx
ON sessions (user_id, login_at DESC);
`

// Migrate applies the session-tracking schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, sessionTrackingMigration)
	return err
}
