// Package sessions implements learning-session lifecycle tracking: a session
// opens when a user signs in, survives page reloads through the client-held
// session cache, and closes exactly once on explicit logout or via the
// unload beacon, folding its duration into the user's profile rollup.
package sessions

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"accesslearn/internal/archive"
	"accesslearn/internal/events"
)

// Store defines the session persistence operations the lifecycle manager
// depends on
type Store interface {
	Insert(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	Close(ctx context.Context, sessionID uuid.UUID, logoutAt time.Time, durationMinutes int64) (bool, error)
}

// ProfileStore defines the profile rollup operations the lifecycle manager
// depends on
type ProfileStore interface {
	RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	RecordLogout(ctx context.Context, userID uuid.UUID, at time.Time, minutes int64) error
}

// Publisher publishes session lifecycle events for analytics
type Publisher interface {
	PublishSessionEvent(event events.SessionEvent) error
}

// Archiver stores closed-session records for long-term retention
type Archiver interface {
	StoreClosedSession(ctx context.Context, record archive.ClosedSessionRecord) error
}

// Service is the session lifecycle manager. A session moves through exactly
// one transition: open -> closed.
type Service interface {
	Open(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	Close(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error)
}

type service struct {
	store     Store
	profiles  ProfileStore
	publisher Publisher // optional
	archiver  Archiver  // optional
}

// NewService creates a new session lifecycle service
func NewService(store Store, profiles ProfileStore) Service {
	return &service{
		store:    store,
		profiles: profiles,
	}
}

// NewServiceWithCollaborators creates a lifecycle service that additionally
// publishes session events and archives closed sessions. Either collaborator
// may be nil.
func NewServiceWithCollaborators(store Store, profiles ProfileStore, publisher Publisher, archiver Archiver) Service {
	return &service{
		store:     store,
		profiles:  profiles,
		publisher: publisher,
		archiver:  archiver,
	}
}

// Open creates a new session for the user and stamps the profile's
// last_login_at. The server never deduplicates opens; reusing an existing
// session across page reloads is the client cache's responsibility.
func (s *service) Open(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	now := time.Now().UTC()

	sess := &Session{
		SessionID: uuid.New(),
		UserID:    userID,
		LoginAt:   now,
	}

	if err := s.store.Insert(ctx, sess); err != nil {
		return uuid.Nil, err
	}

	// The session is already open; profile bookkeeping failures must not
	// block sign-in.
	if err := s.profiles.RecordLogin(ctx, userID, now); err != nil {
		log.Printf("Warning: failed to record login for user %s: %v", userID, err)
	}

	s.publish(events.SessionEvent{
		Type:       events.EventSessionOpened,
		SessionID:  sess.SessionID.String(),
		UserID:     userID.String(),
		OccurredAt: now,
	})

	return sess.SessionID, nil
}

// Close closes the session and returns its duration in minutes. Closing is
// idempotent per session id: only the caller whose update transitions the
// row from open to closed applies the profile rollup; any later close finds
// the row already closed and returns the stored duration without touching
// the profile total.
func (s *service) Close(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	if sess.UserID != callerID {
		return 0, ErrNotSessionOwner
	}

	if logoutAt.IsZero() {
		logoutAt = time.Now().UTC()
	}

	minutes := DurationMinutes(sess.LoginAt, logoutAt)

	applied, err := s.store.Close(ctx, sessionID, logoutAt, minutes)
	if err != nil {
		return 0, err
	}

	if !applied {
		// Lost the race against a concurrent close (logout vs beacon in the
		// same teardown). The stored pair is authoritative and the winner
		// already updated the profile.
		closed, err := s.store.GetByID(ctx, sessionID)
		if err == nil && closed.DurationMinutes != nil {
			return *closed.DurationMinutes, nil
		}
		return minutes, nil
	}

	// Accepted inconsistency window: the session is closed but the rollup
	// may fail, under-counting total_active_minutes.
	if err := s.profiles.RecordLogout(ctx, sess.UserID, logoutAt, minutes); err != nil {
		log.Printf("Warning: failed to record logout for user %s: %v", sess.UserID, err)
	}

	s.publish(events.SessionEvent{
		Type:            events.EventSessionClosed,
		SessionID:       sessionID.String(),
		UserID:          sess.UserID.String(),
		OccurredAt:      logoutAt,
		DurationMinutes: &minutes,
	})

	if s.archiver != nil {
		record := archive.ClosedSessionRecord{
			SessionID:       sessionID.String(),
			UserID:          sess.UserID.String(),
			LoginAt:         sess.LoginAt,
			LogoutAt:        logoutAt,
			DurationMinutes: minutes,
		}
		if err := s.archiver.StoreClosedSession(ctx, record); err != nil {
			log.Printf("Warning: failed to archive session %s: %v", sessionID, err)
		}
	}

	return minutes, nil
}

func (s *service) publish(event events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(event); err != nil {
		log.Printf("Warning: failed to publish %s event for session %s: %v", event.Type, event.SessionID, err)
	}
}

// DurationMinutes computes a session's whole-minute duration, rounding half
// up (15m30s -> 16) and clamping at zero for skewed clocks where the logout
// timestamp precedes the login.
func DurationMinutes(loginAt, logoutAt time.Time) int64 {
	minutes := logoutAt.Sub(loginAt).Minutes()
	if minutes < 0 {
		return 0
	}
	return int64(math.Round(minutes))
}
