// Package authsession manages authenticated browser sessions backed by
// Redis with TTL-based expiration. It establishes the caller identity used
// to attribute explicit logouts to the right user.
package authsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("auth session not found")
	// ErrSessionExpired is returned when a session has expired
	ErrSessionExpired = errors.New("auth session expired")
	// ErrInvalidSession is returned when session data is invalid
	ErrInvalidSession = errors.New("invalid auth session")
)

// Manager defines the interface for auth session operations
type Manager interface {
	Create(ctx context.Context, userID, email string, maxAge int) (string, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	Validate(ctx context.Context, sessionID string) (bool, error)
}

type manager struct {
	store Store
}

// NewManager creates a new auth session manager
func NewManager(store Store) Manager {
	return &manager{
		store: store,
	}
}

// Create creates a new auth session and returns its ID
func (m *manager) Create(ctx context.Context, userID, email string, maxAge int) (string, error) {
	sessionID := uuid.New().String()

	now := time.Now()
	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(maxAge) * time.Second),
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth session: %w", err)
	}

	key := fmt.Sprintf("authsession:%s", sessionID)
	ttl := time.Duration(maxAge) * time.Second

	if err := m.store.Set(ctx, key, string(sessionData), ttl); err != nil {
		return "", fmt.Errorf("failed to store auth session: %w", err)
	}

	return sessionID, nil
}

// Get retrieves an auth session by ID
func (m *manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := fmt.Sprintf("authsession:%s", sessionID)

	sessionData, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	var session Session
	if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
		return nil, ErrInvalidSession
	}

	// Redis TTL normally evicts first; this covers clock drift
	if time.Now().After(session.ExpiresAt) {
		m.store.Delete(ctx, key)
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Delete removes an auth session
func (m *manager) Delete(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("authsession:%s", sessionID)
	return m.store.Delete(ctx, key)
}

// Validate checks if an auth session exists and is valid
func (m *manager) Validate(ctx context.Context, sessionID string) (bool, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}

	return session != nil, nil
}
