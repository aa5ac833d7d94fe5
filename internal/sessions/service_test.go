package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"accesslearn/internal/events"
)

// In-memory store with the same conditional-close semantics as the Postgres
// repository
type fakeStore struct {
	sessions  map[uuid.UUID]*Session
	insertErr error
	closeErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]*Session)}
}

func (f *fakeStore) Insert(ctx context.Context, s *Session) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *s
	f.sessions[s.SessionID] = &cp
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) Close(ctx context.Context, sessionID uuid.UUID, logoutAt time.Time, durationMinutes int64) (bool, error) {
	if f.closeErr != nil {
		return false, f.closeErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if s.LogoutAt != nil {
		return false, nil
	}
	at := logoutAt
	mins := durationMinutes
	s.LogoutAt = &at
	s.DurationMinutes = &mins
	return true, nil
}

type fakeProfiles struct {
	lastLogin   map[uuid.UUID]time.Time
	lastLogout  map[uuid.UUID]time.Time
	totals      map[uuid.UUID]int64
	loginErr    error
	logoutErr   error
	logoutCalls int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		lastLogin:  make(map[uuid.UUID]time.Time),
		lastLogout: make(map[uuid.UUID]time.Time),
		totals:     make(map[uuid.UUID]int64),
	}
}

func (f *fakeProfiles) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.lastLogin[userID] = at
	return nil
}

func (f *fakeProfiles) RecordLogout(ctx context.Context, userID uuid.UUID, at time.Time, minutes int64) error {
	f.logoutCalls++
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.lastLogout[userID] = at
	f.totals[userID] += minutes
	return nil
}

type capturingPublisher struct {
	events []events.SessionEvent
}

func (p *capturingPublisher) PublishSessionEvent(event events.SessionEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestDurationMinutes(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		logout   time.Time
		expected int64
	}{
		{"exact minutes", base.Add(7 * time.Minute), 7},
		{"half rounds up", base.Add(15*time.Minute + 30*time.Second), 16},
		{"just under half rounds down", base.Add(15*time.Minute + 29*time.Second), 15},
		{"thirty seconds rounds to one", base.Add(30 * time.Second), 1},
		{"sub-half-minute rounds to zero", base.Add(29 * time.Second), 0},
		{"zero duration", base, 0},
		{"clock skew clamps at zero", base.Add(-3 * time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationMinutes(base, tt.logout); got != tt.expected {
				t.Errorf("DurationMinutes() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestOpen_CreatesSessionAndRecordsLogin(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	svc := NewService(store, profiles)

	userID := uuid.New()
	sessionID, err := svc.Open(context.Background(), userID)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if sessionID == uuid.Nil {
		t.Fatal("Open() returned nil session id")
	}

	sess, ok := store.sessions[sessionID]
	if !ok {
		t.Fatal("session was not stored")
	}
	if sess.UserID != userID {
		t.Errorf("stored user id = %s, want %s", sess.UserID, userID)
	}
	if !sess.Open() {
		t.Error("new session should be open")
	}

	if _, ok := profiles.lastLogin[userID]; !ok {
		t.Error("last_login_at was not recorded")
	}
	if profiles.totals[userID] != 0 {
		t.Errorf("total_active_minutes = %d after open, want 0", profiles.totals[userID])
	}
}

func TestOpen_ProfileFailureDoesNotBlockSignIn(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	profiles.loginErr = errors.New("transient persistence fault")
	svc := NewService(store, profiles)

	sessionID, err := svc.Open(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Open() should swallow profile errors, got: %v", err)
	}
	if _, ok := store.sessions[sessionID]; !ok {
		t.Fatal("session was not stored")
	}
}

func TestClose_SetsPairAndUpdatesProfile(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	svc := NewService(store, profiles)

	userID := uuid.New()
	sessionID, err := svc.Open(context.Background(), userID)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	logoutAt := store.sessions[sessionID].LoginAt.Add(7 * time.Minute)
	minutes, err := svc.Close(context.Background(), sessionID, userID, logoutAt)
	if err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if minutes != 7 {
		t.Errorf("Close() duration = %d, want 7", minutes)
	}

	sess := store.sessions[sessionID]
	if sess.LogoutAt == nil || sess.DurationMinutes == nil {
		t.Fatal("logout_at and duration_minutes must be set together on close")
	}
	if *sess.DurationMinutes != 7 {
		t.Errorf("stored duration = %d, want 7", *sess.DurationMinutes)
	}

	if !profiles.lastLogout[userID].Equal(logoutAt) {
		t.Errorf("last_logout_at = %v, want %v", profiles.lastLogout[userID], logoutAt)
	}
	if profiles.totals[userID] != 7 {
		t.Errorf("total_active_minutes = %d, want 7", profiles.totals[userID])
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	svc := NewService(store, profiles)

	userID := uuid.New()
	sessionID, _ := svc.Open(context.Background(), userID)
	logoutAt := store.sessions[sessionID].LoginAt.Add(5 * time.Minute)

	first, err := svc.Close(context.Background(), sessionID, userID, logoutAt)
	if err != nil {
		t.Fatalf("first Close() error: %v", err)
	}

	// A logout request and an unload beacon can both fire in one teardown;
	// the second close must not double-count.
	second, err := svc.Close(context.Background(), sessionID, userID, logoutAt.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	if first != 5 || second != 5 {
		t.Errorf("durations = %d, %d, want 5, 5", first, second)
	}
	if profiles.totals[userID] != 5 {
		t.Errorf("total_active_minutes = %d after double close, want 5", profiles.totals[userID])
	}
	if profiles.logoutCalls != 1 {
		t.Errorf("profile rollup applied %d times, want 1", profiles.logoutCalls)
	}
}

func TestClose_UnknownSession(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	svc := NewService(store, profiles)

	_, err := svc.Close(context.Background(), uuid.New(), uuid.New(), time.Now())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Close() error = %v, want ErrSessionNotFound", err)
	}
	if profiles.logoutCalls != 0 {
		t.Error("profile must not be mutated for an unknown session")
	}
}

func TestClose_OwnerMismatch(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	svc := NewService(store, profiles)

	owner := uuid.New()
	sessionID, _ := svc.Open(context.Background(), owner)

	_, err := svc.Close(context.Background(), sessionID, uuid.New(), time.Now())
	if !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("Close() error = %v, want ErrNotSessionOwner", err)
	}

	if !store.sessions[sessionID].Open() {
		t.Error("session must remain open after a rejected close")
	}
	if profiles.logoutCalls != 0 {
		t.Error("profile must not be mutated on an ownership mismatch")
	}
}

func TestClose_ProfileFailureStillClosesSession(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	profiles.logoutErr = errors.New("transient persistence fault")
	svc := NewService(store, profiles)

	userID := uuid.New()
	sessionID, _ := svc.Open(context.Background(), userID)
	logoutAt := store.sessions[sessionID].LoginAt.Add(4 * time.Minute)

	minutes, err := svc.Close(context.Background(), sessionID, userID, logoutAt)
	if err != nil {
		t.Fatalf("Close() should swallow profile errors, got: %v", err)
	}
	if minutes != 4 {
		t.Errorf("Close() duration = %d, want 4", minutes)
	}
	if store.sessions[sessionID].Open() {
		t.Error("session must be closed even when the rollup fails")
	}
	// Known accepted gap: total under-counts in this case
	if profiles.totals[userID] != 0 {
		t.Errorf("total_active_minutes = %d, want 0 after failed rollup", profiles.totals[userID])
	}
}

func TestLifecycle_BeaconThenExplicitLogout(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	svc := NewService(store, profiles)
	userID := uuid.New()

	// First visit: tab closed after 7 minutes, beacon close fires
	s1, err := svc.Open(context.Background(), userID)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	beaconAt := store.sessions[s1].LoginAt.Add(7 * time.Minute)
	if _, err := svc.Close(context.Background(), s1, userID, beaconAt); err != nil {
		t.Fatalf("beacon Close() error: %v", err)
	}
	if profiles.totals[userID] != 7 {
		t.Fatalf("total after first session = %d, want 7", profiles.totals[userID])
	}

	// Second visit: explicit logout after 3 minutes
	s2, err := svc.Open(context.Background(), userID)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	if s2 == s1 {
		t.Fatal("second login must open a fresh session")
	}
	logoutAt := store.sessions[s2].LoginAt.Add(3 * time.Minute)
	minutes, err := svc.Close(context.Background(), s2, userID, logoutAt)
	if err != nil {
		t.Fatalf("explicit Close() error: %v", err)
	}
	if minutes != 3 {
		t.Errorf("second session duration = %d, want 3", minutes)
	}
	if profiles.totals[userID] != 10 {
		t.Errorf("total_active_minutes = %d, want 10", profiles.totals[userID])
	}
}

func TestLifecycle_PublishesEvents(t *testing.T) {
	store := newFakeStore()
	profiles := newFakeProfiles()
	publisher := &capturingPublisher{}
	svc := NewServiceWithCollaborators(store, profiles, publisher, nil)

	userID := uuid.New()
	sessionID, _ := svc.Open(context.Background(), userID)
	logoutAt := store.sessions[sessionID].LoginAt.Add(2 * time.Minute)
	if _, err := svc.Close(context.Background(), sessionID, userID, logoutAt); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("published %d events, want 2", len(publisher.events))
	}
	if publisher.events[0].Type != events.EventSessionOpened {
		t.Errorf("first event type = %s, want %s", publisher.events[0].Type, events.EventSessionOpened)
	}
	closed := publisher.events[1]
	if closed.Type != events.EventSessionClosed {
		t.Errorf("second event type = %s, want %s", closed.Type, events.EventSessionClosed)
	}
	if closed.DurationMinutes == nil || *closed.DurationMinutes != 2 {
		t.Error("closed event must carry the session duration")
	}

	// A repeated close publishes nothing further
	if _, err := svc.Close(context.Background(), sessionID, userID, logoutAt); err != nil {
		t.Fatalf("repeat Close() error: %v", err)
	}
	if len(publisher.events) != 2 {
		t.Errorf("repeat close published extra events: %d total", len(publisher.events))
	}
}
