// Package client is the app-side counterpart of the session tracking
// service: an explicit signed-out/signed-in state machine that opens a
// learning session on sign-in, reuses the cached session across reloads,
// closes it on sign-out, and fires a best-effort beacon on page teardown.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// State is the auth-side state the tracker is in
type State int

const (
	// StateSignedOut means no session is being tracked
	StateSignedOut State = iota
	// StateSignedIn means an open session id is cached
	StateSignedIn
)

const beaconTimeout = 5 * time.Second

// Tracker drives the session lifecycle from the client side. All side
// effects happen synchronously inside the transition that owns them, so the
// sequence of opens and closes is auditable in tests.
type Tracker struct {
	baseURL string
	http    *http.Client
	cache   *SessionCache

	mu    sync.Mutex
	state State
}

// NewTracker creates a tracker against the service at baseURL. The tracker
// keeps its own cookie jar so the auth session cookie from sign-in is
// attached to the explicit close.
func NewTracker(baseURL string, cache *SessionCache) *Tracker {
	jar, _ := cookiejar.New(nil)
	if cache == nil {
		cache = NewSessionCache()
	}
	return &Tracker{
		baseURL: baseURL,
		http:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
		cache:   cache,
	}
}

// State returns the tracker's current state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cache returns the tracker's session cache
func (t *Tracker) Cache() *SessionCache {
	return t.cache
}

// SignIn performs the signed_out -> signed_in transition: establish the auth
// session, then open a learning session — unless the cache already holds a
// session for this user (a page reload), in which case the cached id is
// reused and no duplicate session is opened.
func (t *Tracker) SignIn(ctx context.Context, userID, email string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.postJSON(ctx, "/auth/login", map[string]string{
		"user_id": userID,
		"email":   email,
	}, nil); err != nil {
		return "", fmt.Errorf("failed to establish auth session: %w", err)
	}

	if sessionID, cachedUser, ok := t.cache.Current(); ok && cachedUser == userID {
		t.state = StateSignedIn
		return sessionID, nil
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := t.postJSON(ctx, "/sessions", map[string]string{
		"user_id": userID,
	}, &resp); err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}

	t.cache.Put(resp.SessionID, userID)
	t.state = StateSignedIn
	return resp.SessionID, nil
}

// SignOut performs the signed_in -> signed_out transition: close the cached
// session via the explicit path, then drop the auth session. The cache is
// cleared unconditionally so a failed close cannot leave the tracker stuck;
// sign-out always succeeds from the user's perspective.
func (t *Tracker) SignOut(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessionID, _, ok := t.cache.Current()
	if ok {
		path := fmt.Sprintf("/sessions/%s/close", sessionID)
		if err := t.postJSON(ctx, path, nil, nil); err != nil {
			log.Printf("Warning: failed to close session %s on sign-out: %v", sessionID, err)
		}
	}

	if err := t.postJSON(ctx, "/auth/logout", nil, nil); err != nil {
		log.Printf("Warning: failed to end auth session on sign-out: %v", err)
	}

	t.cache.Clear()
	t.state = StateSignedOut
}

// Unload fires a single fire-and-forget beacon carrying the cached
// identifiers to the close-session endpoint. It returns immediately and
// never reports the outcome: by the time a failure would be observable the
// page is gone, so no retry is possible. The explicit SignOut path remains
// the reliable way to close a session.
func (t *Tracker) Unload() {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessionID, userID, ok := t.cache.Current()
	if !ok {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
		"logout_at":  time.Now().UTC(),
	})
	if err != nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/close-session", bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.http.Do(req)
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	t.cache.Clear()
	t.state = StateSignedOut
}

// postJSON sends a JSON POST and optionally decodes the response into out
func (t *Tracker) postJSON(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(data))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
