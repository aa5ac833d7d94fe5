package client

import "sync"

// SessionCache holds the currently-open session's id and owning user id for
// the lifetime of the cache object (the browser-tab analog). It survives a
// reload of the app state that reuses the same cache, and is cleared on
// sign-out.
type SessionCache struct {
	mu        sync.Mutex
	sessionID string
	userID    string
}

// NewSessionCache creates an empty session cache
func NewSessionCache() *SessionCache {
	return &SessionCache{}
}

// Put stores the current session and user identifiers
func (c *SessionCache) Put(sessionID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.userID = userID
}

// Current returns the cached identifiers; ok is false when nothing is cached
func (c *SessionCache) Current() (sessionID, userID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", "", false
	}
	return c.sessionID, c.userID, true
}

// Clear drops the cached identifiers
func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.userID = ""
}
