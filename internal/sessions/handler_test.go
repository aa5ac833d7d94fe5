package sessions

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"accesslearn/internal/profile"
)

// Mock lifecycle service for testing
type mockService struct {
	openFunc  func(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	closeFunc func(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error)
}

func (m *mockService) Open(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if m.openFunc != nil {
		return m.openFunc(ctx, userID)
	}
	return uuid.New(), nil
}

func (m *mockService) Close(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
	if m.closeFunc != nil {
		return m.closeFunc(ctx, sessionID, callerID, logoutAt)
	}
	return 0, nil
}

type mockProfileReader struct {
	getFunc func(ctx context.Context, userID uuid.UUID) (*profile.Profile, error)
}

func (m *mockProfileReader) GetByID(ctx context.Context, userID uuid.UUID) (*profile.Profile, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID)
	}
	return nil, profile.ErrProfileNotFound
}

// stubDB satisfies database.Service for handlers that never reach the
// database in these tests
type stubDB struct{}

func (stubDB) Health() map[string]string { return map[string]string{"status": "up"} }
func (stubDB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}
func (stubDB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}
func (stubDB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (stubDB) Close() error { return nil }

func newTestRouter(svc Service, callerID string) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, &mockProfileReader{}, stubDB{}, nil)

	r := gin.New()
	r.POST("/sessions", h.OpenSession)
	r.POST("/sessions/:id/close", func(c *gin.Context) {
		if callerID != "" {
			c.Set("user_id", callerID)
		}
		h.CloseSession(c)
	})
	r.POST("/close-session", h.BeaconClose)
	return r, h
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOpenSession_Success(t *testing.T) {
	sessionID := uuid.New()
	svc := &mockService{
		openFunc: func(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
			return sessionID, nil
		},
	}
	r, _ := newTestRouter(svc, "")

	w := postJSON(r, "/sessions", gin.H{"user_id": uuid.New().String()})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var resp OpenSessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.SessionID != sessionID.String() {
		t.Errorf("session_id = %s, want %s", resp.SessionID, sessionID)
	}
}

func TestOpenSession_MissingUserID(t *testing.T) {
	r, _ := newTestRouter(&mockService{}, "")

	w := postJSON(r, "/sessions", gin.H{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCloseSession_Success(t *testing.T) {
	caller := uuid.New()
	svc := &mockService{
		closeFunc: func(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
			if callerID != caller {
				t.Errorf("caller id = %s, want %s", callerID, caller)
			}
			return 16, nil
		},
	}
	r, _ := newTestRouter(svc, caller.String())

	w := postJSON(r, "/sessions/"+uuid.New().String()+"/close", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp CloseSessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.DurationMinutes != 16 {
		t.Errorf("duration_minutes = %d, want 16", resp.DurationMinutes)
	}
}

func TestCloseSession_NotFound(t *testing.T) {
	svc := &mockService{
		closeFunc: func(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
			return 0, ErrSessionNotFound
		},
	}
	r, _ := newTestRouter(svc, uuid.New().String())

	w := postJSON(r, "/sessions/"+uuid.New().String()+"/close", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCloseSession_Forbidden(t *testing.T) {
	svc := &mockService{
		closeFunc: func(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
			return 0, ErrNotSessionOwner
		},
	}
	r, _ := newTestRouter(svc, uuid.New().String())

	w := postJSON(r, "/sessions/"+uuid.New().String()+"/close", nil)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
}

func TestCloseSession_NoAuthContext(t *testing.T) {
	r, _ := newTestRouter(&mockService{}, "")

	w := postJSON(r, "/sessions/"+uuid.New().String()+"/close", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestBeaconClose_Success(t *testing.T) {
	svc := &mockService{
		closeFunc: func(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
			return 7, nil
		},
	}
	r, _ := newTestRouter(svc, "")

	w := postJSON(r, "/close-session", gin.H{
		"session_id": uuid.New().String(),
		"user_id":    uuid.New().String(),
		"logout_at":  time.Now().UTC().Format(time.RFC3339),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp BeaconCloseResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if resp.DurationMinutes != 7 {
		t.Errorf("duration_minutes = %d, want 7", resp.DurationMinutes)
	}
}

func TestBeaconClose_MissingFields(t *testing.T) {
	r, _ := newTestRouter(&mockService{}, "")

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing session_id", gin.H{"user_id": uuid.New().String()}},
		{"missing user_id", gin.H{"session_id": uuid.New().String()}},
		{"empty body", gin.H{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/close-session", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestBeaconClose_UnknownSession(t *testing.T) {
	svc := &mockService{
		closeFunc: func(ctx context.Context, sessionID, callerID uuid.UUID, logoutAt time.Time) (int64, error) {
			return 0, ErrSessionNotFound
		},
	}
	r, _ := newTestRouter(svc, "")

	w := postJSON(r, "/close-session", gin.H{
		"session_id": uuid.New().String(),
		"user_id":    uuid.New().String(),
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
