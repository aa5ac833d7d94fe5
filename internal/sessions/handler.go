package sessions

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"accesslearn/internal/archive"
	"accesslearn/internal/database"
	"accesslearn/internal/profile"
)

// ProfileReader exposes the read side of the profile rollup
type ProfileReader interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*profile.Profile, error)
}

// Handler handles session lifecycle HTTP requests
type Handler struct {
	svc      Service
	profiles ProfileReader
	db       database.Service
	archiver archive.Service // optional, health only
}

// NewHandler creates a new sessions handler
func NewHandler(svc Service, profiles ProfileReader, db database.Service, archiver archive.Service) *Handler {
	return &Handler{
		svc:      svc,
		profiles: profiles,
		db:       db,
		archiver: archiver,
	}
}

// OpenSession handles POST /sessions
func (h *Handler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		return
	}

	sessionID, err := h.svc.Open(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to open session for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to open session"})
		return
	}

	c.JSON(http.StatusCreated, OpenSessionResponse{SessionID: sessionID.String()})
}

// CloseSession handles POST /sessions/:id/close (explicit logout path).
// The caller's identity comes from the auth session middleware.
func (h *Handler) CloseSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	callerIDStr, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	callerID, err := uuid.Parse(callerIDStr.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	minutes, err := h.svc.Close(c.Request.Context(), sessionID, callerID, time.Now().UTC())
	if err != nil {
		log.Printf("Failed to close session %s: %v", sessionID, err)

		switch {
		case errors.Is(err, ErrSessionNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		case errors.Is(err, ErrNotSessionOwner):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden: cannot close another user's session"})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to close session"})
		}
		return
	}

	c.JSON(http.StatusOK, CloseSessionResponse{DurationMinutes: minutes})
}

// BeaconClose handles POST /close-session (best-effort beacon path). The
// endpoint is unauthenticated because the unload beacon cannot attach
// interactive credentials; identity correlation relies on the payload's
// session_id/user_id pair instead.
func (h *Handler) BeaconClose(c *gin.Context) {
	var req BeaconCloseRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_id and user_id are required"})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session_id"})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		return
	}

	logoutAt := time.Now().UTC()
	if req.LogoutAt != nil && !req.LogoutAt.IsZero() {
		logoutAt = req.LogoutAt.UTC()
	}

	minutes, err := h.svc.Close(c.Request.Context(), sessionID, userID, logoutAt)
	if err != nil {
		log.Printf("Failed to beacon-close session %s: %v", sessionID, err)

		switch {
		case errors.Is(err, ErrSessionNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		case errors.Is(err, ErrNotSessionOwner):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "session does not belong to user"})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to close session"})
		}
		return
	}

	c.JSON(http.StatusOK, BeaconCloseResponse{
		Success:         true,
		DurationMinutes: minutes,
	})
}

// GetProfile handles GET /profiles/:id
func (h *Handler) GetProfile(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	p, err := h.profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile not found"})
			return
		}
		log.Printf("Failed to get profile %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get profile"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	response := make(map[string]interface{})

	response["database"] = h.db.Health()

	if h.archiver != nil {
		archiveHealth := make(map[string]string)
		if err := h.archiver.Health(c.Request.Context()); err != nil {
			archiveHealth["status"] = "down"
			archiveHealth["error"] = err.Error()
		} else {
			archiveHealth["status"] = "up"
		}
		response["archive"] = archiveHealth
	}

	c.JSON(http.StatusOK, response)
}
