package authsession

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler exposes login/logout endpoints that mint and revoke auth sessions.
// Credential verification happens upstream in the hosted auth provider; this
// service receives an already-verified identity.
type Handler struct {
	mgr Manager
}

// NewHandler creates a new auth session handler
func NewHandler(mgr Manager) *Handler {
	return &Handler{mgr: mgr}
}

// LoginRequest carries the verified identity handed off by the auth provider
type LoginRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Email  string `json:"email" binding:"required,email"`
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	const defaultSessionMaxAge = 3600 // 1 hour
	maxAge := defaultSessionMaxAge
	if maxAgeStr := os.Getenv("SESSION_MAX_AGE"); maxAgeStr != "" {
		if parsed, err := strconv.Atoi(maxAgeStr); err == nil {
			maxAge = parsed
		}
	}

	sessionID, err := h.mgr.Create(c.Request.Context(), req.UserID, req.Email, maxAge)
	if err != nil {
		log.Printf("Failed to create auth session for user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	secure := os.Getenv("APP_ENV") == "production"
	c.SetCookie(
		CookieName,
		sessionID,
		maxAge,
		"/",
		"",
		secure,
		true, // httpOnly
	)

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"user_id":    req.UserID,
	})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(CookieName)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "already logged out"})
		return
	}

	if err := h.mgr.Delete(c.Request.Context(), sessionID); err != nil {
		log.Printf("Failed to delete auth session %s: %v", sessionID, err)
	}

	c.SetCookie(CookieName, "", -1, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}
