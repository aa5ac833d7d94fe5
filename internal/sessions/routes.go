package sessions

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"accesslearn/internal/authsession"
	"accesslearn/internal/config"
)

// SetupRouter wires the session lifecycle endpoints. The beacon path stays
// outside the auth group: it must be reachable without credentials because
// the page is being torn down when it fires.
func SetupRouter(h *Handler, authMgr authsession.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.GetEnvOrDefault("FRONTEND_ORIGIN", "http://localhost:5173")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true, // Enable cookies/auth
	}))

	r.Use(authsession.RequestIDMiddleware())
	r.Use(authsession.LoggingMiddleware())

	r.GET("/health", h.Health)

	// Auth session handoff
	authHandler := authsession.NewHandler(authMgr)
	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	// Session lifecycle
	r.POST("/sessions", h.OpenSession)

	// Explicit logout path requires an authenticated caller
	protected := r.Group("/sessions")
	protected.Use(authsession.AuthMiddleware(authMgr))
	{
		protected.POST("/:id/close", h.CloseSession)
	}

	// Beacon path, fire-and-forget from page teardown
	r.POST("/close-session", h.BeaconClose)

	// Profile rollup readout
	r.GET("/profiles/:id", h.GetProfile)

	return r
}
