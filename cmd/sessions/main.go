package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accesslearn/internal/archive"
	"accesslearn/internal/authsession"
	"accesslearn/internal/config"
	"accesslearn/internal/consul"
	"accesslearn/internal/database"
	"accesslearn/internal/events"
	"accesslearn/internal/logger"
	"accesslearn/internal/profile"
	"accesslearn/internal/sessions"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	// Load configuration from environment
	port := getEnv("SESSIONS_SERVICE_PORT", "8084")
	host := getEnv("SESSIONS_SERVICE_HOST", "localhost")
	consulAddr := getEnv("CONSUL_HTTP_ADDR", "localhost:8500")
	consulToken := getEnv("CONSUL_HTTP_TOKEN", "")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")
	redisDB := 0

	log.Println("Starting Session Tracking Service...")
	log.Printf("Port: %s", port)
	log.Printf("Host: %s", host)
	log.Printf("Consul: %s", consulAddr)
	log.Printf("Redis: %s", redisAddr)

	if err := config.ValidateEnv([]string{
		"DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD",
	}); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	lgr := logger.New()
	logger.SetDefault(lgr)

	// Initialize database
	db := database.New()
	log.Println("Connected to database")

	// Initialize Redis for auth sessions
	store := authsession.NewRedisStore(redisAddr, redisPassword, redisDB)
	authMgr := authsession.NewManager(store)
	log.Println("Connected to Redis")

	// Repositories
	sessionRepo := sessions.NewRepository(db)
	profileRepo := profile.NewRepository(db)

	// Optional session archiver (S3/MinIO)
	var archiveSvc archive.Service
	if os.Getenv("S3_ENDPOINT") != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		svc, err := archive.New(ctx)
		cancel()
		if err != nil {
			log.Printf("Failed to initialize session archiver, continuing without: %v", err)
		} else {
			archiveSvc = svc
			log.Println("Session archiver initialized")
		}
	} else {
		log.Println("Session archiving disabled")
	}

	// Optional Kafka producer for session events
	var producer *events.Producer
	var publisher sessions.Publisher

	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	enableEvents := getEnv("ENABLE_SESSION_EVENTS", "true") // Enable by default

	if kafkaBrokers != "" && enableEvents == "true" {
		eventsConfig, err := events.LoadConfig()
		if err != nil {
			log.Printf("Failed to load Kafka config, session events disabled: %v", err)
		} else {
			producer, err = events.NewProducer(eventsConfig, lgr)
			if err != nil {
				log.Printf("Failed to create Kafka producer, session events disabled: %v", err)
			} else {
				log.Printf("Kafka producer initialized: %s", kafkaBrokers)
				publisher = producer
				defer producer.Close()
			}
		}
	} else {
		log.Println("Session events disabled")
	}

	var archiver sessions.Archiver
	if archiveSvc != nil {
		archiver = archiveSvc
	}

	lifecycle := sessions.NewServiceWithCollaborators(sessionRepo, profileRepo, publisher, archiver)
	handler := sessions.NewHandler(lifecycle, profileRepo, db, archiveSvc)

	r := sessions.SetupRouter(handler, authMgr)

	// Initialize Consul client
	consulClient, err := consul.NewClientWithToken(consulAddr, consulToken)
	if err != nil {
		log.Fatalf("Failed to create Consul client: %v", err)
	}
	log.Println("Connected to Consul")

	// Use static service ID to prevent duplicate registrations on restart
	serviceID := fmt.Sprintf("session-tracking-service-%s", host)

	// Deregister any existing instance with same ID (cleanup from previous crashes)
	_ = consulClient.Deregister(serviceID)

	err = consulClient.Register(&consul.ServiceConfig{
		ID:      serviceID,
		Name:    "session-tracking-service",
		Address: host,
		Port:    mustAtoi(port),
		Tags:    []string{"sessions", "tracking", "learning"},
		Check: &consul.HealthCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", host, port),
			Interval: "10s",
			Timeout:  "3s",
		},
	})
	if err != nil {
		log.Fatalf("Failed to register service with Consul: %v", err)
	}
	log.Printf("Registered with Consul as %s", serviceID)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Session Tracking Service listening on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down Session Tracking Service...")

	// Deregister from Consul
	if err := consulClient.Deregister(serviceID); err != nil {
		log.Printf("Failed to deregister from Consul: %v", err)
	} else {
		log.Println("Deregistered from Consul")
	}

	// Close database connection
	if err := db.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Session Tracking Service stopped")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// mustAtoi converts a string to int or panics
func mustAtoi(s string) int {
	var result int
	if _, err := fmt.Sscanf(s, "%d", &result); err != nil {
		panic(fmt.Sprintf("invalid integer: %s", s))
	}
	return result
}
