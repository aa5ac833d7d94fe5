package events

import (
	"fmt"
	"os"
	"strings"
)

// Config holds Kafka configuration for session event publishing
type Config struct {
	Brokers            string
	SessionEventsTopic string
	EnableIdempotence  bool
	Acks               string
}

// LoadConfig loads Kafka configuration from environment variables
func LoadConfig() (*Config, error) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}

	topic := os.Getenv("KAFKA_TOPIC_SESSION_EVENTS")
	if topic == "" {
		topic = "session-events" // Default
	}

	return &Config{
		Brokers:            brokers,
		SessionEventsTopic: topic,
		EnableIdempotence:  true,  // Avoid duplicate events on retry
		Acks:               "all", // Wait for all replicas
	}, nil
}

// GetBrokersList returns brokers as a slice
func (c *Config) GetBrokersList() []string {
	return strings.Split(c.Brokers, ",")
}
