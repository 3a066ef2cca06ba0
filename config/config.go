package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string

	// Database
	DBHost string
	DBUser string
	DBPass string
	DBName string
	DBPort string

	// JWT
	JWTSecret string

	// PubSubBackend selects the transport adapter: "nats", "redis" or "gcloud".
	PubSubBackend string

	// NATS
	NATSURL     string
	NATSSubject string

	// Redis
	RedisURL     string
	RedisChannel string

	// Google Cloud Pub/Sub
	GCloudProjectID      string
	GCloudTopicID        string
	GCloudSubscriptionID string
}

// Load reads configuration from environment variables. A .env file is loaded
// first if present so local development works without exported variables.
func Load() *Config {
	// No .env file is fine; rely on the process environment.
	_ = godotenv.Load()

	return &Config{
		Port:   getEnv("PORT", "8080"),
		DBHost: getEnv("DB_HOST", "localhost"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: getEnv("DB_PASS", "postgres"),
		DBName: getEnv("DB_NAME", "chatapp"),
		DBPort: getEnv("DB_PORT", "5432"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		PubSubBackend: getEnv("PUBSUB_BACKEND", "nats"),

		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: getEnv("NATS_SUBJECT", "chat.messages"),

		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisChannel: getEnv("REDIS_CHANNEL", "chat:messages"),

		GCloudProjectID:      os.Getenv("GCLOUD_PROJECT_ID"),
		GCloudTopicID:        getEnv("GCLOUD_TOPIC_ID", "backend-messages"),
		GCloudSubscriptionID: getEnv("GCLOUD_SUBSCRIPTION_ID", "backend-subscription"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
