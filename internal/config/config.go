package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the notification engine. Values come from the
// environment with development defaults; a .env file is honored when present.
type Config struct {
	// Backend API
	APIBaseURL        string // base URL of the notification REST backend
	APITimeoutSeconds int    // per-request timeout for backend calls

	// Realtime channel
	SocketURL              string        // websocket endpoint of the realtime channel
	ReconnectInitialDelay  time.Duration // delay before the first reconnect attempt
	ReconnectMaxDelay      time.Duration // cap for the growing reconnect delay
	ReconnectMaxAttempts   int           // attempts before the channel gives up
	SocketWriteTimeout     time.Duration // deadline for a single outbound frame
	SocketPingInterval     time.Duration // keepalive ping cadence

	// Push subscription
	PushKeyFetchTimeout time.Duration // bound on the VAPID public key fetch
	MaxInitAttempts     int           // cumulative Initialize failures before permanent disable

	// Sync engine
	PendingPollLimit int // page size for the pending-notifications catch-up poll
	CatchUpSurfaceMax int // synthetic events surfaced per catch-up poll

	// Background worker
	WorkerScope        string // registration scope for the background worker
	CacheVersion       string // version tag for the worker's asset cache
	ResyncCronSpec     string // cron schedule for periodic background resync
	ResyncRenderMax    int    // catch-up notifications rendered per resync
	NatsURL            string // message-port broker; empty means in-process port only

	// Logging
	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// LoadConfig populates AppConfig from the environment.
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		APIBaseURL:        getEnvOrDefault("NOTIFY_API_BASE_URL", "http://localhost:3000/api"),
		APITimeoutSeconds: getEnvAsInt("NOTIFY_API_TIMEOUT_SECONDS", 10),

		SocketURL:             getEnvOrDefault("NOTIFY_SOCKET_URL", "ws://localhost:3000/socket"),
		ReconnectInitialDelay: getEnvAsDuration("NOTIFY_RECONNECT_INITIAL_DELAY", time.Second),
		ReconnectMaxDelay:     getEnvAsDuration("NOTIFY_RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectMaxAttempts:  getEnvAsInt("NOTIFY_RECONNECT_MAX_ATTEMPTS", 5),
		SocketWriteTimeout:    getEnvAsDuration("NOTIFY_SOCKET_WRITE_TIMEOUT", 10*time.Second),
		SocketPingInterval:    getEnvAsDuration("NOTIFY_SOCKET_PING_INTERVAL", 25*time.Second),

		PushKeyFetchTimeout: getEnvAsDuration("NOTIFY_PUSH_KEY_TIMEOUT", 5*time.Second),
		MaxInitAttempts:     getEnvAsInt("NOTIFY_MAX_INIT_ATTEMPTS", 3),

		PendingPollLimit:  getEnvAsInt("NOTIFY_PENDING_POLL_LIMIT", 10),
		CatchUpSurfaceMax: getEnvAsInt("NOTIFY_CATCHUP_SURFACE_MAX", 3),

		WorkerScope:     getEnvOrDefault("NOTIFY_WORKER_SCOPE", "/"),
		CacheVersion:    getEnvOrDefault("NOTIFY_CACHE_VERSION", "v1"),
		ResyncCronSpec:  getEnvOrDefault("NOTIFY_RESYNC_CRON", "@every 15m"),
		ResyncRenderMax: getEnvAsInt("NOTIFY_RESYNC_RENDER_MAX", 3),
		NatsURL:         getEnvOrDefault("NATS_URL", ""),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", ""),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %s", key, defaultValue)
	}
	return defaultValue
}
