package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the dashboard client configuration.
type Config struct {
	// Backend API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Session persistence
	SessionFile string

	// Live data
	UseSSE         bool
	PollInterval   time.Duration
	AlertBufferMax int
	EventBufferMax int
	HistoryMax     int

	// Device events query window
	EventWindowDays int
}

// Load reads configuration from the environment, honoring a .env file when
// one is present.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}

	return Config{
		APIBaseURL:      getEnv("DASH_API_URL", "http://localhost:8081"),
		RequestTimeout:  getEnvDuration("DASH_REQUEST_TIMEOUT", 10*time.Second),
		SessionFile:     getEnv("DASH_SESSION_FILE", defaultSessionFile()),
		UseSSE:          getEnvBool("DASH_USE_SSE", true),
		PollInterval:    getEnvDuration("DASH_POLL_INTERVAL", 5*time.Second),
		AlertBufferMax:  getEnvInt("DASH_ALERT_BUFFER", 50),
		EventBufferMax:  getEnvInt("DASH_EVENT_BUFFER", 50),
		HistoryMax:      getEnvInt("DASH_HISTORY_WINDOW", 100),
		EventWindowDays: getEnvInt("DASH_EVENT_WINDOW_DAYS", 7),
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(home, ".iotdash", "session.json")
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}
