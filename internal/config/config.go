package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	APIBaseURL     string
	CameraURL      string
	PageSize       int
	SessionBackend string
	SessionFile    string
	RedisAddr      string
	RequestTimeout time.Duration
	ResultDelay    time.Duration
}

// Load returns client config populated from the environment with sensible
// defaults. A .env file in the working directory is read first if present.
func Load() App {
	_ = godotenv.Load()

	return App{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		CameraURL:      getEnv("CAMERA_URL", ""),
		PageSize:       intEnv("PAGE_SIZE", 50),
		SessionBackend: getEnv("SESSION_BACKEND", "file"),
		SessionFile:    getEnv("SESSION_FILE", defaultSessionFile()),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RequestTimeout: durationEnv("REQUEST_TIMEOUT", 30*time.Second),
		ResultDelay:    durationEnv("RESULT_DELAY", 3*time.Second),
	}
}

// defaultSessionFile places the credential file under the user config dir,
// falling back to the working directory when that cannot be resolved.
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".docuscan-session.json"
	}
	return filepath.Join(dir, "docuscan", "session.json")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
