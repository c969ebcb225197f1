package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultMaxImageBytes  = 1 << 20 // 1 MiB upload budget
	defaultStartQuality   = 100
	defaultQualityStep    = 10
	defaultQualityFloor   = 10
	defaultResizeWidth    = 1024
	defaultResizeHeight   = 1024
	defaultResizeQuality  = 80
	defaultMaxAttempts    = 2
	defaultRetryDelay     = 2 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultModel          = "gpt-4o-mini"
	defaultMaxTokens      = 1000
	defaultDemoDelay      = 2 * time.Second
	defaultBaseURL        = "https://api.openai.com/v1"
)

// Config carries the product-tuned constants of the analysis pipeline.
// Every value has a working default and can be overridden via environment
// variables, so nothing is hardcoded at the call sites.
type Config struct {
	// image preprocessing
	MaxImageBytes int
	StartQuality  int
	QualityStep   int
	QualityFloor  int
	ResizeWidth   int
	ResizeHeight  int
	ResizeQuality int

	// inference client
	BaseURL        string
	Model          string
	MaxTokens      int
	MaxAttempts    int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	Verbose        bool

	// offline fallback
	DemoDelay time.Duration

	// storage
	DatabasePath string
}

func Load() (Config, error) {
	dbPath := os.Getenv("SNAPCAL_DB_PATH")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".snapcal", "meals.db")
	}

	cfg := Config{
		MaxImageBytes:  getEnvIntOrDefault("SNAPCAL_MAX_IMAGE_BYTES", defaultMaxImageBytes),
		StartQuality:   getEnvIntOrDefault("SNAPCAL_START_QUALITY", defaultStartQuality),
		QualityStep:    getEnvIntOrDefault("SNAPCAL_QUALITY_STEP", defaultQualityStep),
		QualityFloor:   getEnvIntOrDefault("SNAPCAL_QUALITY_FLOOR", defaultQualityFloor),
		ResizeWidth:    getEnvIntOrDefault("SNAPCAL_RESIZE_WIDTH", defaultResizeWidth),
		ResizeHeight:   getEnvIntOrDefault("SNAPCAL_RESIZE_HEIGHT", defaultResizeHeight),
		ResizeQuality:  getEnvIntOrDefault("SNAPCAL_RESIZE_QUALITY", defaultResizeQuality),
		BaseURL:        getEnvOrDefault("SNAPCAL_BASE_URL", defaultBaseURL),
		Model:          getEnvOrDefault("SNAPCAL_MODEL", defaultModel),
		MaxTokens:      getEnvIntOrDefault("SNAPCAL_MAX_TOKENS", defaultMaxTokens),
		MaxAttempts:    getEnvIntOrDefault("SNAPCAL_MAX_ATTEMPTS", defaultMaxAttempts),
		RetryDelay:     getEnvDurationOrDefault("SNAPCAL_RETRY_DELAY", defaultRetryDelay),
		RequestTimeout: getEnvDurationOrDefault("SNAPCAL_REQUEST_TIMEOUT", defaultRequestTimeout),
		DemoDelay:      getEnvDurationOrDefault("SNAPCAL_DEMO_DELAY", defaultDemoDelay),
		DatabasePath:   dbPath,
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: invalid %s %q, using default %d", envVar, valStr, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: invalid %s %q, using default %s", envVar, valStr, defaultVal)
		return defaultVal
	}
	return val
}
