package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendVertex    = "vertex"
	BackendGeminiAPI = "gemini-api"
)

// ErrMissingProject - GCP_PROJECT is not set
var ErrMissingProject = errors.New("GCP_PROJECT environment variable not set")

// ConfigurationError - a required setting is missing or invalid.
// Reported to the caller before any network call is made.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config - every setting the server reads from the environment
type Config struct {
	// Gemini / Vertex AI
	GCPProject            string
	GeminiBackend         string
	GeminiModel           string
	GeminiRegions         []string
	GeminiAPIKeys         []string
	VertexCredentialsJSON string
	VertexCredentialsPath string

	// Server
	Port          string
	LogLevel      string
	MaxUploadSize int64

	// Redis (rate limiting; disabled when RedisHost is empty)
	RedisHost          string
	RedisPort          string
	RedisUsername      string
	RedisPassword      string
	RedisUseTLS        bool
	RateLimitPerMinute int
	// proxies allowed to set X-Forwarded-For; CIDRs or bare IPs
	TrustedProxies []string
}

var defaultRegions = []string{
	"us-central1",
	"europe-west2",
	"europe-west3",
	"asia-northeast1",
	"australia-southeast1",
	"asia-south1",
}

// LoadConfig - reads .env (when present) and the process environment.
// Missing required settings are not an error here; see Validate.
func LoadConfig(logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil {
		logger.Info("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		GCPProject:            getEnv("GCP_PROJECT", ""),
		GeminiBackend:         strings.ToLower(getEnv("GEMINI_BACKEND", BackendVertex)),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		GeminiRegions:         getList("GEMINI_REGIONS", defaultRegions),
		GeminiAPIKeys:         getList("GEMINI_API_KEYS", nil),
		VertexCredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexCredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),

		Port:          getEnv("PORT", "8000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MaxUploadSize: int64(getInt("MAX_UPLOAD_MB", 10)) << 20,

		RedisHost:          getEnv("REDIS_HOST", ""),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:        getBool("REDIS_USE_TLS", false),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 0),
		TrustedProxies:     getList("TRUSTED_PROXIES", nil),
	}

	logger.Info("✅ Configuration loaded",
		"backend", cfg.GeminiBackend,
		"model", cfg.GeminiModel,
		"regions", len(cfg.GeminiRegions),
		"project_set", cfg.GCPProject != "",
		"rate_limit", cfg.RateLimitEnabled())

	return cfg
}

// Validate - checks the settings the selected backend cannot run without
func (c *Config) Validate() error {
	switch c.GeminiBackend {
	case BackendVertex:
		if c.GCPProject == "" {
			return &ConfigurationError{Setting: "GCP_PROJECT", Err: ErrMissingProject}
		}
		if len(c.GeminiRegions) == 0 {
			return &ConfigurationError{Setting: "GEMINI_REGIONS", Err: errors.New("at least one region is required")}
		}
	case BackendGeminiAPI:
		if len(c.GeminiAPIKeys) == 0 {
			return &ConfigurationError{Setting: "GEMINI_API_KEYS", Err: errors.New("at least one API key is required")}
		}
	default:
		return &ConfigurationError{Setting: "GEMINI_BACKEND", Err: fmt.Errorf("unknown backend %q", c.GeminiBackend)}
	}
	return nil
}

// RateLimitEnabled - Redis host configured and a positive limit set
func (c *Config) RateLimitEnabled() bool {
	return c.RedisHost != "" && c.RateLimitPerMinute > 0
}

// GetRedisAddr - host:port for the Redis client
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - environment value with default
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getList - comma separated values, blanks dropped
func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
