package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port               string
	Env                string
	StreamWriteTimeout time.Duration

	// Redis (optional, enables cross-instance fan-out of live updates)
	RedisURL string

	// Sessions
	SessionSecret  string
	SessionIdleTTL time.Duration
	ChatReqsPerMin int

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTemperature    float32
	GeminiConcurrentReqs int

	// Reference document
	DocumentPath         string
	DocumentPollInterval time.Duration
	DocumentReadyTimeout time.Duration

	// Frontend
	FrontendURL string
}

// secretsFiles are searched in order for the API key when it is not in the
// environment.
var secretsFiles = []string{".streamlit/secrets.toml", "secrets.toml"}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		StreamWriteTimeout:   getEnvAsDurationOrDefault("STREAM_WRITE_TIMEOUT", 5*time.Minute),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionIdleTTL:       getEnvAsDurationOrDefault("SESSION_IDLE_TTL", 2*time.Hour),
		ChatReqsPerMin:       getEnvAsIntOrDefault("CHAT_REQUESTS_PER_MINUTE", 20),
		GeminiAPIKey:         mustGetSecret("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-pro"),
		GeminiTemperature:    float32(getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.4)),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		DocumentPath:         getEnvOrDefault("DOCUMENT_PATH", "linear-algebra-4ed.pdf"),
		DocumentPollInterval: getEnvAsDurationOrDefault("DOCUMENT_POLL_INTERVAL", 2*time.Second),
		DocumentReadyTimeout: getEnvAsDurationOrDefault("DOCUMENT_READY_TIMEOUT", 5*time.Minute),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = randomSecret()
	}

	return cfg
}

// mustGetSecret reads key from the environment, then from the first
// secrets file that defines it.
func mustGetSecret(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	files := secretsFiles
	if path := os.Getenv("SECRETS_FILE"); path != "" {
		files = append([]string{path}, files...)
	}
	for _, path := range files {
		if val, err := readSecret(path, key); err == nil && val != "" {
			return val
		}
	}

	panic(fmt.Sprintf("required secret %s is not set (environment, .env or %s)", key, strings.Join(files, ", ")))
}

func readSecret(path, key string) (string, error) {
	var secrets map[string]interface{}
	if _, err := toml.DecodeFile(path, &secrets); err != nil {
		return "", err
	}

	val, ok := secrets[key].(string)
	if !ok {
		return "", fmt.Errorf("%s: %s is not a string", path, key)
	}
	return strings.TrimSpace(val), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate session secret: %v", err))
	}
	return hex.EncodeToString(b)
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
