// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 16

// Config holds all server configuration.
type Config struct {
	Port     int
	DBPath   string
	LogLevel slog.Level

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	OperationTimeout time.Duration

	UploadDir          string
	PublicBaseURL      string
	MaxUploadBytes     int64
	GCSBucket          string
	GCSCredentialsFile string

	HuggingFaceAPIKey string
	CaptionCacheTTL   time.Duration

	CORSOrigins       []string
	AuthRatePerSecond float64
	AuthRateBurst     int
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	port := getEnvAsInt("PORT", 8080)

	cfg := &Config{
		Port:     port,
		DBPath:   getEnv("DB_PATH", "data/snapfeed.db"),
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),

		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/api/auth/google/callback", port)),

		OperationTimeout: getEnvAsDuration("OPERATION_TIMEOUT", 5*time.Second),

		UploadDir:          getEnv("UPLOAD_DIR", "public"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d/public", port)),
		MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_BYTES", 5<<20)),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),

		HuggingFaceAPIKey: os.Getenv("HUGGINGFACE_API_KEY"),
		CaptionCacheTTL:   getEnvAsDuration("CAPTION_CACHE_TTL", 30*time.Minute),

		CORSOrigins:       getEnvAsList("CORS_ORIGINS", []string{"*"}),
		AuthRatePerSecond: getEnvAsFloat("AUTH_RATE_PER_SECOND", 5),
		AuthRateBurst:     getEnvAsInt("AUTH_RATE_BURST", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.AccessTokenSecret) < minSecretLength {
		return fmt.Errorf("config: ACCESS_TOKEN_SECRET must be at least %d characters", minSecretLength)
	}
	if len(c.RefreshTokenSecret) < minSecretLength {
		return fmt.Errorf("config: REFRESH_TOKEN_SECRET must be at least %d characters", minSecretLength)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in can be offered.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
