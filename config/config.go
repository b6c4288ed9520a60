package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port           string
	DatabaseURL    string
	ServiceToken   string
	AllowedOrigins string
	LogLevel       logrus.Level

	ReconcileInterval  time.Duration
	ReconcileBatchSize int

	ArchiveEnabled bool
	ArchivePrefix  string
	R2             R2Config
}

// R2Config holds the Cloudflare R2 (S3-compatible) credentials used by the postback-log archive.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// LoadEnv loads .env files when present. File values override the process environment.
func LoadEnv(logger logrus.FieldLogger) {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
		return
	}
	logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               GetEnv("PORT", "5200"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ServiceToken:       strings.TrimSpace(os.Getenv("SERVICE_TOKEN")),
		AllowedOrigins:     GetEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		LogLevel:           GetLogLevel(),
		ReconcileInterval:  GetEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcileBatchSize: GetEnvInt("RECONCILE_BATCH_SIZE", 200),
		ArchiveEnabled:     GetEnvBool("ARCHIVE_ENABLED", false),
		ArchivePrefix:      GetEnv("ARCHIVE_PREFIX", "postback-logs"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.ServiceToken == "" {
		return nil, errors.New("SERVICE_TOKEN is required")
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 200
	}
	if cfg.ArchiveEnabled && (cfg.R2.AccountID == "" || cfg.R2.Bucket == "") {
		return nil, errors.New("ARCHIVE_ENABLED requires CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME")
	}
	return cfg, nil
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration accepts Go duration strings ("90s", "10m").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// GetLogLevel gets the log level from environment
func GetLogLevel() logrus.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
