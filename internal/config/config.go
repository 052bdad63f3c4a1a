package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all configuration for the application
type Config struct {
	// Server Configuration
	Server ServerConfig

	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// Storage Configuration
	Storage StorageConfig

	// Auth Configuration
	Auth AuthConfig

	// Worker Configuration
	Worker WorkerConfig

	// Mail Configuration
	Mail MailConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	// PublicURL prefixes file URLs in API responses; derived from the request when empty
	PublicURL string
	// CORSOrigins are browser origins allowed to call the API
	CORSOrigins []string
	// MaxUploadBytes caps multipart upload size
	MaxUploadBytes int64
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// URL is a SQLite path, or a postgres:// URL
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port); empty disables the task queue
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// StorageConfig selects where uploaded files live
type StorageConfig struct {
	Backend   string // local, s3
	MediaRoot string // local backend directory

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
}

// AuthConfig holds API token settings
type AuthConfig struct {
	// TokenTTL of 0 issues tokens that never expire
	TokenTTL time.Duration
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	// OrphanSweepSchedule is a cron spec for the orphaned file sweep
	OrphanSweepSchedule string
}

// MailConfig holds SMTP settings for contact form delivery
type MailConfig struct {
	SMTPHost     string // empty logs contact messages instead of mailing them
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	// SMTPTLS is one of: opportunistic, mandatory, none
	SMTPTLS string
	From    string
	// ContactTo receives contact form messages
	ContactTo string
}

// Enabled reports whether contact messages are sent over SMTP
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	maxUploadMB, err := intEnv("MAX_UPLOAD_MB", 100)
	if err != nil {
		return nil, err
	}

	tokenTTL, err := durationEnv("TOKEN_TTL", 0)
	if err != nil {
		return nil, err
	}

	useSSL, err := boolEnv("S3_USE_SSL", true)
	if err != nil {
		return nil, err
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			PublicURL:      strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
			MaxUploadBytes: int64(maxUploadMB) << 20,
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "mediad.sqlite"),
		},
		Redis: RedisConfig{
			// No default: without Redis, file purges run inline
			Address: os.Getenv("REDIS_ADDRESS"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
			MediaRoot:   getEnv("MEDIA_ROOT", "media"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
			S3Region:    os.Getenv("S3_REGION"),
			S3UseSSL:    useSSL,
		},
		Auth: AuthConfig{
			TokenTTL: tokenTTL,
		},
		Worker: WorkerConfig{
			OrphanSweepSchedule: getEnv("ORPHAN_SWEEP_SCHEDULE", "@hourly"),
		},
		Mail: MailConfig{
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     smtpPort,
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			SMTPTLS:      strings.ToLower(getEnv("SMTP_TLS", "opportunistic")),
			From:         getEnv("CONTACT_FROM_EMAIL", "mediad@localhost"),
			ContactTo:    os.Getenv("CONTACT_TO_EMAIL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.MediaRoot == "" {
			return fmt.Errorf("MEDIA_ROOT is required for the local storage backend")
		}
	case StorageS3:
		if c.Storage.S3Endpoint == "" || c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND '%s', must be one of: local, s3", c.Storage.Backend)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.Mail.Enabled() {
		if c.Mail.ContactTo == "" {
			return fmt.Errorf("CONTACT_TO_EMAIL is required when SMTP_HOST is set")
		}
		switch c.Mail.SMTPTLS {
		case "opportunistic", "mandatory", "none":
		default:
			return fmt.Errorf("invalid SMTP_TLS '%s', must be one of: opportunistic, mandatory, none", c.Mail.SMTPTLS)
		}
	}
	return nil
}

// UsesPostgres reports whether DATABASE_URL points at PostgreSQL
func (d DatabaseConfig) UsesPostgres() bool {
	return strings.HasPrefix(d.URL, "postgres://") || strings.HasPrefix(d.URL, "postgresql://")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
