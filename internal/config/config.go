package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App holds the server configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	DatabaseURL     string
	DBDriver        string
	RedisAddr       string
	JWTIssuer       string
	JWTSigningKey   string
	SessionTTL      time.Duration
	RateLimitPerMin int
	UploadMaxBytes  int64
	SeedDefaults    bool
	// ProofQueue set to "redis" hands proofs to cmd/worker instead of
	// uploading them during the request.
	ProofQueue string
	QueueKey   string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// Load reads a .env file when present and returns the config with defaults.
// Invalid values are reported through warn and replaced by their fallback.
func Load(warn func(msg string, fields ...zap.Field)) App {
	if warn == nil {
		warn = func(string, ...zap.Field) {}
	}
	_ = godotenv.Load()

	e := env{warn: warn}
	cfg := App{
		Env:             e.str("APP_ENV", "dev"),
		HTTPPort:        e.str("HTTP_PORT", "8080"),
		DatabaseURL:     e.str("DATABASE_URL", "file:college_portal.db?_foreign_keys=on"),
		DBDriver:        e.str("DB_DRIVER", ""),
		RedisAddr:       e.str("REDIS_ADDR", "localhost:6379"),
		JWTIssuer:       e.str("JWT_ISSUER", "college-portal"),
		JWTSigningKey:   e.str("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		SessionTTL:      e.duration("SESSION_TTL", 12*time.Hour),
		RateLimitPerMin: e.integer("RATE_LIMIT_PER_MIN", 300),
		UploadMaxBytes:  int64(e.integer("UPLOAD_MAX_BYTES", 8<<20)),
		SeedDefaults:    e.boolean("SEED_DEFAULTS", true),
		ProofQueue:      e.str("PROOF_QUEUE", ""),
		QueueKey:        e.str("QUEUE_KEY", "portal:jobs"),

		CloudinaryCloudName: e.str("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    e.str("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: e.str("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    e.str("CLOUDINARY_FOLDER", "college-portal/proofs"),
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverFor(cfg.DatabaseURL)
	}
	return cfg
}

// Production reports whether the server runs with production defaults.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// CloudinaryEnabled reports whether proof uploads can be stored remotely.
func (a App) CloudinaryEnabled() bool {
	return a.CloudinaryCloudName != "" && a.CloudinaryAPIKey != "" && a.CloudinaryAPISecret != ""
}

// QueueProofs reports whether proof uploads go through the job queue.
func (a App) QueueProofs() bool {
	return a.ProofQueue == "redis" && a.CloudinaryEnabled()
}

// DriverFor picks the database/sql driver name from a connection string.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx"
	}
	return "sqlite3"
}

type env struct {
	warn func(msg string, fields ...zap.Field)
}

func (e env) str(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func (e env) duration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.warn("invalid duration, using fallback", zap.String("key", key), zap.Error(err), zap.Duration("fallback", fallback))
			return fallback
		}
		return d
	}
	return fallback
}

func (e env) boolean(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		switch val {
		case "1", "true", "TRUE":
			return true
		case "0", "false", "FALSE":
			return false
		}
		e.warn("invalid bool, using fallback", zap.String("key", key), zap.Bool("fallback", fallback))
	}
	return fallback
}

func (e env) integer(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		e.warn("invalid int, using fallback", zap.String("key", key), zap.Int("fallback", fallback))
	}
	return fallback
}
