package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	Redis         RedisConfig
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration

	HTTPReadHeaderTimeout time.Duration
	HTTPReadTimeout       time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration

	// Department names that own the two maintenance-form field groups.
	// Matched case-insensitively after trimming.
	MaintenanceDepartment string
	SafetyDepartment      string
}

// RedisConfig holds connection settings for the optional reference-data cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ReferenceCacheTTL bounds staleness of cached reference data (departments).
var ReferenceCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                  getEnv("QUALITRACK_ADDR", ":8080"),
		PostgresDSN:           os.Getenv("QUALITRACK_POSTGRES_DSN"),
		JWTIssuer:             getEnv("QUALITRACK_JWT_ISSUER", "qualitrack"),
		JWTAudience:           getEnv("QUALITRACK_JWT_AUDIENCE", "qualitrack-api"),
		TokenTTL:              getDuration("QUALITRACK_TOKEN_TTL", 8*time.Hour),
		HTTPReadHeaderTimeout: getDuration("QUALITRACK_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		HTTPReadTimeout:       getDuration("QUALITRACK_HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout:      getDuration("QUALITRACK_HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:       getDuration("QUALITRACK_HTTP_IDLE_TIMEOUT", time.Minute),
		MaintenanceDepartment: getEnv("QUALITRACK_MAINTENANCE_DEPARTMENT", "maintenance system"),
		SafetyDepartment:      getEnv("QUALITRACK_SAFETY_DEPARTMENT", "she"),
		Redis: RedisConfig{
			URL:          os.Getenv("QUALITRACK_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}

	cfg.JWTSigningKey = os.Getenv("QUALITRACK_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
