package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	HTTPPort          string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	JWTSecret         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshTokenBytes int
	UserRPM           int
	GuestRPM          int
	SocketUserRPM     int
	SocketGuestRPM    int
	SweepInterval     time.Duration
	AdminEmail        string
	AdminPassword     string
	ServiceName       string
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:   getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshTokenBytes: getInt("REFRESH_TOKEN_BYTES", 32),
		UserRPM:           getInt("RATE_LIMIT_USER_RPM", 300),
		GuestRPM:          getInt("RATE_LIMIT_GUEST_RPM", 60),
		SocketUserRPM:     getInt("SOCKET_RATE_USER_RPM", 300),
		SocketGuestRPM:    getInt("SOCKET_RATE_GUEST_RPM", 120),
		SweepInterval:     getDuration("REFRESH_SWEEP_INTERVAL", time.Hour),
		AdminEmail:        strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:     strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		ServiceName:       getEnv("SERVICE_NAME", "gamehub-identity"),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	// 16 random bytes is the 128-bit entropy floor for refresh tokens.
	if cfg.RefreshTokenBytes < 16 {
		cfg.RefreshTokenBytes = 16
	}

	if cfg.UserRPM < 1 {
		cfg.UserRPM = 1
	}
	if cfg.GuestRPM < 1 {
		cfg.GuestRPM = 1
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
