package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const (
	defaultAccessTTL       = "15m"
	defaultRefreshTTL      = "168h"
	defaultCleanupInterval = "1h"
	defaultRetention       = "720h"
	defaultIssuer          = "activepanel-api"
	defaultAudience        = "activepanel-frontend"
	defaultCookieSecure    = "false"
	defaultCookieSameSite  = "Lax"
	defaultCookiePath      = "/api/v1/auth/refresh"
	defaultPrivateKeyPath  = "keys/private.pem"
	defaultPublicKeyPath   = "keys/public.pem"
)

type Config struct {
	AppEnv      string
	DatabaseURL string
	RedisAddr   string

	Issuer   string
	Audience string

	PrivateKeyPath string
	PublicKeyPath  string

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	CleanupInterval time.Duration
	// Retention keeps revoked ledger rows around past their revocation so a
	// late replay of an old token still hits a row instead of a purge gap.
	Retention time.Duration

	CookieSecure   bool
	CookieSameSite string
	CookiePath     string
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))

	cfg.Issuer = strings.TrimSpace(getEnv("JWT_ISSUER", defaultIssuer))
	cfg.Audience = strings.TrimSpace(getEnv("JWT_AUDIENCE", defaultAudience))
	cfg.PrivateKeyPath = strings.TrimSpace(getEnv("JWT_PRIVATE_KEY_PATH", defaultPrivateKeyPath))
	cfg.PublicKeyPath = strings.TrimSpace(getEnv("JWT_PUBLIC_KEY_PATH", defaultPublicKeyPath))

	var err error
	cfg.AccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", defaultRefreshTTL)
	if err != nil {
		return nil, err
	}
	cfg.CleanupInterval, err = parseDurationEnv("TOKEN_CLEANUP_INTERVAL", defaultCleanupInterval)
	if err != nil {
		return nil, err
	}
	cfg.Retention, err = parseDurationEnv("TOKEN_RETENTION", defaultRetention)
	if err != nil {
		return nil, err
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))

	if err := validate(cfg); err != nil {
		return nil, err
	}

	log.Printf("auth config: access_ttl=%s refresh_ttl=%s cleanup=%s cookie_secure=%t cookie_path=%s",
		cfg.AccessTTL, cfg.RefreshTTL, cfg.CleanupInterval, cfg.CookieSecure, cfg.CookiePath)

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL must be > 0")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL")
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("TOKEN_CLEANUP_INTERVAL must be > 0")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}
	if isProdLike(cfg.AppEnv) && !cfg.CookieSecure {
		return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
