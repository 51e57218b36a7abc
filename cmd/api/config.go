package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"tenauth.org/internal/auth"
)

type config struct {
	Addr          string
	PostgresDSN   string
	RedisAddr     string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	CookieSecure  bool
}

// loadConfig reads everything from the environment. Bad token lifetimes are a
// startup error, not a fallback to defaults.
func loadConfig() (config, error) {
	cfg := config{
		Addr:          envOr("TENAUTH_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("TENAUTH_PG_DSN"),
		RedisAddr:     os.Getenv("TENAUTH_REDIS_ADDR"),
		AccessSecret:  os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		CookieSecure:  os.Getenv("TENAUTH_COOKIE_SECURE") == "true",
	}
	if cfg.PostgresDSN == "" {
		return config{}, errors.New("TENAUTH_PG_DSN is required")
	}
	if cfg.AccessSecret == "" {
		return config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.RefreshSecret == "" {
		return config{}, errors.New("JWT_REFRESH_SECRET is required")
	}

	var err error
	cfg.AccessTTL, err = durationEnv("JWT_EXPIRES_IN", 15*time.Minute)
	if err != nil {
		return config{}, err
	}
	cfg.RefreshTTL, err = durationEnv("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour)
	if err != nil {
		return config{}, err
	}
	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := auth.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
