// Package config loads delivery gateway configuration from the environment.
//
// The gateway is deliberately config-light: a shared signing secret, a CORS
// origin allow-list, and object store credentials. Everything else that a
// stateful service would configure (database, cache, sessions) is absent on
// purpose — statelessness is the deployment contract.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds everything the gateway needs to serve requests.
type Config struct {
	// Port the HTTP server listens on (env: DELIVERY_PORT, default 8117).
	Port string

	// Secret is the symmetric HMAC key shared with the token-minting
	// origin API (env: DELIVERY_SECRET, required).
	Secret []byte

	// AllowedOrigins is the CORS allow-list (env: ALLOWED_ORIGINS,
	// comma-separated; "*" allows any origin).
	AllowedOrigins []string

	// Object store credentials.
	R2Endpoint  string // env: R2_ENDPOINT
	R2Bucket    string // env: R2_BUCKET
	R2AccessKey string // env: R2_ACCESS_KEY
	R2SecretKey string // env: R2_SECRET_KEY

	// SentryDSN enables error tracking when non-empty (env: SENTRY_DSN).
	SentryDSN string
}

// Load reads configuration from the environment. The signing secret is the
// only hard requirement here — store credentials are validated by the store
// client so tests can construct partial configs.
func Load() (*Config, error) {
	secret := os.Getenv("DELIVERY_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("config: DELIVERY_SECRET is not set — the gateway cannot verify tokens without the shared secret")
	}

	cfg := &Config{
		Port:        getEnv("DELIVERY_PORT", "8117"),
		Secret:      []byte(secret),
		R2Endpoint:  os.Getenv("R2_ENDPOINT"),
		R2Bucket:    getEnv("R2_BUCKET", "viralclip-media"),
		R2AccessKey: os.Getenv("R2_ACCESS_KEY"),
		R2SecretKey: os.Getenv("R2_SECRET_KEY"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
	}

	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, nil
}

// getEnv reads an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
