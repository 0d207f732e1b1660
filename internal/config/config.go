package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	DatabaseURL     string
	RedisURL        string
	ServerPort      string
	AllowedOrigins  string
	CookieSecret    string
	HintTTLHours    int
	SecureCookies   bool
	QuotasFile      string
	ServiceRate     string
	EnableHSTS      bool
	IDPIssuer       string
	IDPJWKSURL      string
	OTELEnabled     bool
	OTELEndpoint    string
	ServerDebugMode bool
}

// HintMintingEnabled reports whether a signing secret is configured. Without
// one, sync runs as a no-op that never sets a cookie.
func (c *Config) HintMintingEnabled() bool {
	return c.CookieSecret != ""
}

// IdentityVerificationEnabled reports whether sync calls must carry a bearer
// token from the external identity provider.
func (c *Config) IdentityVerificationEnabled() bool {
	return c.IDPIssuer != "" && c.IDPJWKSURL != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "http://localhost:3000,https://viziersvault.com"),
		CookieSecret:    getEnv("VV_COOKIE_SECRET", ""),
		HintTTLHours:    getEnvInt("HINT_TTL_HOURS", 72),
		SecureCookies:   getEnvBool("SECURE_COOKIES", false),
		QuotasFile:      getEnv("QUOTAS_FILE", ""),
		ServiceRate:     getEnv("SERVICE_RATE", "30-M"),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		IDPIssuer:       getEnv("IDP_ISSUER", ""),
		IDPJWKSURL:      getEnv("IDP_JWKS_URL", ""),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.HintTTLHours <= 0 {
		return nil, fmt.Errorf("HINT_TTL_HOURS must be positive")
	}

	if cfg.IDPIssuer != "" && cfg.IDPJWKSURL == "" {
		return nil, fmt.Errorf("IDP_JWKS_URL is required when IDP_ISSUER is set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
