package models

import "time"

// OriginConfig holds the allow-listed application origins (comma-separated
// scheme+host values). Stored in the database so it can be changed without a
// redeploy; the ALLOWED_ORIGINS env value is the fallback.
type OriginConfig struct {
	ConfigKey      string    `json:"config_key"`
	AllowedOrigins string    `json:"allowed_origins"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
