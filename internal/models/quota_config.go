package models

import "time"

// QuotaConfig holds a YAML quota-table override stored in the database.
// When present it replaces the compiled-in defaults (after validation);
// the QUOTAS_FILE env value is the local-file equivalent.
type QuotaConfig struct {
	ConfigKey  string    `json:"config_key"`
	QuotasYAML string    `json:"quotas_yaml"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
