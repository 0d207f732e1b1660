package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/viziersvault/vault-session/internal/models"
	"github.com/viziersvault/vault-session/internal/ratelimit"
)

const defaultQuotaConfigKey = "default"

// QuotaConfigRepository handles quota-table overrides in the database.
type QuotaConfigRepository struct {
	db *DB
}

// NewQuotaConfigRepository creates a new quota config repository.
func NewQuotaConfigRepository(db *DB) *QuotaConfigRepository {
	return &QuotaConfigRepository{db: db}
}

// Get retrieves the default quota override, or nil when none is stored.
func (r *QuotaConfigRepository) Get(ctx context.Context) (*models.QuotaConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, quotas_yaml, created_at, updated_at
		FROM quota_config WHERE config_key = $1
	`, defaultQuotaConfigKey)
	c := &models.QuotaConfig{}
	err := row.Scan(&c.ConfigKey, &c.QuotasYAML, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota config: %w", err)
	}
	return c, nil
}

// Set upserts the default quota override. The YAML is validated (including
// tier monotonicity) before it is stored, so a bad table never reaches the
// hot-reload path.
func (r *QuotaConfigRepository) Set(ctx context.Context, c *models.QuotaConfig) error {
	doc := strings.TrimSpace(c.QuotasYAML)
	if doc == "" {
		return fmt.Errorf("quotas_yaml cannot be empty")
	}
	if _, err := ratelimit.ParseYAML([]byte(doc)); err != nil {
		return fmt.Errorf("invalid quota table: %w", err)
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quota_config (config_key, quotas_yaml, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			quotas_yaml = EXCLUDED.quotas_yaml,
			updated_at = EXCLUDED.updated_at
	`, defaultQuotaConfigKey, doc, now, now)
	if err != nil {
		return fmt.Errorf("set quota config: %w", err)
	}
	return nil
}
