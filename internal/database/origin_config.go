package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/viziersvault/vault-session/internal/models"
)

const defaultOriginConfigKey = "default"

// OriginConfigRepository handles the allowed-origins configuration in the database.
type OriginConfigRepository struct {
	db *DB
}

// NewOriginConfigRepository creates a new origin config repository.
func NewOriginConfigRepository(db *DB) *OriginConfigRepository {
	return &OriginConfigRepository{db: db}
}

// Get retrieves the default origin config, or nil when none is stored.
func (r *OriginConfigRepository) Get(ctx context.Context) (*models.OriginConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, created_at, updated_at
		FROM origin_config WHERE config_key = $1
	`, defaultOriginConfigKey)
	c := &models.OriginConfig{}
	err := row.Scan(&c.ConfigKey, &c.AllowedOrigins, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get origin config: %w", err)
	}
	return c, nil
}

// Set upserts the default origin config. AllowedOrigins is comma-separated.
func (r *OriginConfigRepository) Set(ctx context.Context, c *models.OriginConfig) error {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO origin_config (config_key, allowed_origins, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			updated_at = EXCLUDED.updated_at
	`, defaultOriginConfigKey, strings.TrimSpace(c.AllowedOrigins), now, now)
	if err != nil {
		return fmt.Errorf("set origin config: %w", err)
	}
	return nil
}

// AllowedOriginsSlice returns allowed origins as a slice (split by comma,
// trimmed, deduplicated, lowercased for case-insensitive comparison).
func AllowedOriginsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	seen := make(map[string]bool)
	for _, p := range parts {
		s := strings.ToLower(strings.TrimSpace(p))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
