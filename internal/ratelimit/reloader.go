package ratelimit

import (
	"context"
	"time"

	"github.com/viziersvault/vault-session/internal/models"
	"go.uber.org/zap"
)

// QuotaSource provides the stored quota-table override, if any.
type QuotaSource interface {
	Get(ctx context.Context) (*models.QuotaConfig, error)
}

// Reloader periodically reloads the quota table from a QuotaSource and swaps
// it into the limiter. A missing or invalid override leaves the fallback
// table in place; counters in the store are not reset by a swap.
type Reloader struct {
	limiter  *Limiter
	source   QuotaSource
	fallback *Table
	log      *zap.Logger
	interval time.Duration
}

// NewReloader creates a quota reloader. source may be nil (static table, no
// hot reload).
func NewReloader(limiter *Limiter, source QuotaSource, fallback *Table, log *zap.Logger, reloadInterval time.Duration) *Reloader {
	return &Reloader{
		limiter:  limiter,
		source:   source,
		fallback: fallback,
		log:      log,
		interval: reloadInterval,
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) {
	if r.source == nil || r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

func (r *Reloader) load(ctx context.Context) {
	cfg, err := r.source.Get(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_quota_config_from_db_keeping_current", zap.Error(err))
		return
	}

	table := r.fallback
	if cfg != nil && cfg.QuotasYAML != "" {
		parsed, err := ParseYAML([]byte(cfg.QuotasYAML))
		if err != nil {
			// Set() validates before storing, so this only happens if the row
			// was written out-of-band.
			r.log.Error("stored_quota_config_is_invalid_keeping_current", zap.Error(err))
			return
		}
		table = parsed
	}

	if err := r.limiter.SetTable(table); err != nil {
		r.log.Error("failed_to_swap_quota_table", zap.Error(err))
	}
}
