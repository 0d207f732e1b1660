package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/viziersvault/vault-session/internal/database"
	"go.uber.org/zap"
)

// OriginReloader owns the allowed-origins list: it serves the browser CORS
// layer (rs/cors) and feeds the OriginCheck CSRF middleware, periodically
// reloading the list from the database with the ALLOWED_ORIGINS env value as
// fallback.
type OriginReloader struct {
	next     http.Handler
	repo     *database.OriginConfigRepository
	fallback string
	log      *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	origins  []string
	current  http.Handler
}

// NewOriginReloader creates the reloader. repo may be nil (env-only mode, no
// hot reload).
func NewOriginReloader(repo *database.OriginConfigRepository, envFallback string, log *zap.Logger, reloadInterval time.Duration) *OriginReloader {
	return &OriginReloader{
		repo:     repo,
		fallback: envFallback,
		log:      log,
		interval: reloadInterval,
	}
}

// Origins returns the current allow-list (lowercased scheme+host values).
func (r *OriginReloader) Origins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.origins
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (r *OriginReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *OriginReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
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

func (r *OriginReloader) load(ctx context.Context) {
	raw := r.fallback
	if r.repo != nil {
		cfg, err := r.repo.Get(ctx)
		if err != nil {
			r.log.Warn("failed_to_load_origin_config_from_db_using_fallback", zap.Error(err))
		} else if cfg != nil && cfg.AllowedOrigins != "" {
			raw = cfg.AllowedOrigins
		}
	}

	origins := database.AllowedOriginsSlice(raw)
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	var h http.Handler
	if r.next != nil {
		c := cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowCredentials: true,
			MaxAge:           86400,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
		})
		h = c.Handler(r.next)
	}

	r.mu.Lock()
	r.origins = origins
	if h != nil {
		r.current = h
	}
	r.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (r *OriginReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}
