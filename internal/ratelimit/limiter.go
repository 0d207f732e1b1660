package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/viziersvault/vault-session/internal/models"
)

// ErrUnknownAction is returned when an action has no quota row. Handlers map
// it to a client error rather than a server failure.
var ErrUnknownAction = errors.New("rate limit: unknown action")

// Decision is the outcome of an admission check. A denial is a normal
// decision, not an error; callers surface it as HTTP 429.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter admits or denies actions against a per-(tier, action) quota table.
// The increment-and-compare runs as a single atomic operation inside the
// backing store, so racing requests can never both take the last slot.
// Fixed-window counting: unused quota does not carry over, and bursts at
// window boundaries are an accepted trade-off of the discipline.
type Limiter struct {
	store limiter.Store

	mu        sync.RWMutex
	table     *Table
	instances map[string]*limiter.Limiter
}

// New creates a limiter over an arbitrary ulule store.
func New(store limiter.Store, table *Table) (*Limiter, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		store:     store,
		table:     table,
		instances: make(map[string]*limiter.Limiter),
	}, nil
}

// NewMemory creates a limiter with in-process counters. Suitable for a single
// server instance; counters do not survive restarts. Fleets share counters by
// passing a Redis-backed store to New instead.
func NewMemory(table *Table) (*Limiter, error) {
	return New(memorystore.NewStore(), table)
}

// SetTable swaps in a new quota table (hot reload). The instance cache is
// rebuilt lazily; in-flight windows in the store keep counting.
func (l *Limiter) SetTable(table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.table = table
	l.instances = make(map[string]*limiter.Limiter)
	l.mu.Unlock()
	return nil
}

// Table returns the current quota table.
func (l *Limiter) Table() *Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.table
}

// Admit decides whether callerKey may perform action at the given tier and
// reports the remaining budget. callerKey must identify the limited entity
// consistently for an action: the authenticated user id when available,
// otherwise a network-address key.
func (l *Limiter) Admit(ctx context.Context, tier models.Tier, callerKey string, action Action) (Decision, error) {
	instance, quota, err := l.instance(tier, action)
	if err != nil {
		return Decision{}, err
	}

	key := string(tier) + ":" + string(action) + ":" + callerKey
	lctx, err := instance.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s for %q: %w", action, callerKey, err)
	}

	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     quota.Limit,
		Remaining: lctx.Remaining,
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}

// Peek reports the remaining budget without consuming a slot.
func (l *Limiter) Peek(ctx context.Context, tier models.Tier, callerKey string, action Action) (Decision, error) {
	instance, quota, err := l.instance(tier, action)
	if err != nil {
		return Decision{}, err
	}

	key := string(tier) + ":" + string(action) + ":" + callerKey
	lctx, err := instance.Peek(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("peek rate limit %s for %q: %w", action, callerKey, err)
	}

	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     quota.Limit,
		Remaining: lctx.Remaining,
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}

// instance returns the cached limiter for a (tier, action) pair, creating it
// on first use (one instance per pair, mirroring one rate per quota cell).
func (l *Limiter) instance(tier models.Tier, action Action) (*limiter.Limiter, Quota, error) {
	if !tier.IsValid() {
		tier = models.TierFree
	}

	l.mu.RLock()
	quota, ok := l.table.Get(tier, action)
	if !ok {
		l.mu.RUnlock()
		return nil, Quota{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	cacheKey := string(tier) + "|" + string(action)
	instance := l.instances[cacheKey]
	l.mu.RUnlock()

	if instance != nil {
		return instance, quota, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if instance = l.instances[cacheKey]; instance == nil {
		instance = limiter.New(l.store, limiter.Rate{Period: quota.Window, Limit: quota.Limit})
		l.instances[cacheKey] = instance
	}
	return instance, quota, nil
}
