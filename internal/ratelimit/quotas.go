// Package ratelimit bounds short-window abuse of expensive operations with
// per-tier fixed-window quotas. Counters live in a ulule/limiter store
// (in-process memory for a single instance, Redis for a fleet); this package
// owns the decision logic, the store owns durability.
package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viziersvault/vault-session/internal/models"
)

// Action identifies a rate-limited operation class.
type Action string

const (
	ActionGenerations   Action = "generations"
	ActionPartyUpdates  Action = "party_updates"
	ActionAvatarUploads Action = "avatar_uploads"
	ActionAPI           Action = "api"
)

// Quota is the admission budget for one (tier, action) pair: at most Limit
// requests per fixed Window.
type Quota struct {
	Limit  int64
	Window time.Duration
}

// Table maps (tier, action) to a quota. A Table is immutable after
// construction; hot reload swaps whole tables.
type Table struct {
	quotas map[models.Tier]map[Action]Quota
}

// DefaultTable returns the built-in quota grid. Windows and limits follow the
// product's published plans.
func DefaultTable() *Table {
	return &Table{quotas: map[models.Tier]map[Action]Quota{
		models.TierFree: {
			ActionGenerations:   {Limit: 6, Window: 5 * time.Minute},
			ActionPartyUpdates:  {Limit: 0, Window: 5 * time.Minute},
			ActionAvatarUploads: {Limit: 1, Window: 30 * time.Minute},
			ActionAPI:           {Limit: 6, Window: 5 * time.Minute},
		},
		models.TierBasic: {
			ActionGenerations:   {Limit: 12, Window: 5 * time.Minute},
			ActionPartyUpdates:  {Limit: 2, Window: 5 * time.Minute},
			ActionAvatarUploads: {Limit: 2, Window: 30 * time.Minute},
			ActionAPI:           {Limit: 12, Window: 5 * time.Minute},
		},
		models.TierPlus: {
			ActionGenerations:   {Limit: 18, Window: 5 * time.Minute},
			ActionPartyUpdates:  {Limit: 4, Window: 5 * time.Minute},
			ActionAvatarUploads: {Limit: 3, Window: 30 * time.Minute},
			ActionAPI:           {Limit: 18, Window: 5 * time.Minute},
		},
		models.TierPro: {
			ActionGenerations:   {Limit: 24, Window: 5 * time.Minute},
			ActionPartyUpdates:  {Limit: 6, Window: 5 * time.Minute},
			ActionAvatarUploads: {Limit: 5, Window: 30 * time.Minute},
			ActionAPI:           {Limit: 24, Window: 5 * time.Minute},
		},
	}}
}

// yamlQuota is the on-disk quota form; window is a Go duration string.
type yamlQuota struct {
	Limit  int64  `yaml:"limit"`
	Window string `yaml:"window"`
}

// ParseYAML parses and validates a quota table. The document maps tier names
// to action names to {limit, window}:
//
//	plus:
//	  generations: {limit: 18, window: 5m}
func ParseYAML(data []byte) (*Table, error) {
	var raw map[string]map[string]yamlQuota
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse quota table: %w", err)
	}

	quotas := make(map[models.Tier]map[Action]Quota, len(raw))
	for tierName, actions := range raw {
		tier := models.Tier(tierName)
		if !tier.IsValid() {
			return nil, fmt.Errorf("quota table: unknown tier %q", tierName)
		}
		quotas[tier] = make(map[Action]Quota, len(actions))
		for actionName, q := range actions {
			if q.Limit < 0 {
				return nil, fmt.Errorf("quota table: %s/%s: limit must be >= 0", tierName, actionName)
			}
			window, err := time.ParseDuration(q.Window)
			if err != nil {
				return nil, fmt.Errorf("quota table: %s/%s: invalid window %q: %w", tierName, actionName, q.Window, err)
			}
			if window <= 0 {
				return nil, fmt.Errorf("quota table: %s/%s: window must be positive", tierName, actionName)
			}
			quotas[tier][Action(actionName)] = Quota{Limit: q.Limit, Window: window}
		}
	}

	t := &Table{quotas: quotas}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads a YAML quota table from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quota table: %w", err)
	}
	return ParseYAML(data)
}

// Get returns the quota for a (tier, action) pair. Unknown tiers fall back to
// the free tier's quota for the action; unknown actions report ok=false.
func (t *Table) Get(tier models.Tier, action Action) (Quota, bool) {
	actions, ok := t.quotas[tier]
	if !ok {
		actions, ok = t.quotas[models.TierFree]
		if !ok {
			return Quota{}, false
		}
	}
	q, ok := actions[action]
	return q, ok
}

// Actions returns the actions configured for the free tier, which every table
// must define (free is the fail-closed fallback for all lookups).
func (t *Table) Actions() []Action {
	actions := make([]Action, 0, len(t.quotas[models.TierFree]))
	for a := range t.quotas[models.TierFree] {
		actions = append(actions, a)
	}
	return actions
}

// Validate enforces the structural invariants of a quota table: the free tier
// must be present, every tier must cover the same action set, and for each
// action the limits must be monotonic in tier order (a higher tier never gets
// a smaller budget than a lower one).
func (t *Table) Validate() error {
	base, ok := t.quotas[models.TierFree]
	if !ok {
		return fmt.Errorf("quota table: free tier is required")
	}

	for _, tier := range models.Tiers {
		actions, ok := t.quotas[tier]
		if !ok {
			return fmt.Errorf("quota table: tier %q is missing", tier)
		}
		if len(actions) != len(base) {
			return fmt.Errorf("quota table: tier %q must define the same actions as free", tier)
		}
		for action := range base {
			if _, ok := actions[action]; !ok {
				return fmt.Errorf("quota table: tier %q is missing action %q", tier, action)
			}
		}
	}

	for action := range base {
		prev := int64(-1)
		for _, tier := range models.Tiers {
			limit := t.quotas[tier][action].Limit
			if limit < prev {
				return fmt.Errorf("quota table: action %q: limit for %s (%d) is below the next lower tier (%d)",
					action, tier, limit, prev)
			}
			prev = limit
		}
	}
	return nil
}
