package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/viziersvault/vault-session/internal/models"
)

// tableWith builds a valid table where every tier gets the same quota for a
// single action, so tests can pick arbitrary limits without tripping the
// monotonicity check.
func tableWith(action Action, limit int64, window time.Duration) *Table {
	quotas := make(map[models.Tier]map[Action]Quota, len(models.Tiers))
	for _, tier := range models.Tiers {
		quotas[tier] = map[Action]Quota{action: {Limit: limit, Window: window}}
	}
	return &Table{quotas: quotas}
}

func TestLimiter_WindowBoundary(t *testing.T) {
	t.Parallel()

	const limit = 5
	l, err := NewMemory(tableWith(ActionGenerations, limit, 200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	ctx := context.Background()

	// Exactly limit calls admitted, the next denied.
	for i := 0; i < limit; i++ {
		d, err := l.Admit(ctx, models.TierFree, "u1", ActionGenerations)
		if err != nil {
			t.Fatalf("Admit %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("Expected call %d to be admitted", i+1)
		}
		if want := int64(limit - i - 1); d.Remaining != want {
			t.Errorf("call %d: expected remaining %d, got %d", i+1, want, d.Remaining)
		}
	}

	d, err := l.Admit(ctx, models.TierFree, "u1", ActionGenerations)
	if err != nil {
		t.Fatalf("Admit over limit: %v", err)
	}
	if d.Allowed {
		t.Fatal("Expected call over the limit to be denied")
	}
	if d.Remaining != 0 {
		t.Errorf("Expected remaining 0 on denial, got %d", d.Remaining)
	}
	if d.ResetAt.Before(time.Now().Add(-time.Second)) {
		t.Errorf("Expected a future reset time, got %v", d.ResetAt)
	}

	// After the window elapses the counter starts fresh.
	time.Sleep(250 * time.Millisecond)
	d, err = l.Admit(ctx, models.TierFree, "u1", ActionGenerations)
	if err != nil {
		t.Fatalf("Admit after window: %v", err)
	}
	if !d.Allowed {
		t.Fatal("Expected admission after the window elapsed")
	}
}

func TestLimiter_ZeroLimitDeniesAll(t *testing.T) {
	t.Parallel()

	l, err := NewMemory(DefaultTable())
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	// Free tier has no party-update budget at all.
	d, err := l.Admit(context.Background(), models.TierFree, "u1", ActionPartyUpdates)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if d.Allowed {
		t.Fatal("Expected zero-limit quota to deny the first call")
	}
}

func TestLimiter_KeysAreIsolated(t *testing.T) {
	t.Parallel()

	l, err := NewMemory(tableWith(ActionGenerations, 1, time.Minute))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	ctx := context.Background()

	if d, _ := l.Admit(ctx, models.TierFree, "u1", ActionGenerations); !d.Allowed {
		t.Fatal("Expected u1's first call to be admitted")
	}
	if d, _ := l.Admit(ctx, models.TierFree, "u1", ActionGenerations); d.Allowed {
		t.Fatal("Expected u1's second call to be denied")
	}
	// A different caller key has its own counter.
	if d, _ := l.Admit(ctx, models.TierFree, "u2", ActionGenerations); !d.Allowed {
		t.Fatal("Expected u2's first call to be admitted")
	}
	// So does the same caller at a different tier.
	if d, _ := l.Admit(ctx, models.TierPro, "u1", ActionGenerations); !d.Allowed {
		t.Fatal("Expected u1's first pro-tier call to be admitted")
	}
}

func TestLimiter_UnknownAction(t *testing.T) {
	t.Parallel()

	l, err := NewMemory(DefaultTable())
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if _, err := l.Admit(context.Background(), models.TierFree, "u1", Action("teleport")); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Expected ErrUnknownAction, got %v", err)
	}
}

func TestLimiter_UnknownTierFallsBackToFree(t *testing.T) {
	t.Parallel()

	l, err := NewMemory(DefaultTable())
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	d, err := l.Admit(context.Background(), models.Tier("enterprise"), "u1", ActionGenerations)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	free, _ := DefaultTable().Get(models.TierFree, ActionGenerations)
	if d.Limit != free.Limit {
		t.Errorf("Expected unknown tier to get the free limit %d, got %d", free.Limit, d.Limit)
	}
}

func TestLimiter_ConcurrentAdmissions(t *testing.T) {
	t.Parallel()

	const (
		limit   = 5
		callers = 32
	)
	l, err := NewMemory(tableWith(ActionGenerations, limit, time.Minute))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := l.Admit(ctx, models.TierPlus, "u1", ActionGenerations)
			if err != nil {
				t.Errorf("Admit: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if allowed != limit {
		t.Fatalf("Expected exactly %d concurrent admissions, got %d", limit, allowed)
	}
}

func TestLimiter_SetTable(t *testing.T) {
	t.Parallel()

	l, err := NewMemory(tableWith(ActionGenerations, 1, time.Minute))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	// Swapping in an invalid table must be rejected and leave the old one.
	bad := &Table{quotas: map[models.Tier]map[Action]Quota{
		models.TierFree: {ActionGenerations: {Limit: 10, Window: time.Minute}},
	}}
	if err := l.SetTable(bad); err == nil {
		t.Fatal("Expected SetTable to reject an incomplete table")
	}

	if err := l.SetTable(tableWith(ActionGenerations, 3, time.Minute)); err != nil {
		t.Fatalf("SetTable: %v", err)
	}
	d, err := l.Admit(context.Background(), models.TierFree, "fresh-caller", ActionGenerations)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if d.Limit != 3 {
		t.Errorf("Expected new limit 3 after swap, got %d", d.Limit)
	}
}
