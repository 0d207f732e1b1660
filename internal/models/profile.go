package models

import "time"

// Profile represents a user's account profile row in the authoritative store.
// The session core only cares about the subscription plan; everything else on
// the profile is owned by the main application.
type Profile struct {
	UserID    string    `json:"user_id"`
	Plan      *string   `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanOrFree returns the stored plan string, or "free" when no plan is set.
func (p *Profile) PlanOrFree() string {
	if p == nil || p.Plan == nil || *p.Plan == "" {
		return string(TierFree)
	}
	return *p.Plan
}
