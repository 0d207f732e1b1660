package models

import "time"

// Hint is the decoded claims of a session-hint cookie: a cached, signed
// snapshot of "who is this and what tier are they on". It is minted once per
// sync and read on every gated request without touching the account store.
type Hint struct {
	Subject   string    `json:"uid"`
	Tier      Tier      `json:"tier"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Expired reports whether the hint's validity window has passed at now.
func (h Hint) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}
