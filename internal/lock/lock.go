// Package lock grants short-lived exclusive leases on individual workflow
// steps. A lease self-expires after the configured TTL with no renewal
// call; expiry is evaluated lazily at read/acquire time, so no background
// sweep exists.
package lock

import (
	"time"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
)

// DefaultTTL is the lease lifetime from acquisition.
const DefaultTTL = 30 * time.Minute

// StepLock is an ephemeral lease keyed by (session, step). Exactly zero or
// one live lock exists per step at any instant; a lock whose ExpiresAt is
// in the past is logically absent.
type StepLock struct {
	SessionID id.SessionID `json:"session_id"`
	Step      models.Step  `json:"step"`
	LockedBy  id.UserID    `json:"locked_by"`
	LockedAt  time.Time    `json:"locked_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Live reports whether the lease is still in force at the given instant.
func (l StepLock) Live(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}
