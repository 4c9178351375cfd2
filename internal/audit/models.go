// Package audit provides the append-only, hash-chained record of every
// mutating action on a screening session. Entries store snapshots, never
// live pointers into the aggregate, so the log stays immutable while the
// session keeps changing.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	id "screenflow/pkg/domain"
)

// Action names the mutating operation an entry records.
type Action string

const (
	ActionSessionCreated    Action = "session_created"
	ActionSessionJoined     Action = "session_joined"
	ActionSessionLeft       Action = "session_left"
	ActionStepUpdated       Action = "step_updated"
	ActionStepCompleted     Action = "step_completed"
	ActionStepAssigned      Action = "step_assigned"
	ActionLockAcquired      Action = "lock_acquired"
	ActionLockReleased      Action = "lock_released"
	ActionApprovalRequested Action = "approval_requested"
	ActionApprovalApproved  Action = "approval_approved"
	ActionApprovalRejected  Action = "approval_rejected"
)

// Entry is one immutable audit record.
//
// EntryHash = SHA-256(action | actor | session_id | timestamp | new_data |
// PrevHash), where PrevHash is the previous global entry's hash. Logs
// across all sessions form a single chain: deleting or reordering any
// entry invalidates every subsequent hash.
type Entry struct {
	LogID        id.LogID       `json:"log_id"`
	SessionID    id.SessionID   `json:"session_id"`
	Step         string         `json:"step,omitempty"`
	Action       Action         `json:"action"`
	Actor        id.UserID      `json:"actor"`
	Timestamp    time.Time      `json:"timestamp"`
	PreviousData map[string]any `json:"previous_data,omitempty"`
	NewData      map[string]any `json:"new_data,omitempty"`
	ComputedDiff map[string]Delta `json:"computed_diff,omitempty"`
	Device       string         `json:"device,omitempty"`
	PrevHash     string         `json:"previous_entry_hash"`
	EntryHash    string         `json:"entry_hash"`
}

// Delta is one changed field in a step's data map.
type Delta struct {
	Old any `json:"old,omitempty"`
	New any `json:"new,omitempty"`
}

// ComputeHash derives the tamper-evidence hash for the entry given the
// previous global entry's hash. The genesis entry uses the empty string.
func (e *Entry) ComputeHash(prevHash string) string {
	var b strings.Builder
	b.WriteString(string(e.Action))
	b.WriteByte('|')
	b.WriteString(e.Actor.String())
	b.WriteByte('|')
	b.WriteString(e.SessionID.String())
	b.WriteByte('|')
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(canonicalJSON(e.NewData))
	b.WriteByte('|')
	b.WriteString(prevHash)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Diff computes the per-key delta between the previous and new data maps.
func Diff(previous, next map[string]any) map[string]Delta {
	if len(previous) == 0 && len(next) == 0 {
		return nil
	}
	diff := map[string]Delta{}
	for k, newVal := range next {
		oldVal, existed := previous[k]
		if !existed {
			diff[k] = Delta{New: newVal}
			continue
		}
		if !jsonEqual(oldVal, newVal) {
			diff[k] = Delta{Old: oldVal, New: newVal}
		}
	}
	for k, oldVal := range previous {
		if _, still := next[k]; !still {
			diff[k] = Delta{Old: oldVal}
		}
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}

// canonicalJSON renders a map deterministically. encoding/json sorts map
// keys at every nesting level, which is exactly the stability the hash
// needs.
func canonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func jsonEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
