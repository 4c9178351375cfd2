// Package notify emits approval events toward the reminder service.
// Delivery is best effort: the coordinator enqueues and moves on, a
// background worker publishes, and a full queue or dead broker never
// fails or blocks a mutation.
package notify

import (
	"time"

	id "screenflow/pkg/domain"
)

// Event is one approval-requested notification.
type Event struct {
	SessionID              id.SessionID  `json:"session_id"`
	RequestID              id.ApprovalID `json:"request_id"`
	RequestedBy            id.UserID     `json:"requested_by"`
	ApprovalType           string        `json:"approval_type"`
	RequiresSecondApproval bool          `json:"requires_second_approval"`
	Notes                  string        `json:"notes,omitempty"`
	RequestedAt            time.Time     `json:"requested_at"`
}
