// Package approval gates terminal completion of a session behind one- or
// two-person sign-off. At most one pending request exists per session; a
// new request may only be created after the prior one reached a terminal
// state.
package approval

import (
	"time"

	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
)

// Status is the request lifecycle: pending → approved | rejected, both
// terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is one approval request.
//
// RequiresSecondApproval is a policy flag the requester sets for high-risk
// approval types. It is carried and persisted but not enforced here: the
// resolver does not require a second, distinct approver. A calling policy
// layer may act on the flag.
type Request struct {
	RequestID              id.ApprovalID `json:"request_id"`
	SessionID              id.SessionID  `json:"session_id"`
	RequestedBy            id.UserID     `json:"requested_by"`
	ApprovalType           string        `json:"approval_type"`
	Status                 Status        `json:"status"`
	RequiresSecondApproval bool          `json:"requires_second_approval"`
	ApproverID             *id.UserID    `json:"approver_id,omitempty"`
	Notes                  string        `json:"notes,omitempty"`
	ResolutionNotes        string        `json:"resolution_notes,omitempty"`
	RequestedAt            time.Time     `json:"requested_at"`
	ResolvedAt             *time.Time    `json:"resolved_at,omitempty"`
}

// NewRequest builds a pending request.
func NewRequest(sessionID id.SessionID, requestedBy id.UserID, approvalType, notes string, requiresSecond bool, now time.Time) (*Request, error) {
	if approvalType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "approval_type is required")
	}
	return &Request{
		RequestID:              id.NewApprovalID(),
		SessionID:              sessionID,
		RequestedBy:            requestedBy,
		ApprovalType:           approvalType,
		Status:                 StatusPending,
		RequiresSecondApproval: requiresSecond,
		Notes:                  notes,
		RequestedAt:            now,
	}, nil
}

// Resolve transitions the request to its terminal state.
func (r *Request) Resolve(approver id.UserID, approved bool, notes string, now time.Time) {
	if approved {
		r.Status = StatusApproved
	} else {
		r.Status = StatusRejected
	}
	by := approver
	r.ApproverID = &by
	r.ResolutionNotes = notes
	resolved := now
	r.ResolvedAt = &resolved
}
