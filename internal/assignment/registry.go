// Package assignment maps workflow steps to the staff member responsible.
// Assignments append: a step may carry many historical assignments, and
// only the latest one is authoritative for permission checks.
package assignment

import (
	"context"
	"errors"
	"time"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
)

// Priority orders competing work for the assignee's queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether the priority is recognized.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Assignment is one append-only assignment record.
type Assignment struct {
	SessionID    id.SessionID `json:"session_id"`
	Step         models.Step  `json:"step"`
	AssignedBy   id.UserID    `json:"assigned_by"`
	AssignedTo   id.UserID    `json:"assigned_to"`
	AssigneeRole id.Role      `json:"assignee_role"`
	Priority     Priority     `json:"priority"`
	AssignedAt   time.Time    `json:"assigned_at"`
}

// Store keeps assignment history per (session, step).
type Store interface {
	Append(ctx context.Context, a Assignment) error
	// Latest returns the authoritative assignment, or ok=false when the
	// step has never been assigned.
	Latest(ctx context.Context, sessionID id.SessionID, step models.Step) (Assignment, bool, error)
	History(ctx context.Context, sessionID id.SessionID, step models.Step) ([]Assignment, error)
}

// Registry is the step assignment component.
type Registry struct {
	store Store
}

func NewRegistry(store Store) (*Registry, error) {
	if store == nil {
		return nil, errors.New("assignment store is required")
	}
	return &Registry{store: store}, nil
}

// Assign appends a new assignment record. Reassignment is allowed and
// simply appends; there is no uniqueness constraint.
func (r *Registry) Assign(ctx context.Context, a Assignment) error {
	if a.AssignedTo.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "assignee is required")
	}
	if !a.AssigneeRole.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", a.AssigneeRole)
	}
	if a.Priority == "" {
		a.Priority = PriorityNormal
	}
	if !a.Priority.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown priority %q", a.Priority)
	}
	if err := r.store.Append(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "assignment store unavailable")
	}
	return nil
}

// Latest returns the authoritative assignment for the step, if any.
func (r *Registry) Latest(ctx context.Context, sessionID id.SessionID, step models.Step) (Assignment, bool, error) {
	a, ok, err := r.store.Latest(ctx, sessionID, step)
	if err != nil {
		return Assignment{}, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "assignment store unavailable")
	}
	return a, ok, nil
}

// History returns every assignment ever made for the step, oldest first.
func (r *Registry) History(ctx context.Context, sessionID id.SessionID, step models.Step) ([]Assignment, error) {
	history, err := r.store.History(ctx, sessionID, step)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "assignment store unavailable")
	}
	return history, nil
}

// Decision is the answer to a pre-flight CanProceed check. Reason is
// user-facing so the UI can explain a refusal.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// CanProceed decides whether the actor may work the step right now.
// stepCompleted and lockHolder are facts owned by the state machine and
// lock manager; the caller supplies them so this check stays read-only.
//
// With a current assignment, only the assignee may proceed. Without one,
// the static per-step role allow-list applies, which is what lets ad-hoc
// collaboration happen when nobody bothered to assign the step.
func (r *Registry) CanProceed(ctx context.Context, sessionID id.SessionID, step models.Step, actor id.UserID, role id.Role, stepCompleted bool, lockHolder *id.UserID) (Decision, error) {
	if stepCompleted {
		return Decision{Allowed: false, Reason: "step is already completed"}, nil
	}
	if lockHolder != nil && *lockHolder != actor {
		return Decision{Allowed: false, Reason: "step is being edited by " + lockHolder.String()}, nil
	}

	current, assigned, err := r.Latest(ctx, sessionID, step)
	if err != nil {
		return Decision{}, err
	}
	if assigned {
		if current.AssignedTo == actor {
			return Decision{Allowed: true, Reason: "assigned to you"}, nil
		}
		return Decision{Allowed: false, Reason: "step is assigned to " + current.AssignedTo.String()}, nil
	}

	if step.RoleAllowed(role) {
		return Decision{Allowed: true, Reason: "role " + string(role) + " may work this step"}, nil
	}
	return Decision{Allowed: false, Reason: "step requires a different role"}, nil
}
