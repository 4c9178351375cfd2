package service

import (
	"fmt"

	"github.com/anggasct/fluo"

	"screenflow/internal/screening/models"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
)

// Session lifecycle events.
const (
	eventStart           = "start"
	eventRequestApproval = "request_approval"
	eventApprove         = "approve"
	eventReject          = "reject"
	eventResume          = "resume"
)

// lifecycle is the session-level state machine:
//
//	pending → in_progress → requires_approval → completed
//	                ↑                |
//	                └ requires_revision (on rejection)
//
// Completed is terminal. The definition is immutable; each transition
// check rehydrates a throwaway instance at the session's current status.
var lifecycle = fluo.NewMachine().
	State(string(models.StatusPending)).Initial().
	To(string(models.StatusInProgress)).On(eventStart).
	State(string(models.StatusInProgress)).
	To(string(models.StatusRequiresApproval)).On(eventRequestApproval).
	State(string(models.StatusRequiresApproval)).
	To(string(models.StatusCompleted)).On(eventApprove).
	To(string(models.StatusRequiresRevision)).On(eventReject).
	State(string(models.StatusRequiresRevision)).
	To(string(models.StatusInProgress)).On(eventResume).
	State(string(models.StatusCompleted)).Final().
	Build()

// transitionStatus validates and applies a lifecycle event against the
// current overall status. Illegal transitions surface as invariant
// violations rather than silent state corruption.
func transitionStatus(current models.OverallStatus, event string) (models.OverallStatus, error) {
	machine := lifecycle.CreateInstance()
	if err := machine.Start(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "lifecycle machine failed to start")
	}
	if err := machine.SetState(string(current)); err != nil {
		return "", dErrors.Newf(dErrors.CodeInvariantViolation, "unknown session status %q", current)
	}
	result := machine.HandleEvent(event, nil)
	if !result.Processed || !result.StateChanged {
		cause := fmt.Errorf("%w: session status %q does not accept %q", sentinel.ErrInvalidState, current, event)
		return "", dErrors.Wrap(cause, dErrors.CodeInvariantViolation,
			fmt.Sprintf("session status %q does not accept %q", current, event))
	}
	if result.Error != nil {
		return "", dErrors.Wrap(result.Error, dErrors.CodeInvariantViolation, "lifecycle transition failed")
	}
	return models.OverallStatus(result.CurrentState), nil
}
