package models

import (
	"time"

	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
)

// StepStatus is the per-step lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

// OverallStatus is the session-level lifecycle.
type OverallStatus string

const (
	StatusPending          OverallStatus = "pending"
	StatusInProgress       OverallStatus = "in_progress"
	StatusRequiresApproval OverallStatus = "requires_approval"
	StatusCompleted        OverallStatus = "completed"
	StatusRequiresRevision OverallStatus = "requires_revision"
)

// StepState is one step's slice of the session aggregate.
//
// Invariants:
//   - a completed step is never reopened except by an approval rejection
//   - ActualDuration = CompletedAt − StartedAt
//   - the lock mirror fields (IsLocked/LockOwner/LockExpiresAt) are
//     refreshed snapshots of the lock manager's state, not the source of
//     truth; the lock manager is consulted directly for preconditions
type StepState struct {
	Step        Step           `json:"step"`
	Status      StepStatus     `json:"status"`
	AssignedTo  *id.UserID     `json:"assigned_to,omitempty"`
	Data        map[string]any `json:"data"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CompletedBy *id.UserID     `json:"completed_by,omitempty"`

	// durations in minutes
	EstimatedDuration int      `json:"estimated_duration"`
	ActualDuration    *float64 `json:"actual_duration,omitempty"`

	IsLocked      bool       `json:"is_locked"`
	LockOwner     *id.UserID `json:"lock_owner,omitempty"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
}

// ScreeningSession is the root aggregate: one patient's pass through the
// fixed step sequence.
//
// Invariants:
//   - WorkflowSteps has exactly one entry per step of the fixed sequence
//   - CurrentStep points to the first step whose status is not completed,
//     or to the last step once all are completed
//   - AllParticipants is append-only; ActiveUsers is soft membership
//   - IsLocked freezes all step mutation regardless of step-level locks
type ScreeningSession struct {
	SessionID     id.SessionID  `json:"session_id"`
	PatientID     id.PatientID  `json:"patient_id"`
	ScreeningType string        `json:"screening_type"`
	CurrentStep   Step          `json:"current_step"`
	WorkflowSteps []StepState   `json:"workflow_steps"`
	OverallStatus OverallStatus `json:"overall_status"`

	ActiveUsers     []id.UserID `json:"active_users"`
	AllParticipants []id.UserID `json:"all_participants"`

	IsLocked   bool   `json:"is_locked"`
	LockReason string `json:"lock_reason,omitempty"`

	CreatedBy id.UserID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession builds a pending session with every step of the fixed
// sequence. The first step starts immediately; the creator is the first
// participant. The service starts the session through its lifecycle
// machine once the aggregate is built.
func NewSession(sessionID id.SessionID, patientID id.PatientID, screeningType string, createdBy id.UserID, now time.Time) (*ScreeningSession, error) {
	if patientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "patient_id is required")
	}
	if screeningType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "screening_type is required")
	}
	if createdBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "created_by is required")
	}

	steps := make([]StepState, 0, len(stepSequence))
	for i, step := range stepSequence {
		state := StepState{
			Step:              step,
			Status:            StepPending,
			Data:              map[string]any{},
			EstimatedDuration: step.EstimatedDuration(),
		}
		if i == 0 {
			state.Status = StepInProgress
			started := now
			state.StartedAt = &started
		}
		steps = append(steps, state)
	}

	return &ScreeningSession{
		SessionID:       sessionID,
		PatientID:       patientID,
		ScreeningType:   screeningType,
		CurrentStep:     stepSequence[0],
		WorkflowSteps:   steps,
		OverallStatus:   StatusPending,
		ActiveUsers:     []id.UserID{createdBy},
		AllParticipants: []id.UserID{createdBy},
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// StepState returns a pointer into the aggregate for the given step.
func (s *ScreeningSession) StepState(step Step) (*StepState, bool) {
	for i := range s.WorkflowSteps {
		if s.WorkflowSteps[i].Step == step {
			return &s.WorkflowSteps[i], true
		}
	}
	return nil, false
}

// Join records the actor in both participant sets. AllParticipants only
// ever grows; ActiveUsers is refreshed on join/leave.
func (s *ScreeningSession) Join(actor id.UserID, now time.Time) {
	s.ActiveUsers = appendUnique(s.ActiveUsers, actor)
	s.AllParticipants = appendUnique(s.AllParticipants, actor)
	s.UpdatedAt = now
}

// Leave drops the actor from ActiveUsers only. Membership is soft: a
// disconnect never unwinds history.
func (s *ScreeningSession) Leave(actor id.UserID, now time.Time) {
	for i, u := range s.ActiveUsers {
		if u == actor {
			s.ActiveUsers = append(s.ActiveUsers[:i], s.ActiveUsers[i+1:]...)
			break
		}
	}
	s.UpdatedAt = now
}

// MergeStepData applies a last-writer-wins patch at whole-key granularity.
// There is no field-level conflict resolution: two users writing the same
// key race, and the later call wins. This is a documented contract, not an
// accident.
func (st *StepState) MergeStepData(patch map[string]any) {
	if st.Data == nil {
		st.Data = map[string]any{}
	}
	for k, v := range patch {
		st.Data[k] = v
	}
}

// CanComplete checks the completion preconditions for a step.
func (st *StepState) CanComplete() error {
	if st.Status == StepCompleted {
		return ErrAlreadyCompleted
	}
	return nil
}

// ApplyCompletion stamps the completion fields and computes the actual
// duration from the recorded start.
func (st *StepState) ApplyCompletion(actor id.UserID, now time.Time) {
	st.Status = StepCompleted
	completed := now
	st.CompletedAt = &completed
	by := actor
	st.CompletedBy = &by
	if st.StartedAt != nil {
		minutes := now.Sub(*st.StartedAt).Minutes()
		st.ActualDuration = &minutes
	}
}

// Reopen returns a completed step to in_progress after an approval
// rejection so the original actor can correct it.
func (st *StepState) Reopen(now time.Time) {
	st.Status = StepInProgress
	st.CompletedAt = nil
	st.CompletedBy = nil
	st.ActualDuration = nil
	if st.StartedAt == nil {
		started := now
		st.StartedAt = &started
	}
}

// AdvanceCurrentStep moves CurrentStep to the first non-completed step,
// starting it if still pending. When every step is completed, CurrentStep
// stays on the last step and the method reports done=true.
func (s *ScreeningSession) AdvanceCurrentStep(now time.Time) (done bool) {
	for i := range s.WorkflowSteps {
		st := &s.WorkflowSteps[i]
		if st.Status != StepCompleted {
			s.CurrentStep = st.Step
			if st.Status == StepPending {
				st.Status = StepInProgress
				started := now
				st.StartedAt = &started
			}
			return false
		}
	}
	s.CurrentStep = stepSequence[len(stepSequence)-1]
	return true
}

// LastCompletedStep returns the most recently completed step state, used
// to pick the step to reopen on rejection.
func (s *ScreeningSession) LastCompletedStep() (*StepState, bool) {
	var latest *StepState
	for i := range s.WorkflowSteps {
		st := &s.WorkflowSteps[i]
		if st.Status != StepCompleted || st.CompletedAt == nil {
			continue
		}
		if latest == nil || st.CompletedAt.After(*latest.CompletedAt) {
			latest = st
		}
	}
	return latest, latest != nil
}

// LockSession applies the session-wide hold (e.g. during approval review).
func (s *ScreeningSession) LockSession(reason string, now time.Time) {
	s.IsLocked = true
	s.LockReason = reason
	s.UpdatedAt = now
}

// UnlockSession clears the session-wide hold.
func (s *ScreeningSession) UnlockSession(now time.Time) {
	s.IsLocked = false
	s.LockReason = ""
	s.UpdatedAt = now
}

// Clone returns a deep copy safe to hand to broadcast subscribers while
// the aggregate keeps mutating under the per-session serialization.
func (s *ScreeningSession) Clone() *ScreeningSession {
	out := *s
	out.WorkflowSteps = make([]StepState, len(s.WorkflowSteps))
	for i, st := range s.WorkflowSteps {
		cp := st
		cp.Data = make(map[string]any, len(st.Data))
		for k, v := range st.Data {
			cp.Data[k] = v
		}
		out.WorkflowSteps[i] = cp
	}
	out.ActiveUsers = append([]id.UserID{}, s.ActiveUsers...)
	out.AllParticipants = append([]id.UserID{}, s.AllParticipants...)
	return &out
}

func appendUnique(users []id.UserID, u id.UserID) []id.UserID {
	for _, existing := range users {
		if existing == u {
			return users
		}
	}
	return append(users, u)
}
