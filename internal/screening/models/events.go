package models

import (
	"time"

	id "screenflow/pkg/domain"
)

// UpdateType classifies a broadcast state change.
type UpdateType string

const (
	UpdateSessionCreated    UpdateType = "session_created"
	UpdateUserJoined        UpdateType = "user_joined"
	UpdateUserLeft          UpdateType = "user_left"
	UpdateStepUpdated       UpdateType = "step_updated"
	UpdateStepCompleted     UpdateType = "step_completed"
	UpdateApprovalRequested UpdateType = "approval_requested"
	UpdateApprovalResolved  UpdateType = "approval_resolved"
	UpdateActivityLogged    UpdateType = "activity_logged"
)

// StateUpdate is the typed payload published once per accepted mutation to
// the session's broadcast topic. The snapshot is a deep copy; subscribers
// never see the live aggregate.
type StateUpdate struct {
	SessionID  id.SessionID      `json:"session_id"`
	UpdateType UpdateType        `json:"update_type"`
	Session    *ScreeningSession `json:"session_snapshot"`
	Actor      id.UserID         `json:"actor"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Topic returns the per-session pub/sub topic name.
func Topic(sessionID id.SessionID) string {
	return "session:" + sessionID.String()
}
