// Package domain defines the typed identifiers shared across screenflow.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-assignment (a SessionID can never be passed where a UserID is
// expected). Parse functions enforce the invariant that IDs are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "screenflow/pkg/domain-errors"
)

// SessionID identifies one patient's screening episode.
type SessionID uuid.UUID

// UserID identifies a staff member (nurse, doctor, technician).
type UserID uuid.UUID

// ApprovalID identifies a single approval request.
type ApprovalID uuid.UUID

// LogID identifies a single audit log entry.
type LogID uuid.UUID

// PatientID is the opaque identifier assigned by the external clinical
// record store. It is not a UUID; we only require it to be non-empty.
type PatientID string

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ApprovalID) String() string { return uuid.UUID(id).String() }
func (id LogID) String() string      { return uuid.UUID(id).String() }
func (id PatientID) String() string  { return string(id) }

// IsNil reports whether the ID is the zero UUID.
func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ApprovalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewUserID returns a fresh random user ID. Production user IDs come from
// the identity provider; this exists for tests and tooling.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewApprovalID returns a fresh random approval request ID.
func NewApprovalID() ApprovalID { return ApprovalID(uuid.New()) }

// NewLogID returns a fresh random audit log entry ID.
func NewLogID() LogID { return LogID(uuid.New()) }

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseSessionID validates and converts a raw string into a SessionID.
func ParseSessionID(raw string) (SessionID, error) {
	parsed, err := parseUUID(raw, "session_id")
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(parsed), nil
}

// ParseUserID validates and converts a raw string into a UserID.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user_id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseApprovalID validates and converts a raw string into an ApprovalID.
func ParseApprovalID(raw string) (ApprovalID, error) {
	parsed, err := parseUUID(raw, "approval_id")
	if err != nil {
		return ApprovalID{}, err
	}
	return ApprovalID(parsed), nil
}

// ParsePatientID validates an opaque patient identifier.
func ParsePatientID(raw string) (PatientID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "patient_id is required")
	}
	return PatientID(raw), nil
}
