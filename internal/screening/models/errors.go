package models

import (
	"errors"
	"fmt"

	id "screenflow/pkg/domain"
)

// Typed concurrency errors. Services wrap these with coded domain errors;
// callers unwrap with errors.Is/errors.As to learn the holder's identity
// so the UI can show "being edited by X" instead of "request failed".

// ErrAlreadyCompleted is the idempotency guard: a step completes once.
var ErrAlreadyCompleted = errors.New("step already completed")

// SessionLockedError reports the session-wide hold.
type SessionLockedError struct {
	Reason string
}

func (e *SessionLockedError) Error() string {
	if e.Reason == "" {
		return "session is locked"
	}
	return fmt.Sprintf("session is locked: %s", e.Reason)
}

// StepLockedError reports that a step's lease is held by someone else.
type StepLockedError struct {
	Step   Step
	Holder id.UserID
}

func (e *StepLockedError) Error() string {
	return fmt.Sprintf("step %s is locked by %s", e.Step, e.Holder)
}

// AlreadyLockedError reports a failed lock acquisition, carrying the
// current holder.
type AlreadyLockedError struct {
	Step   Step
	Holder id.UserID
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("step %s is already locked by %s", e.Step, e.Holder)
}

// NotLockHolderError reports a release attempt by a non-holder.
type NotLockHolderError struct {
	Step   Step
	Holder id.UserID
}

func (e *NotLockHolderError) Error() string {
	return fmt.Sprintf("step %s lock is held by %s, not the caller", e.Step, e.Holder)
}
