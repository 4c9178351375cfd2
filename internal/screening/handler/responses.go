package handler

import (
	"time"

	"screenflow/internal/audit"
	"screenflow/internal/lock"
	id "screenflow/pkg/domain"
)

type LockResponse struct {
	SessionID id.SessionID `json:"session_id"`
	Step      string       `json:"step"`
	LockedBy  id.UserID    `json:"locked_by"`
	LockedAt  time.Time    `json:"locked_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func newLockResponse(l lock.StepLock) LockResponse {
	return LockResponse{
		SessionID: l.SessionID,
		Step:      string(l.Step),
		LockedBy:  l.LockedBy,
		LockedAt:  l.LockedAt,
		ExpiresAt: l.ExpiresAt,
	}
}

type HistoryResponse struct {
	SessionID id.SessionID  `json:"session_id"`
	Entries   []audit.Entry `json:"entries"`
	Skip      int           `json:"skip"`
	Limit     int           `json:"limit"`
}
