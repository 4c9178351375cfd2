package approval

import (
	"context"

	id "screenflow/pkg/domain"
)

// Store persists approval requests.
type Store interface {
	// CreatePending stores a new pending request. Returns
	// sentinel.ErrConflict if the session already has a pending request.
	CreatePending(ctx context.Context, req *Request) error
	// GetPending returns the session's pending request, or
	// sentinel.ErrNotFound when none exists.
	GetPending(ctx context.Context, sessionID id.SessionID) (*Request, error)
	// Save persists a resolution. The request keeps its history: terminal
	// requests remain retrievable via History.
	Save(ctx context.Context, req *Request) error
	// History lists all requests for a session, newest first.
	History(ctx context.Context, sessionID id.SessionID) ([]*Request, error)
}
