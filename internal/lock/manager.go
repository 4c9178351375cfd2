package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/requestcontext"
)

// Store persists leases. Implementations must make Acquire atomic: check
// for a live lock and set the new one in a single step.
type Store interface {
	// Acquire sets the lock if no live lock exists at `now`. On conflict
	// it returns the current holder's lock wrapped in sentinel.ErrConflict.
	Acquire(ctx context.Context, lease StepLock, now time.Time) (StepLock, error)
	// Get returns the stored lock, live or not. sentinel.ErrNotFound when
	// absent.
	Get(ctx context.Context, sessionID id.SessionID, step models.Step) (StepLock, error)
	// Delete removes the lock unconditionally.
	Delete(ctx context.Context, sessionID id.SessionID, step models.Step) error
}

// Manager is the lock manager component. It owns StepLock state; the
// session state machine consults it read-only as a precondition.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	m := &Manager{store: store, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Acquire grants a lease to the actor if no live lock exists. The failure
// carries the holder's identity so the UI can show "being edited by X".
// Re-acquiring one's own live lock refreshes the expiry.
func (m *Manager) Acquire(ctx context.Context, sessionID id.SessionID, step models.Step, actor id.UserID) (StepLock, error) {
	now := requestcontext.Now(ctx)
	lease := StepLock{
		SessionID: sessionID,
		Step:      step,
		LockedBy:  actor,
		LockedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	granted, err := m.store.Acquire(ctx, lease, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if granted.LockedBy == actor {
				// refresh own lease
				return m.refresh(ctx, lease)
			}
			lockedErr := &models.AlreadyLockedError{Step: step, Holder: granted.LockedBy}
			return StepLock{}, dErrors.Wrap(lockedErr, dErrors.CodeLocked, lockedErr.Error())
		}
		return StepLock{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock store unavailable")
	}
	return granted, nil
}

func (m *Manager) refresh(ctx context.Context, lease StepLock) (StepLock, error) {
	if err := m.store.Delete(ctx, lease.SessionID, lease.Step); err != nil {
		return StepLock{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock store unavailable")
	}
	granted, err := m.store.Acquire(ctx, lease, lease.LockedAt)
	if err != nil {
		return StepLock{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock refresh failed")
	}
	return granted, nil
}

// live fetches the stored lock and reports a stale lease as
// sentinel.ErrExpired, reaping it on the way out.
func (m *Manager) live(ctx context.Context, sessionID id.SessionID, step models.Step, now time.Time) (StepLock, error) {
	current, err := m.store.Get(ctx, sessionID, step)
	if err != nil {
		return StepLock{}, err
	}
	if !current.Live(now) {
		_ = m.store.Delete(ctx, sessionID, step)
		return StepLock{}, sentinel.ErrExpired
	}
	return current, nil
}

// Release removes the actor's lease. Releasing a lock that already expired
// is a silent no-op; releasing someone else's live lock fails.
func (m *Manager) Release(ctx context.Context, sessionID id.SessionID, step models.Step, actor id.UserID) error {
	now := requestcontext.Now(ctx)
	current, err := m.live(ctx, sessionID, step, now)
	if err != nil {
		// absent and expired leases are both logically unheld
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "lock store unavailable")
	}
	if current.LockedBy != actor {
		holderErr := &models.NotLockHolderError{Step: step, Holder: current.LockedBy}
		return dErrors.Wrap(holderErr, dErrors.CodeForbidden, holderErr.Error())
	}
	if err := m.store.Delete(ctx, sessionID, step); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "lock release failed")
	}
	return nil
}

// Holder returns the live lock for the step, if any. Expired locks are
// treated as absent and reaped.
func (m *Manager) Holder(ctx context.Context, sessionID id.SessionID, step models.Step) (StepLock, bool, error) {
	now := requestcontext.Now(ctx)
	current, err := m.live(ctx, sessionID, step, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return StepLock{}, false, nil
		}
		return StepLock{}, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock store unavailable")
	}
	return current, true, nil
}

// CheckHeldBy verifies the step is either unlocked or locked by the actor.
// Used by the state machine as an UpdateStep precondition.
func (m *Manager) CheckHeldBy(ctx context.Context, sessionID id.SessionID, step models.Step, actor id.UserID) error {
	current, held, err := m.Holder(ctx, sessionID, step)
	if err != nil {
		return err
	}
	if held && current.LockedBy != actor {
		lockedErr := &models.StepLockedError{Step: step, Holder: current.LockedBy}
		return dErrors.Wrap(lockedErr, dErrors.CodeLocked, lockedErr.Error())
	}
	return nil
}
