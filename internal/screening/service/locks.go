package service

import (
	"context"

	"screenflow/internal/audit"
	"screenflow/internal/lock"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/requestcontext"
)

// AcquireStepLock claims the step's 30-minute lease for the caller. The
// failure carries the current holder so the UI can show who is editing.
func (s *Service) AcquireStepLock(ctx context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error) {
	ctx, span := s.tracer.Start(ctx, "screening.AcquireStepLock")
	defer span.End()

	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	mu := s.mutexFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return lock.StepLock{}, err
	}
	if _, ok := sess.StepState(step); !ok {
		return lock.StepLock{}, dErrors.Newf(dErrors.CodeNotFound, "step %s not part of session", step)
	}

	lease, err := s.locks.Acquire(ctx, sessionID, step, actor)
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeLocked) {
			s.metrics.LockContention.Inc()
		}
		return lock.StepLock{}, err
	}

	s.refreshLockMirror(ctx, sess, step)
	sess.UpdatedAt = now
	if err := s.save(ctx, sess); err != nil {
		return lock.StepLock{}, err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Step:      string(step),
		Action:    audit.ActionLockAcquired,
		Actor:     actor,
		Timestamp: now,
		NewData: map[string]any{
			"expires_at": lease.ExpiresAt,
		},
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateActivityLogged,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return lock.StepLock{}, err
	}
	return lease, nil
}

// ReleaseStepLock gives the lease back. Releasing an expired or absent
// lock is a silent no-op; releasing someone else's live lock fails.
func (s *Service) ReleaseStepLock(ctx context.Context, sessionID id.SessionID, step models.Step) error {
	ctx, span := s.tracer.Start(ctx, "screening.ReleaseStepLock")
	defer span.End()

	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	mu := s.mutexFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, ok := sess.StepState(step); !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "step %s not part of session", step)
	}

	if err := s.locks.Release(ctx, sessionID, step, actor); err != nil {
		return err
	}

	s.refreshLockMirror(ctx, sess, step)
	sess.UpdatedAt = now
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Step:      string(step),
		Action:    audit.ActionLockReleased,
		Actor:     actor,
		Timestamp: now,
	}
	return s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateActivityLogged,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	})
}
