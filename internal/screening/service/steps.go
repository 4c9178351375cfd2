package service

import (
	"context"
	"time"

	"screenflow/internal/audit"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/requestcontext"
)

// UpdateStep merges a data patch into one step and optionally completes
// it. This is the hot collaboration path.
//
// Preconditions, in order: the session and step exist, the session-wide
// lock is not held, the step's lease is not held by someone else, and
// (when completing) the step is not already completed. The merge is
// last-writer-wins at whole-key granularity; two users writing the same
// key race and the later call wins.
//
// Completing the last step parks the session in requires_approval. The
// first mutation after a rejection moves requires_revision back to
// in_progress.
func (s *Service) UpdateStep(ctx context.Context, sessionID id.SessionID, step models.Step, patch map[string]any, complete bool) (*models.ScreeningSession, error) {
	ctx, span := s.tracer.Start(ctx, "screening.UpdateStep")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveUpdateStep(time.Now())
	}

	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	mu := s.mutexFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st, ok := sess.StepState(step)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "step %s not part of session", step)
	}

	if sess.IsLocked {
		lockedErr := &models.SessionLockedError{Reason: sess.LockReason}
		return nil, dErrors.Wrap(lockedErr, dErrors.CodeLocked, lockedErr.Error())
	}
	if err := s.locks.CheckHeldBy(ctx, sessionID, step, actor); err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeLocked) {
			s.metrics.LockContention.Inc()
		}
		return nil, err
	}
	if complete {
		if err := st.CanComplete(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
		}
	} else if st.Status == models.StepCompleted {
		return nil, dErrors.Wrap(models.ErrAlreadyCompleted, dErrors.CodeConflict, models.ErrAlreadyCompleted.Error())
	}

	previous := cloneData(st.Data)
	st.MergeStepData(patch)

	action := audit.ActionStepUpdated
	updateType := models.UpdateStepUpdated

	if sess.OverallStatus == models.StatusRequiresRevision {
		status, err := transitionStatus(sess.OverallStatus, eventResume)
		if err != nil {
			return nil, err
		}
		sess.OverallStatus = status
	}

	if complete {
		st.ApplyCompletion(actor, now)
		// completing a step retires the completer's own lease
		if err := s.locks.Release(ctx, sessionID, step, actor); err != nil {
			return nil, err
		}
		s.refreshLockMirror(ctx, sess, step)

		action = audit.ActionStepCompleted
		updateType = models.UpdateStepCompleted

		if done := sess.AdvanceCurrentStep(now); done {
			status, err := transitionStatus(sess.OverallStatus, eventRequestApproval)
			if err != nil {
				return nil, err
			}
			sess.OverallStatus = status
		}
	}

	sess.UpdatedAt = now
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		SessionID:    sessionID,
		Step:         string(step),
		Action:       action,
		Actor:        actor,
		Timestamp:    now,
		PreviousData: previous,
		NewData:      cloneData(st.Data),
		ComputedDiff: audit.Diff(previous, st.Data),
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: updateType,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	if complete {
		if s.metrics != nil {
			s.metrics.StepsCompleted.Inc()
		}
		s.logger.InfoContext(ctx, "step completed",
			"session_id", sessionID,
			"step", step,
			"actor", actor,
			"overall_status", sess.OverallStatus,
		)
	}
	return sess, nil
}

// refreshLockMirror copies the lock manager's current view onto the step
// snapshot. The mirror is display state only; preconditions always go to
// the manager.
func (s *Service) refreshLockMirror(ctx context.Context, sess *models.ScreeningSession, step models.Step) {
	st, ok := sess.StepState(step)
	if !ok {
		return
	}
	current, held, err := s.locks.Holder(ctx, sess.SessionID, step)
	if err != nil || !held {
		st.IsLocked = false
		st.LockOwner = nil
		st.LockExpiresAt = nil
		return
	}
	owner := current.LockedBy
	expires := current.ExpiresAt
	st.IsLocked = true
	st.LockOwner = &owner
	st.LockExpiresAt = &expires
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
