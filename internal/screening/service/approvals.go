package service

import (
	"context"
	"errors"

	"screenflow/internal/approval"
	"screenflow/internal/audit"
	"screenflow/internal/notify"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/requestcontext"
)

// RequestApproval creates the session's pending approval request and
// freezes editing until review. At most one pending request exists per
// session; a second request without an intervening resolution conflicts.
//
// requires_second_approval is carried through to the request but not
// enforced here; the calling policy layer decides what two-person
// sign-off means.
func (s *Service) RequestApproval(ctx context.Context, sessionID id.SessionID, approvalType, notes string, requiresSecond bool) (*approval.Request, error) {
	ctx, span := s.tracer.Start(ctx, "screening.RequestApproval")
	defer span.End()

	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	mu := s.mutexFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req, err := approval.NewRequest(sessionID, actor, approvalType, notes, requiresSecond, now)
	if err != nil {
		return nil, err
	}
	if err := s.approvals.CreatePending(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a pending approval request already exists for this session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "approval store unavailable")
	}

	// requires_approval may already be set if the last step just
	// completed; only in_progress needs the transition
	if sess.OverallStatus != models.StatusRequiresApproval {
		status, err := transitionStatus(sess.OverallStatus, eventRequestApproval)
		if err != nil {
			return nil, err
		}
		sess.OverallStatus = status
	}
	sess.LockSession("pending approval review", now)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Action:    audit.ActionApprovalRequested,
		Actor:     actor,
		Timestamp: now,
		NewData: map[string]any{
			"request_id":               req.RequestID.String(),
			"approval_type":            approvalType,
			"requires_second_approval": requiresSecond,
			"notes":                    notes,
		},
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateApprovalRequested,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Enqueue(notify.Event{
			SessionID:              sessionID,
			RequestID:              req.RequestID,
			RequestedBy:            actor,
			ApprovalType:           approvalType,
			RequiresSecondApproval: requiresSecond,
			Notes:                  notes,
			RequestedAt:            now,
		})
	}
	if s.metrics != nil {
		s.metrics.ApprovalsRequested.Inc()
	}
	s.logger.InfoContext(ctx, "approval requested",
		"session_id", sessionID,
		"request_id", req.RequestID,
		"approval_type", approvalType,
		"actor", actor,
	)
	return req, nil
}

// ResolveApproval moves the pending request to its terminal state. On
// approval the session completes and unfreezes; on rejection it drops to
// requires_revision and the most recently completed step reopens so the
// original actor can correct it.
func (s *Service) ResolveApproval(ctx context.Context, sessionID id.SessionID, approved bool, notes string) (*approval.Request, error) {
	ctx, span := s.tracer.Start(ctx, "screening.ResolveApproval")
	defer span.End()

	actor := requestcontext.ActorID(ctx)
	role := requestcontext.Role(ctx)
	now := requestcontext.Now(ctx)

	if !role.CanApprove() {
		return nil, dErrors.Newf(dErrors.CodeForbidden, "role %s may not resolve approvals", role)
	}

	mu := s.mutexFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req, err := s.approvals.GetPending(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no pending approval request for this session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "approval store unavailable")
	}

	event := eventApprove
	action := audit.ActionApprovalApproved
	if !approved {
		event = eventReject
		action = audit.ActionApprovalRejected
	}
	status, err := transitionStatus(sess.OverallStatus, event)
	if err != nil {
		return nil, err
	}

	req.Resolve(actor, approved, notes, now)
	if err := s.approvals.Save(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "approval store unavailable")
	}

	sess.OverallStatus = status
	sess.UnlockSession(now)
	if !approved {
		if st, ok := sess.LastCompletedStep(); ok {
			st.Reopen(now)
		}
		sess.AdvanceCurrentStep(now)
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Action:    action,
		Actor:     actor,
		Timestamp: now,
		NewData: map[string]any{
			"request_id": req.RequestID.String(),
			"approved":   approved,
			"notes":      notes,
		},
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateApprovalResolved,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	if !approved && s.metrics != nil {
		s.metrics.ApprovalsRejected.Inc()
	}
	s.logger.InfoContext(ctx, "approval resolved",
		"session_id", sessionID,
		"request_id", req.RequestID,
		"approved", approved,
		"approver", actor,
	)
	return req, nil
}
