package service

import (
	"context"

	"screenflow/internal/assignment"
	"screenflow/internal/audit"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/requestcontext"
)

// AssignStep appends an assignment record for the step. The latest
// assignment becomes authoritative for permission checks; reassignment
// just appends.
func (s *Service) AssignStep(ctx context.Context, sessionID id.SessionID, step models.Step, assignee id.UserID, assigneeRole id.Role, priority assignment.Priority) (*models.ScreeningSession, error) {
	ctx, span := s.tracer.Start(ctx, "screening.AssignStep")
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
	st, ok := sess.StepState(step)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "step %s not part of session", step)
	}

	if priority == "" {
		priority = assignment.PriorityNormal
	}
	record := assignment.Assignment{
		SessionID:    sessionID,
		Step:         step,
		AssignedBy:   actor,
		AssignedTo:   assignee,
		AssigneeRole: assigneeRole,
		Priority:     priority,
		AssignedAt:   now,
	}
	if err := s.assignments.Assign(ctx, record); err != nil {
		return nil, err
	}

	to := assignee
	st.AssignedTo = &to
	sess.UpdatedAt = now
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Step:      string(step),
		Action:    audit.ActionStepAssigned,
		Actor:     actor,
		Timestamp: now,
		NewData: map[string]any{
			"assigned_to":   assignee.String(),
			"assignee_role": string(record.AssigneeRole),
			"priority":      string(record.Priority),
		},
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateActivityLogged,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "step assigned",
		"session_id", sessionID,
		"step", step,
		"assigned_to", assignee,
		"assigned_by", actor,
	)
	return sess, nil
}

// CanProceed is the pre-flight permission check callers run before
// attempting UpdateStep. Read-only; mutates nothing.
func (s *Service) CanProceed(ctx context.Context, sessionID id.SessionID, step models.Step) (assignment.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "screening.CanProceed")
	defer span.End()

	actor := requestcontext.ActorID(ctx)
	role := requestcontext.Role(ctx)

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return assignment.Decision{}, err
	}
	st, ok := sess.StepState(step)
	if !ok {
		return assignment.Decision{}, dErrors.Newf(dErrors.CodeNotFound, "step %s not part of session", step)
	}

	var holder *id.UserID
	if current, held, err := s.locks.Holder(ctx, sessionID, step); err != nil {
		return assignment.Decision{}, err
	} else if held {
		h := current.LockedBy
		holder = &h
	}

	return s.assignments.CanProceed(ctx, sessionID, step, actor, role, st.Status == models.StepCompleted, holder)
}
