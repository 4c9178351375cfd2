// Package service is the session state machine: the single writer for the
// ScreeningSession aggregate. Every mutating operation runs under a
// per-session mutex, validates against the lock manager and assignment
// registry, mutates the aggregate, appends to the audit log, and publishes
// one broadcast event before returning. Operations on different sessions
// never contend.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"screenflow/internal/approval"
	"screenflow/internal/assignment"
	"screenflow/internal/audit"
	"screenflow/internal/broadcast"
	"screenflow/internal/directory"
	"screenflow/internal/lock"
	"screenflow/internal/notify"
	"screenflow/internal/screening/metrics"
	"screenflow/internal/screening/models"
	"screenflow/internal/screening/store/session"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/requestcontext"
)

// Notifier hands approval events to the reminder pipeline. Delivery is
// best effort: enqueueing never blocks and never fails the mutation.
type Notifier interface {
	Enqueue(event notify.Event)
}

// Service coordinates multi-user work on screening sessions.
type Service struct {
	sessions    session.Store
	locks       *lock.Manager
	assignments *assignment.Registry
	approvals   approval.Store
	auditLog    *audit.Log
	broker      broadcast.Broker
	patients    directory.PatientDirectory

	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	// one mutex per session id, the per-session serialization point
	sessionMu sync.Map
}

// Option configures a Service.
type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New constructs the coordinator. All collaborators are required except
// the optional notifier, metrics, and logger.
func New(
	sessions session.Store,
	locks *lock.Manager,
	assignments *assignment.Registry,
	approvals approval.Store,
	auditLog *audit.Log,
	broker broadcast.Broker,
	patients directory.PatientDirectory,
	opts ...Option,
) (*Service, error) {
	switch {
	case sessions == nil:
		return nil, errors.New("session store is required")
	case locks == nil:
		return nil, errors.New("lock manager is required")
	case assignments == nil:
		return nil, errors.New("assignment registry is required")
	case approvals == nil:
		return nil, errors.New("approval store is required")
	case auditLog == nil:
		return nil, errors.New("audit log is required")
	case broker == nil:
		return nil, errors.New("broadcast broker is required")
	case patients == nil:
		return nil, errors.New("patient directory is required")
	}
	s := &Service{
		sessions:    sessions,
		locks:       locks,
		assignments: assignments,
		approvals:   approvals,
		auditLog:    auditLog,
		broker:      broker,
		patients:    patients,
		logger:      slog.Default(),
		tracer:      otel.Tracer("screenflow/screening"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SessionSnapshot is a read model: the aggregate plus the display name
// resolved from the patient record store.
type SessionSnapshot struct {
	Session     *models.ScreeningSession `json:"session"`
	PatientName string                   `json:"patient_name,omitempty"`
}

// mutexFor returns the serialization mutex for one session. Mutexes are
// created on demand and never removed; a session id is 16 bytes and the
// set of active sessions is small.
func (s *Service) mutexFor(sessionID id.SessionID) *sync.Mutex {
	mu, _ := s.sessionMu.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// load fetches the aggregate, translating store sentinels to domain codes.
func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.ScreeningSession, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "session %s not found", sessionID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	return sess, nil
}

// record appends the audit entry and publishes the broadcast update, in
// that order, inside the caller's critical section so log order equals
// broadcast order.
func (s *Service) record(ctx context.Context, entry audit.Entry, update models.StateUpdate) error {
	entry.Device = requestcontext.Device(ctx)
	if _, err := s.auditLog.Append(ctx, entry); err != nil {
		return err
	}
	start := time.Now()
	if err := s.broker.Publish(ctx, update); err != nil {
		// the mutation and its audit entry are committed; a dead broker
		// must not unwind them
		s.logger.ErrorContext(ctx, "broadcast publish failed",
			"session_id", update.SessionID,
			"update_type", update.UpdateType,
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.ObserveBroadcast(start)
	}
	return nil
}

// CreateSession starts a new screening episode: validates the patient,
// builds the fixed step sequence, and starts the first step.
func (s *Service) CreateSession(ctx context.Context, patientID id.PatientID, screeningType string) (*SessionSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "screening.CreateSession")
	defer span.End()

	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	patientName, err := s.patients.DisplayName(ctx, patientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "patient %s not found", patientID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "patient directory unavailable")
	}

	sess, err := models.NewSession(id.NewSessionID(), patientID, screeningType, actor, now)
	if err != nil {
		return nil, err
	}
	// a freshly built session is pending; creating it starts the episode
	status, err := transitionStatus(sess.OverallStatus, eventStart)
	if err != nil {
		return nil, err
	}
	sess.OverallStatus = status

	mu := s.mutexFor(sess.SessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "session id collision")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}

	entry := audit.Entry{
		SessionID: sess.SessionID,
		Action:    audit.ActionSessionCreated,
		Actor:     actor,
		Timestamp: now,
		NewData: map[string]any{
			"patient_id":     string(patientID),
			"screening_type": screeningType,
		},
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sess.SessionID,
		UpdateType: models.UpdateSessionCreated,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "session created",
		"session_id", sess.SessionID,
		"patient_id", patientID,
		"screening_type", screeningType,
		"actor", actor,
	)
	return &SessionSnapshot{Session: sess, PatientName: patientName}, nil
}

// GetSession returns a snapshot and joins the caller. Joining is itself a
// trackable, audited event: the actor lands in active_users and the
// append-only all_participants set, and subscribers see user_joined.
func (s *Service) GetSession(ctx context.Context, sessionID id.SessionID) (*SessionSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "screening.GetSession")
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

	sess.Join(actor, now)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Action:    audit.ActionSessionJoined,
		Actor:     actor,
		Timestamp: now,
	}
	if err := s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateUserJoined,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	patientName, err := s.patients.DisplayName(ctx, sess.PatientID)
	if err != nil {
		// enrichment only; a flaky directory must not hide the session
		s.logger.WarnContext(ctx, "patient lookup failed",
			"patient_id", sess.PatientID, "error", err)
		patientName = ""
	}
	return &SessionSnapshot{Session: sess, PatientName: patientName}, nil
}

// LeaveSession drops the caller from active_users. Membership is soft;
// all_participants keeps the record.
func (s *Service) LeaveSession(ctx context.Context, sessionID id.SessionID) error {
	ctx, span := s.tracer.Start(ctx, "screening.LeaveSession")
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

	sess.Leave(actor, now)
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	entry := audit.Entry{
		SessionID: sessionID,
		Action:    audit.ActionSessionLeft,
		Actor:     actor,
		Timestamp: now,
	}
	return s.record(ctx, entry, models.StateUpdate{
		SessionID:  sessionID,
		UpdateType: models.UpdateUserLeft,
		Session:    sess.Clone(),
		Actor:      actor,
		Timestamp:  now,
	})
}

// ListSessionsByPatient returns every session for one patient.
func (s *Service) ListSessionsByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error) {
	sessions, err := s.sessions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	return sessions, nil
}

// GetSessionHistory returns the session's audit entries newest-first.
func (s *Service) GetSessionHistory(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "screening.GetSessionHistory")
	defer span.End()

	if _, err := s.load(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.auditLog.History(ctx, sessionID, skip, limit)
}

// VerifyChain walks the global audit chain from entry zero.
func (s *Service) VerifyChain(ctx context.Context) (audit.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "screening.VerifyChain")
	defer span.End()
	return s.auditLog.Verify(ctx)
}

func (s *Service) save(ctx context.Context, sess *models.ScreeningSession) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "session %s not found", sess.SessionID)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	return nil
}
