// Package handler exposes the screening coordinator over HTTP. It is a
// thin forwarding layer: parse, call the service, translate the typed
// error. All collaboration semantics live in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"screenflow/internal/approval"
	"screenflow/internal/assignment"
	"screenflow/internal/audit"
	"screenflow/internal/lock"
	"screenflow/internal/screening/models"
	"screenflow/internal/screening/service"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/httputil"
	"screenflow/pkg/requestcontext"
)

// Service is the coordinator surface the handler forwards into.
type Service interface {
	CreateSession(ctx context.Context, patientID id.PatientID, screeningType string) (*service.SessionSnapshot, error)
	GetSession(ctx context.Context, sessionID id.SessionID) (*service.SessionSnapshot, error)
	LeaveSession(ctx context.Context, sessionID id.SessionID) error
	ListSessionsByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error)
	UpdateStep(ctx context.Context, sessionID id.SessionID, step models.Step, patch map[string]any, complete bool) (*models.ScreeningSession, error)
	AssignStep(ctx context.Context, sessionID id.SessionID, step models.Step, assignee id.UserID, assigneeRole id.Role, priority assignment.Priority) (*models.ScreeningSession, error)
	CanProceed(ctx context.Context, sessionID id.SessionID, step models.Step) (assignment.Decision, error)
	AcquireStepLock(ctx context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error)
	ReleaseStepLock(ctx context.Context, sessionID id.SessionID, step models.Step) error
	RequestApproval(ctx context.Context, sessionID id.SessionID, approvalType, notes string, requiresSecond bool) (*approval.Request, error)
	ResolveApproval(ctx context.Context, sessionID id.SessionID, approved bool, notes string) (*approval.Request, error)
	GetSessionHistory(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error)
}

type Handler struct {
	screening Service
	logger    *slog.Logger
}

func New(screening Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{screening: screening, logger: logger}
}

// Register mounts the session routes on the router. Auth and request
// metadata middleware are applied by the transport layer.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Post("/leave", h.handleLeaveSession)
		r.Get("/history", h.handleGetHistory)
		r.Post("/approvals", h.handleRequestApproval)
		r.Post("/approvals/resolve", h.handleResolveApproval)
		r.Route("/steps/{step}", func(r chi.Router) {
			r.Post("/", h.handleUpdateStep)
			r.Post("/assign", h.handleAssignStep)
			r.Get("/can-proceed", h.handleCanProceed)
			r.Post("/lock", h.handleAcquireLock)
			r.Delete("/lock", h.handleReleaseLock)
		})
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	patientID, err := id.ParsePatientID(req.PatientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snapshot, err := h.screening.CreateSession(ctx, patientID, req.ScreeningType)
	if err != nil {
		h.writeError(ctx, w, "create session failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snapshot)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snapshot, err := h.screening.GetSession(ctx, sessionID)
	if err != nil {
		h.writeError(ctx, w, "get session failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, err := id.ParsePatientID(r.URL.Query().Get("patient_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessions, err := h.screening.ListSessionsByPatient(ctx, patientID)
	if err != nil {
		h.writeError(ctx, w, "list sessions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.screening.LeaveSession(ctx, sessionID); err != nil {
		h.writeError(ctx, w, "leave session failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, step, ok := h.sessionStep(w, r)
	if !ok {
		return
	}
	req, reqOK := httputil.DecodeAndPrepare[UpdateStepRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !reqOK {
		return
	}
	sess, err := h.screening.UpdateStep(ctx, sessionID, step, req.Data, req.Complete)
	if err != nil {
		h.writeError(ctx, w, "update step failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleAssignStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, step, ok := h.sessionStep(w, r)
	if !ok {
		return
	}
	req, reqOK := httputil.DecodeAndPrepare[AssignStepRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !reqOK {
		return
	}
	assignee, err := id.ParseUserID(req.AssignedTo)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sess, err := h.screening.AssignStep(ctx, sessionID, step, assignee, id.Role(req.AssigneeRole), assignment.Priority(req.Priority))
	if err != nil {
		h.writeError(ctx, w, "assign step failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleCanProceed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, step, ok := h.sessionStep(w, r)
	if !ok {
		return
	}
	decision, err := h.screening.CanProceed(ctx, sessionID, step)
	if err != nil {
		h.writeError(ctx, w, "can-proceed check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

func (h *Handler) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, step, ok := h.sessionStep(w, r)
	if !ok {
		return
	}
	lease, err := h.screening.AcquireStepLock(ctx, sessionID, step)
	if err != nil {
		h.writeError(ctx, w, "acquire lock failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newLockResponse(lease))
}

func (h *Handler) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, step, ok := h.sessionStep(w, r)
	if !ok {
		return
	}
	if err := h.screening.ReleaseStepLock(ctx, sessionID, step); err != nil {
		h.writeError(ctx, w, "release lock failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, reqOK := httputil.DecodeAndPrepare[RequestApprovalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !reqOK {
		return
	}
	created, err := h.screening.RequestApproval(ctx, sessionID, req.ApprovalType, req.Notes, req.RequiresSecondApproval)
	if err != nil {
		h.writeError(ctx, w, "request approval failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, reqOK := httputil.DecodeAndPrepare[ResolveApprovalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !reqOK {
		return
	}
	resolved, err := h.screening.ResolveApproval(ctx, sessionID, *req.Approved, req.Notes)
	if err != nil {
		h.writeError(ctx, w, "resolve approval failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolved)
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)
	entries, err := h.screening.GetSessionHistory(ctx, sessionID, skip, limit)
	if err != nil {
		h.writeError(ctx, w, "get history failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		Entries:   entries,
		Skip:      skip,
		Limit:     limit,
	})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}

func (h *Handler) sessionStep(w http.ResponseWriter, r *http.Request) (id.SessionID, models.Step, bool) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return id.SessionID{}, "", false
	}
	step, err := models.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, "", false
	}
	return sessionID, step, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeUnavailable {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"actor", requestcontext.ActorID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
