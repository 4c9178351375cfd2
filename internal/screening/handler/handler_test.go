package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"screenflow/internal/approval"
	"screenflow/internal/assignment"
	"screenflow/internal/audit"
	"screenflow/internal/lock"
	"screenflow/internal/screening/handler"
	"screenflow/internal/screening/models"
	"screenflow/internal/screening/service"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
)

// stubService lets each test script exactly one coordinator behavior.
type stubService struct {
	createSession     func(ctx context.Context, patientID id.PatientID, screeningType string) (*service.SessionSnapshot, error)
	getSession        func(ctx context.Context, sessionID id.SessionID) (*service.SessionSnapshot, error)
	leaveSession      func(ctx context.Context, sessionID id.SessionID) error
	listSessions      func(ctx context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error)
	updateStep        func(ctx context.Context, sessionID id.SessionID, step models.Step, patch map[string]any, complete bool) (*models.ScreeningSession, error)
	assignStep        func(ctx context.Context, sessionID id.SessionID, step models.Step, assignee id.UserID, assigneeRole id.Role, priority assignment.Priority) (*models.ScreeningSession, error)
	canProceed        func(ctx context.Context, sessionID id.SessionID, step models.Step) (assignment.Decision, error)
	acquireStepLock   func(ctx context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error)
	releaseStepLock   func(ctx context.Context, sessionID id.SessionID, step models.Step) error
	requestApproval   func(ctx context.Context, sessionID id.SessionID, approvalType, notes string, requiresSecond bool) (*approval.Request, error)
	resolveApproval   func(ctx context.Context, sessionID id.SessionID, approved bool, notes string) (*approval.Request, error)
	getSessionHistory func(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error)
}

func (s *stubService) CreateSession(ctx context.Context, patientID id.PatientID, screeningType string) (*service.SessionSnapshot, error) {
	return s.createSession(ctx, patientID, screeningType)
}

func (s *stubService) GetSession(ctx context.Context, sessionID id.SessionID) (*service.SessionSnapshot, error) {
	return s.getSession(ctx, sessionID)
}

func (s *stubService) LeaveSession(ctx context.Context, sessionID id.SessionID) error {
	return s.leaveSession(ctx, sessionID)
}

func (s *stubService) ListSessionsByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error) {
	return s.listSessions(ctx, patientID)
}

func (s *stubService) UpdateStep(ctx context.Context, sessionID id.SessionID, step models.Step, patch map[string]any, complete bool) (*models.ScreeningSession, error) {
	return s.updateStep(ctx, sessionID, step, patch, complete)
}

func (s *stubService) AssignStep(ctx context.Context, sessionID id.SessionID, step models.Step, assignee id.UserID, assigneeRole id.Role, priority assignment.Priority) (*models.ScreeningSession, error) {
	return s.assignStep(ctx, sessionID, step, assignee, assigneeRole, priority)
}

func (s *stubService) CanProceed(ctx context.Context, sessionID id.SessionID, step models.Step) (assignment.Decision, error) {
	return s.canProceed(ctx, sessionID, step)
}

func (s *stubService) AcquireStepLock(ctx context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error) {
	return s.acquireStepLock(ctx, sessionID, step)
}

func (s *stubService) ReleaseStepLock(ctx context.Context, sessionID id.SessionID, step models.Step) error {
	return s.releaseStepLock(ctx, sessionID, step)
}

func (s *stubService) RequestApproval(ctx context.Context, sessionID id.SessionID, approvalType, notes string, requiresSecond bool) (*approval.Request, error) {
	return s.requestApproval(ctx, sessionID, approvalType, notes, requiresSecond)
}

func (s *stubService) ResolveApproval(ctx context.Context, sessionID id.SessionID, approved bool, notes string) (*approval.Request, error) {
	return s.resolveApproval(ctx, sessionID, approved, notes)
}

func (s *stubService) GetSessionHistory(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error) {
	return s.getSessionHistory(ctx, sessionID, skip, limit)
}

type HandlerSuite struct {
	suite.Suite
	stub    *stubService
	router  chi.Router
	session *models.ScreeningSession
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.stub = &stubService{}
	s.router = chi.NewRouter()
	handler.New(s.stub, nil).Register(s.router)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sess, err := models.NewSession(id.NewSessionID(), "MRN-2044", "general", id.NewUserID(), now)
	s.Require().NoError(err)
	s.session = sess
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, into any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(into))
}

func (s *HandlerSuite) TestCreateSession() {
	s.Run("created", func() {
		s.stub.createSession = func(_ context.Context, patientID id.PatientID, screeningType string) (*service.SessionSnapshot, error) {
			s.Equal(id.PatientID("MRN-2044"), patientID)
			s.Equal("general", screeningType)
			return &service.SessionSnapshot{Session: s.session, PatientName: "Jordan Reyes"}, nil
		}
		rec := s.do(http.MethodPost, "/sessions", map[string]any{
			"patient_id":     "MRN-2044",
			"screening_type": "general",
		})
		s.Equal(http.StatusCreated, rec.Code)

		var got service.SessionSnapshot
		s.decode(rec, &got)
		s.Equal("Jordan Reyes", got.PatientName)
		s.Equal(s.session.SessionID, got.Session.SessionID)
	})

	s.Run("missing patient_id is a 400", func() {
		rec := s.do(http.MethodPost, "/sessions", map[string]any{"screening_type": "general"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed body is a 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown patient maps to 404", func() {
		s.stub.createSession = func(context.Context, id.PatientID, string) (*service.SessionSnapshot, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		rec := s.do(http.MethodPost, "/sessions", map[string]any{
			"patient_id":     "MRN-0000",
			"screening_type": "general",
		})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestGetSession() {
	s.stub.getSession = func(_ context.Context, sessionID id.SessionID) (*service.SessionSnapshot, error) {
		s.Equal(s.session.SessionID, sessionID)
		return &service.SessionSnapshot{Session: s.session}, nil
	}

	s.Run("found", func() {
		rec := s.do(http.MethodGet, "/sessions/"+s.session.SessionID.String(), nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("bad uuid is a 400", func() {
		rec := s.do(http.MethodGet, "/sessions/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestUpdateStep() {
	base := "/sessions/" + s.session.SessionID.String() + "/steps/vitals/"

	s.Run("ok", func() {
		s.stub.updateStep = func(_ context.Context, sessionID id.SessionID, step models.Step, patch map[string]any, complete bool) (*models.ScreeningSession, error) {
			s.Equal(models.StepVitals, step)
			s.Equal("120/80", patch["bp"])
			s.True(complete)
			return s.session, nil
		}
		rec := s.do(http.MethodPost, base, map[string]any{
			"data":     map[string]any{"bp": "120/80"},
			"complete": true,
		})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("empty patch without complete is a 400", func() {
		rec := s.do(http.MethodPost, base, map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown step is a 400", func() {
		rec := s.do(http.MethodPost, "/sessions/"+s.session.SessionID.String()+"/steps/triage/", map[string]any{
			"complete": true,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("held lock maps to 423", func() {
		s.stub.updateStep = func(context.Context, id.SessionID, models.Step, map[string]any, bool) (*models.ScreeningSession, error) {
			return nil, dErrors.Wrap(
				&models.StepLockedError{Step: models.StepVitals, Holder: id.NewUserID()},
				dErrors.CodeLocked, "step is locked",
			)
		}
		rec := s.do(http.MethodPost, base, map[string]any{"complete": true})
		s.Equal(http.StatusLocked, rec.Code)

		var body map[string]string
		s.decode(rec, &body)
		s.Equal(string(dErrors.CodeLocked), body["error"])
	})

	s.Run("already completed maps to 409", func() {
		s.stub.updateStep = func(context.Context, id.SessionID, models.Step, map[string]any, bool) (*models.ScreeningSession, error) {
			return nil, dErrors.Wrap(models.ErrAlreadyCompleted, dErrors.CodeConflict, "step already completed")
		}
		rec := s.do(http.MethodPost, base, map[string]any{"complete": true})
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestAssignStep() {
	assignee := id.NewUserID()
	path := "/sessions/" + s.session.SessionID.String() + "/steps/assessment/assign"

	s.Run("ok", func() {
		s.stub.assignStep = func(_ context.Context, _ id.SessionID, step models.Step, got id.UserID, role id.Role, priority assignment.Priority) (*models.ScreeningSession, error) {
			s.Equal(models.StepAssessment, step)
			s.Equal(assignee, got)
			s.Equal(id.RoleNurse, role)
			s.Equal(assignment.PriorityHigh, priority)
			return s.session, nil
		}
		rec := s.do(http.MethodPost, path, map[string]any{
			"assigned_to":   assignee.String(),
			"assignee_role": "nurse",
			"priority":      "high",
		})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("missing assignee is a 400", func() {
		rec := s.do(http.MethodPost, path, map[string]any{"assignee_role": "nurse"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestCanProceed() {
	s.stub.canProceed = func(_ context.Context, _ id.SessionID, step models.Step) (assignment.Decision, error) {
		return assignment.Decision{Allowed: false, Reason: "step is assigned to someone else"}, nil
	}
	rec := s.do(http.MethodGet, "/sessions/"+s.session.SessionID.String()+"/steps/diagnosis/can-proceed", nil)
	s.Equal(http.StatusOK, rec.Code)

	var decision assignment.Decision
	s.decode(rec, &decision)
	s.False(decision.Allowed)
	s.NotEmpty(decision.Reason)
}

func (s *HandlerSuite) TestLockRoutes() {
	holder := id.NewUserID()
	path := "/sessions/" + s.session.SessionID.String() + "/steps/vitals/lock"

	s.Run("acquire returns the lease", func() {
		expires := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
		s.stub.acquireStepLock = func(_ context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error) {
			return lock.StepLock{
				SessionID: sessionID,
				Step:      step,
				LockedBy:  holder,
				ExpiresAt: expires,
			}, nil
		}
		rec := s.do(http.MethodPost, path, nil)
		s.Equal(http.StatusOK, rec.Code)

		var body handler.LockResponse
		s.decode(rec, &body)
		s.Equal(holder, body.LockedBy)
		s.True(expires.Equal(body.ExpiresAt))
	})

	s.Run("contended acquire maps to 423", func() {
		s.stub.acquireStepLock = func(context.Context, id.SessionID, models.Step) (lock.StepLock, error) {
			return lock.StepLock{}, dErrors.Wrap(
				&models.AlreadyLockedError{Step: models.StepVitals, Holder: holder},
				dErrors.CodeLocked, "step is already locked",
			)
		}
		rec := s.do(http.MethodPost, path, nil)
		s.Equal(http.StatusLocked, rec.Code)
	})

	s.Run("release is a 204", func() {
		s.stub.releaseStepLock = func(context.Context, id.SessionID, models.Step) error { return nil }
		rec := s.do(http.MethodDelete, path, nil)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("non-holder release maps to 403", func() {
		s.stub.releaseStepLock = func(context.Context, id.SessionID, models.Step) error {
			return dErrors.New(dErrors.CodeForbidden, "lock is held by someone else")
		}
		rec := s.do(http.MethodDelete, path, nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})
}

func (s *HandlerSuite) TestApprovalRoutes() {
	base := "/sessions/" + s.session.SessionID.String() + "/approvals"

	s.Run("request returns 201", func() {
		s.stub.requestApproval = func(_ context.Context, sessionID id.SessionID, approvalType, notes string, requiresSecond bool) (*approval.Request, error) {
			s.Equal("final_signoff", approvalType)
			s.True(requiresSecond)
			req, err := approval.NewRequest(sessionID, id.NewUserID(), approvalType, notes, requiresSecond, time.Now().UTC())
			s.Require().NoError(err)
			return req, nil
		}
		rec := s.do(http.MethodPost, base, map[string]any{
			"approval_type":            "final_signoff",
			"requires_second_approval": true,
		})
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("missing approval_type is a 400", func() {
		rec := s.do(http.MethodPost, base, map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("duplicate pending request maps to 409", func() {
		s.stub.requestApproval = func(context.Context, id.SessionID, string, string, bool) (*approval.Request, error) {
			return nil, dErrors.New(dErrors.CodeConflict, "a pending approval request already exists")
		}
		rec := s.do(http.MethodPost, base, map[string]any{"approval_type": "final_signoff"})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("resolve forwards the verdict", func() {
		s.stub.resolveApproval = func(_ context.Context, sessionID id.SessionID, approved bool, notes string) (*approval.Request, error) {
			s.False(approved)
			s.Equal("needs another pass", notes)
			req, err := approval.NewRequest(sessionID, id.NewUserID(), "final_signoff", "", false, time.Now().UTC())
			s.Require().NoError(err)
			return req, nil
		}
		rec := s.do(http.MethodPost, base+"/resolve", map[string]any{
			"approved": false,
			"notes":    "needs another pass",
		})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("resolve without a verdict is a 400", func() {
		rec := s.do(http.MethodPost, base+"/resolve", map[string]any{"notes": "no decision"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unauthorized approver maps to 403", func() {
		s.stub.resolveApproval = func(context.Context, id.SessionID, bool, string) (*approval.Request, error) {
			return nil, dErrors.New(dErrors.CodeForbidden, "role cannot approve")
		}
		rec := s.do(http.MethodPost, base+"/resolve", map[string]any{"approved": true})
		s.Equal(http.StatusForbidden, rec.Code)
	})
}

func (s *HandlerSuite) TestGetHistory() {
	s.stub.getSessionHistory = func(_ context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error) {
		s.Equal(5, skip)
		s.Equal(10, limit)
		return []audit.Entry{{SessionID: sessionID, Action: audit.ActionStepCompleted}}, nil
	}
	rec := s.do(http.MethodGet, "/sessions/"+s.session.SessionID.String()+"/history?skip=5&limit=10", nil)
	s.Equal(http.StatusOK, rec.Code)

	var body handler.HistoryResponse
	s.decode(rec, &body)
	s.Equal(s.session.SessionID, body.SessionID)
	s.Len(body.Entries, 1)
	s.Equal(5, body.Skip)
	s.Equal(10, body.Limit)
}

func (s *HandlerSuite) TestListSessions() {
	s.Run("ok", func() {
		s.stub.listSessions = func(_ context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error) {
			s.Equal(id.PatientID("MRN-2044"), patientID)
			return []*models.ScreeningSession{s.session}, nil
		}
		rec := s.do(http.MethodGet, "/sessions?patient_id=MRN-2044", nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("missing patient_id is a 400", func() {
		rec := s.do(http.MethodGet, "/sessions", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestLeaveSession() {
	s.stub.leaveSession = func(_ context.Context, sessionID id.SessionID) error {
		s.Equal(s.session.SessionID, sessionID)
		return nil
	}
	rec := s.do(http.MethodPost, "/sessions/"+s.session.SessionID.String()+"/leave", nil)
	s.Equal(http.StatusNoContent, rec.Code)
}
