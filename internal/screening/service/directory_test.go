package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	approvalmemory "screenflow/internal/approval/store/memory"
	"screenflow/internal/assignment"
	assignmentmemory "screenflow/internal/assignment/store/memory"
	"screenflow/internal/audit"
	auditmemory "screenflow/internal/audit/store/memory"
	"screenflow/internal/broadcast"
	"screenflow/internal/lock"
	lockmemory "screenflow/internal/lock/store/memory"
	"screenflow/internal/screening/service"
	"screenflow/internal/screening/store/session"
	mockdirectory "screenflow/mocks/directory"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/testutil"
)

func newServiceWithDirectory(t *testing.T, dir *mockdirectory.MockPatientDirectory) *service.Service {
	t.Helper()

	auditLog, err := audit.NewLog(auditmemory.NewInMemoryStore())
	require.NoError(t, err)
	locks, err := lock.NewManager(lockmemory.NewInMemoryLockStore())
	require.NoError(t, err)
	registry, err := assignment.NewRegistry(assignmentmemory.NewInMemoryAssignmentStore())
	require.NoError(t, err)

	svc, err := service.New(
		session.NewInMemoryStore(),
		locks,
		registry,
		approvalmemory.NewInMemoryApprovalStore(),
		auditLog,
		broadcast.NewMemoryBroker(),
		dir,
	)
	require.NoError(t, err)
	return svc
}

func TestCreateSessionDirectoryFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := testutil.Ctx(id.NewUserID(), id.RoleNurse, now)

	t.Run("unknown patient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dir := mockdirectory.NewMockPatientDirectory(ctrl)
		dir.EXPECT().
			DisplayName(gomock.Any(), id.PatientID("MRN-0000")).
			Return("", sentinel.ErrNotFound)

		svc := newServiceWithDirectory(t, dir)
		_, err := svc.CreateSession(ctx, "MRN-0000", "general")
		require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("directory outage surfaces as unavailable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dir := mockdirectory.NewMockPatientDirectory(ctrl)
		dir.EXPECT().
			DisplayName(gomock.Any(), gomock.Any()).
			Return("", errors.New("upstream timeout"))

		svc := newServiceWithDirectory(t, dir)
		_, err := svc.CreateSession(ctx, "MRN-2044", "general")
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
