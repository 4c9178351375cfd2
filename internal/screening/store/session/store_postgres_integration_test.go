//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"screenflow/internal/screening/models"
	"screenflow/internal/screening/store/session"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *session.PostgresStore
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(s.T())

	pool, err := pgxpool.New(ctx, pg.DSN)
	s.Require().NoError(err)
	s.pool = pool

	_, err = pool.Exec(ctx, session.Schema)
	s.Require().NoError(err)

	s.store = session.NewPostgres(pool)
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE screening_sessions`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newSession(patientID id.PatientID) *models.ScreeningSession {
	sess, err := models.NewSession(id.NewSessionID(), patientID, "general", id.NewUserID(), s.now)
	s.Require().NoError(err)
	return sess
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	sess := s.newSession("MRN-2044")
	st, ok := sess.StepState(models.StepRegistration)
	s.Require().True(ok)
	st.Data["insurance"] = "verified"

	s.Require().NoError(s.store.Create(ctx, sess))

	got, err := s.store.Get(ctx, sess.SessionID)
	s.Require().NoError(err)
	s.Equal(sess.SessionID, got.SessionID)
	s.Equal(sess.PatientID, got.PatientID)
	s.Equal(sess.OverallStatus, got.OverallStatus)
	s.Equal(sess.CurrentStep, got.CurrentStep)
	gotStep, ok := got.StepState(models.StepRegistration)
	s.Require().True(ok)
	s.Equal("verified", gotStep.Data["insurance"])
	s.True(sess.CreatedAt.Equal(got.CreatedAt))
}

func (s *PostgresStoreSuite) TestCreateDuplicate() {
	ctx := context.Background()
	sess := s.newSession("MRN-2044")

	s.Require().NoError(s.store.Create(ctx, sess))
	s.ErrorIs(s.store.Create(ctx, sess), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSave() {
	ctx := context.Background()
	sess := s.newSession("MRN-2044")
	s.Require().NoError(s.store.Create(ctx, sess))

	s.Run("persists mutations", func() {
		sess.Join(id.NewUserID(), s.now.Add(time.Minute))
		s.Require().NoError(s.store.Save(ctx, sess))

		got, err := s.store.Get(ctx, sess.SessionID)
		s.Require().NoError(err)
		s.Len(got.AllParticipants, 2)
	})

	s.Run("unknown session", func() {
		s.ErrorIs(s.store.Save(ctx, s.newSession("MRN-9999")), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestListByPatient() {
	ctx := context.Background()

	older := s.newSession("MRN-2044")
	s.Require().NoError(s.store.Create(ctx, older))

	newer := s.newSession("MRN-2044")
	newer.UpdatedAt = s.now.Add(time.Hour)
	s.Require().NoError(s.store.Create(ctx, newer))

	other := s.newSession("MRN-7001")
	s.Require().NoError(s.store.Create(ctx, other))

	sessions, err := s.store.ListByPatient(ctx, "MRN-2044")
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	// most recently touched first
	s.Equal(newer.SessionID, sessions[0].SessionID)
	s.Equal(older.SessionID, sessions[1].SessionID)

	none, err := s.store.ListByPatient(ctx, "MRN-0000")
	s.Require().NoError(err)
	s.Empty(none)
}
