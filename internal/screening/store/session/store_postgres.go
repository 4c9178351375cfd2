package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

// PostgresStore keeps each session as a JSONB document keyed by
// session_id. The workflow payload is deliberately schemaless below the
// top-level columns: step data maps vary by screening type, which is
// exactly what the aggregate's open data maps are for.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const Schema = `
CREATE TABLE IF NOT EXISTS screening_sessions (
	session_id UUID PRIMARY KEY,
	patient_id TEXT NOT NULL,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS screening_sessions_patient_idx ON screening_sessions (patient_id);
`

func (s *PostgresStore) Create(ctx context.Context, sess *models.ScreeningSession) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO screening_sessions (session_id, patient_id, document, updated_at)
		VALUES ($1, $2, $3, $4)`,
		sess.SessionID.String(), string(sess.PatientID), doc, sess.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID id.SessionID) (*models.ScreeningSession, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM screening_sessions WHERE session_id = $1`,
		sessionID.String(),
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	var sess models.ScreeningSession
	if err := json.Unmarshal(doc, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session document: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) Save(ctx context.Context, sess *models.ScreeningSession) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE screening_sessions
		SET document = $2, updated_at = $3
		WHERE session_id = $1`,
		sess.SessionID.String(), doc, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document FROM screening_sessions WHERE patient_id = $1 ORDER BY updated_at DESC`,
		string(patientID),
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions by patient: %w", err)
	}
	defer rows.Close()

	var out []*models.ScreeningSession
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan session document: %w", err)
		}
		var sess models.ScreeningSession
		if err := json.Unmarshal(doc, &sess); err != nil {
			return nil, fmt.Errorf("unmarshal session document: %w", err)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}
