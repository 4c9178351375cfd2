// Package postgres persists approval requests. A partial unique index on
// (session_id) WHERE status='pending' enforces the single-pending
// invariant at the database, closing the race between concurrent
// RequestApproval calls across instances.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"screenflow/internal/approval"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const Schema = `
CREATE TABLE IF NOT EXISTS approval_requests (
	request_id                UUID PRIMARY KEY,
	session_id                UUID NOT NULL,
	requested_by              UUID NOT NULL,
	approval_type             TEXT NOT NULL,
	status                    TEXT NOT NULL,
	requires_second_approval  BOOLEAN NOT NULL DEFAULT FALSE,
	approver_id               UUID,
	notes                     TEXT NOT NULL DEFAULT '',
	resolution_notes          TEXT NOT NULL DEFAULT '',
	requested_at              TIMESTAMPTZ NOT NULL,
	resolved_at               TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS approval_requests_single_pending
	ON approval_requests (session_id) WHERE status = 'pending';
`

func (s *Store) CreatePending(ctx context.Context, req *approval.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_requests
			(request_id, session_id, requested_by, approval_type, status, requires_second_approval, notes, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(req.RequestID), uuid.UUID(req.SessionID), uuid.UUID(req.RequestedBy),
		req.ApprovalType, string(req.Status), req.RequiresSecondApproval, req.Notes, req.RequestedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert approval request: %w", err)
	}
	return nil
}

func (s *Store) GetPending(ctx context.Context, sessionID id.SessionID) (*approval.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, session_id, requested_by, approval_type, status, requires_second_approval,
		       approver_id, notes, resolution_notes, requested_at, resolved_at
		FROM approval_requests
		WHERE session_id = $1 AND status = 'pending'`,
		uuid.UUID(sessionID),
	)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

func (s *Store) Save(ctx context.Context, req *approval.Request) error {
	var approver any
	if req.ApproverID != nil {
		approver = uuid.UUID(*req.ApproverID)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $2, approver_id = $3, resolution_notes = $4, resolved_at = $5
		WHERE request_id = $1`,
		uuid.UUID(req.RequestID), string(req.Status), approver, req.ResolutionNotes, req.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update approval request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update approval request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) History(ctx context.Context, sessionID id.SessionID) ([]*approval.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, session_id, requested_by, approval_type, status, requires_second_approval,
		       approver_id, notes, resolution_notes, requested_at, resolved_at
		FROM approval_requests
		WHERE session_id = $1
		ORDER BY requested_at DESC`,
		uuid.UUID(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("query approval history: %w", err)
	}
	defer rows.Close()

	var out []*approval.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*approval.Request, error) {
	var (
		req           approval.Request
		reqID, sessID uuid.UUID
		requestedBy   uuid.UUID
		status        string
		approver      uuid.NullUUID
		resolvedAt    sql.NullTime
	)
	err := row.Scan(&reqID, &sessID, &requestedBy, &req.ApprovalType, &status, &req.RequiresSecondApproval,
		&approver, &req.Notes, &req.ResolutionNotes, &req.RequestedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	req.RequestID = id.ApprovalID(reqID)
	req.SessionID = id.SessionID(sessID)
	req.RequestedBy = id.UserID(requestedBy)
	req.Status = approval.Status(status)
	if approver.Valid {
		a := id.UserID(approver.UUID)
		req.ApproverID = &a
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	return &req, nil
}
