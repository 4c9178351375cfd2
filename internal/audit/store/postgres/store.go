// Package postgres persists the audit chain in a single append-only table.
// Insertion order is the chain order (bigserial seq); rows are never
// updated or deleted by this code.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"screenflow/internal/audit"
	id "screenflow/pkg/domain"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is applied by migrations; kept here for reference and for the
// integration test harness.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq           BIGSERIAL PRIMARY KEY,
	log_id        UUID NOT NULL UNIQUE,
	session_id    UUID NOT NULL,
	step          TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	actor         UUID NOT NULL,
	ts            TIMESTAMPTZ NOT NULL,
	previous_data JSONB,
	new_data      JSONB,
	computed_diff JSONB,
	device        TEXT NOT NULL DEFAULT '',
	prev_hash     TEXT NOT NULL,
	entry_hash    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_session_idx ON audit_log (session_id, seq DESC);
`

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	previous, err := marshalMap(entry.PreviousData)
	if err != nil {
		return fmt.Errorf("marshal previous_data: %w", err)
	}
	next, err := marshalMap(entry.NewData)
	if err != nil {
		return fmt.Errorf("marshal new_data: %w", err)
	}
	diff, err := marshalDiff(entry.ComputedDiff)
	if err != nil {
		return fmt.Errorf("marshal computed_diff: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log
			(log_id, session_id, step, action, actor, ts, previous_data, new_data, computed_diff, device, prev_hash, entry_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(entry.LogID), uuid.UUID(entry.SessionID), entry.Step, string(entry.Action),
		uuid.UUID(entry.Actor), entry.Timestamp, previous, next, diff, entry.Device,
		entry.PrevHash, entry.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, session_id, step, action, actor, ts, previous_data, new_data, computed_diff, device, prev_hash, entry_hash
		FROM audit_log
		WHERE session_id = $1
		ORDER BY seq DESC
		OFFSET $2 LIMIT $3`,
		uuid.UUID(sessionID), skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query session audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListAll(ctx context.Context) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, session_id, step, action, actor, ts, previous_data, new_data, computed_diff, device, prev_hash, entry_hash
		FROM audit_log
		ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) LastHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_hash FROM audit_log ORDER BY seq DESC LIMIT 1`,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last hash: %w", err)
	}
	return hash, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		var (
			entry                audit.Entry
			logID, sessID, actor uuid.UUID
			action               string
			previous, next, diff []byte
		)
		if err := rows.Scan(&logID, &sessID, &entry.Step, &action, &actor, &entry.Timestamp,
			&previous, &next, &diff, &entry.Device, &entry.PrevHash, &entry.EntryHash); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.LogID = id.LogID(logID)
		entry.SessionID = id.SessionID(sessID)
		entry.Actor = id.UserID(actor)
		entry.Action = audit.Action(action)
		if err := unmarshalMap(previous, &entry.PreviousData); err != nil {
			return nil, err
		}
		if err := unmarshalMap(next, &entry.NewData); err != nil {
			return nil, err
		}
		if len(diff) > 0 {
			if err := json.Unmarshal(diff, &entry.ComputedDiff); err != nil {
				return nil, fmt.Errorf("unmarshal computed_diff: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func marshalDiff(d map[string]audit.Delta) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func unmarshalMap(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal audit payload: %w", err)
	}
	return nil
}
