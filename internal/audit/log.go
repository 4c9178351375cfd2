package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
)

// Store persists audit entries in insertion order.
type Store interface {
	// Append persists an entry whose EntryHash is already computed.
	Append(ctx context.Context, entry Entry) error
	// ListBySession returns a session's entries newest-first.
	ListBySession(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]Entry, error)
	// ListAll returns every entry oldest-first, for chain verification.
	ListAll(ctx context.Context) ([]Entry, error)
	// LastHash returns the most recent entry's hash, or "" for an empty log.
	LastHash(ctx context.Context) (string, error)
}

// Log is the hash-chain appender. The chain is global across sessions, so
// appends serialize on one mutex. This is the only cross-session
// serialization point in the system.
type Log struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	lastHash string
	seeded   bool
}

// Option configures a Log.
type Option func(*Log)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// NewLog builds the appender over a store. The previous tail hash is
// loaded lazily on first append so construction never touches the store.
func NewLog(store Store, opts ...Option) (*Log, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	l := &Log{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Append chains and persists the entry. The caller's mutation must already
// be decided: Append runs before success is returned to the caller, so the
// log is never behind observable state.
func (l *Log) Append(ctx context.Context, entry Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.seeded {
		tail, err := l.store.LastHash(ctx)
		if err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable")
		}
		l.lastHash = tail
		l.seeded = true
	}

	// Postgres TIMESTAMPTZ keeps microseconds, so hash the timestamp at
	// the precision it will be read back with. A nanosecond timestamp
	// hashed as-is would fail verification after a round trip.
	entry.Timestamp = entry.Timestamp.Truncate(time.Microsecond)
	entry.LogID = id.NewLogID()
	entry.PrevHash = l.lastHash
	entry.EntryHash = entry.ComputeHash(l.lastHash)

	if err := l.store.Append(ctx, entry); err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit append failed")
	}
	l.lastHash = entry.EntryHash
	return entry, nil
}

// History returns a session's entries newest-first.
func (l *Log) History(ctx context.Context, sessionID id.SessionID, skip, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	entries, err := l.store.ListBySession(ctx, sessionID, skip, limit)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no audit history for session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable")
	}
	return entries, nil
}
