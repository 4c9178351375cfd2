package audit

import (
	"context"
	"fmt"

	dErrors "screenflow/pkg/domain-errors"
)

// VerificationResult reports the outcome of a full chain walk.
type VerificationResult struct {
	Entries    int    `json:"entries"`
	Valid      bool   `json:"valid"`
	BrokenAt   int    `json:"broken_at,omitempty"` // index of the first bad entry
	FailReason string `json:"fail_reason,omitempty"`
}

// Verify recomputes every hash forward from entry zero. Any retroactive
// edit, deletion, or reorder shows up as a mismatch at or after the
// tampered entry.
func (l *Log) Verify(ctx context.Context) (VerificationResult, error) {
	entries, err := l.store.ListAll(ctx)
	if err != nil {
		return VerificationResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable")
	}

	prev := ""
	for i := range entries {
		e := &entries[i]
		if e.PrevHash != prev {
			return VerificationResult{
				Entries:    len(entries),
				BrokenAt:   i,
				FailReason: fmt.Sprintf("entry %d prev-hash mismatch", i),
			}, nil
		}
		if recomputed := e.ComputeHash(prev); recomputed != e.EntryHash {
			return VerificationResult{
				Entries:    len(entries),
				BrokenAt:   i,
				FailReason: fmt.Sprintf("entry %d hash mismatch", i),
			}, nil
		}
		prev = e.EntryHash
	}
	return VerificationResult{Entries: len(entries), Valid: true}, nil
}
