package notify

import (
	"context"
	"log/slog"
)

// Publisher is the outbound edge the worker drains into.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const defaultInboxSize = 256

// Worker consumes events from an in-process inbox and publishes them.
// The coordinator enqueues without blocking; if the inbox is full the
// event is dropped and logged, never propagated back to the mutation.
type Worker struct {
	publisher Publisher
	inbox     chan Event
	logger    *slog.Logger
}

func NewWorker(publisher Publisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		publisher: publisher,
		inbox:     make(chan Event, defaultInboxSize),
		logger:    logger,
	}
}

// Enqueue hands an event to the worker. Non-blocking.
func (w *Worker) Enqueue(event Event) {
	select {
	case w.inbox <- event:
	default:
		w.logger.Warn("notification inbox full, dropping event",
			"session_id", event.SessionID,
			"request_id", event.RequestID,
		)
	}
}

// Run drains the inbox until the context ends. Publish failures are
// logged and skipped; notifications are not worth crashing over.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "notification publish failed",
					"session_id", event.SessionID,
					"request_id", event.RequestID,
					"error", err,
				)
			}
		}
	}
}
