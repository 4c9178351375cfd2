// Package broadcast fans accepted state changes out to every client
// subscribed to a session's topic.
//
// The coordinator publishes synchronously inside its per-session critical
// section, so publish order equals mutation order. Delivery to individual
// subscribers is decoupled behind buffered channels (memory) or Redis
// Pub/Sub, and never blocks the writer.
package broadcast

import (
	"context"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
)

// Broker is the publish/subscribe boundary. One topic per session.
type Broker interface {
	// Publish delivers one update to the session's topic.
	Publish(ctx context.Context, update models.StateUpdate) error
	// Subscribe returns a channel of updates for the session plus a
	// cancel function. The channel closes on cancel.
	Subscribe(ctx context.Context, sessionID id.SessionID) (<-chan models.StateUpdate, func(), error)
}
