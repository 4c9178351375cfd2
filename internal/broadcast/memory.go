package broadcast

import (
	"context"
	"sync"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
)

// subscriberBuffer bounds how far one subscriber may fall behind before
// updates are dropped for it. Session membership is soft, so dropping a
// stale subscriber's updates is acceptable; blocking the writer is not.
const subscriberBuffer = 64

// MemoryBroker is an in-process broker. Order per topic is preserved
// because Publish appends to each subscriber's channel under the topic
// read-lock, and publishes for one session arrive already serialized.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string][]*memorySubscriber
}

type memorySubscriber struct {
	ch     chan models.StateUpdate
	closed bool
	mu     sync.Mutex
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string][]*memorySubscriber)}
}

func (b *MemoryBroker) Publish(_ context.Context, update models.StateUpdate) error {
	topic := models.Topic(update.SessionID)

	b.mu.RLock()
	subs := b.topics[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.send(update)
	}
	return nil
}

func (s *memorySubscriber) send(update models.StateUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- update:
	default:
		// subscriber too slow; drop rather than block the writer
	}
}

func (b *MemoryBroker) Subscribe(_ context.Context, sessionID id.SessionID) (<-chan models.StateUpdate, func(), error) {
	topic := models.Topic(sessionID)
	sub := &memorySubscriber{ch: make(chan models.StateUpdate, subscriberBuffer)}

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			subs := b.topics[topic]
			for i, existing := range subs {
				if existing == sub {
					b.topics[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(b.topics[topic]) == 0 {
				delete(b.topics, topic)
			}
			b.mu.Unlock()

			sub.mu.Lock()
			sub.closed = true
			close(sub.ch)
			sub.mu.Unlock()
		})
	}
	return sub.ch, cancel, nil
}
