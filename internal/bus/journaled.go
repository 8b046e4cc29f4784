package bus

import (
	"context"

	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

// JournaledBus wraps another Bus and records every published event in an
// on-disk journal before delivery.
type JournaledBus struct {
	inner   Bus
	journal *EventJournal
	log     *logger.Logger
}

// NewJournaledBus wraps inner so its published events are journaled.
func NewJournaledBus(inner Bus, journal *EventJournal, log *logger.Logger) *JournaledBus {
	if log == nil {
		log = logger.Default()
	}
	return &JournaledBus{inner: inner, journal: journal, log: log}
}

// Publish journals the event, best effort, then delegates to the inner bus.
func (b *JournaledBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := b.journal.Log(topic, event); err != nil {
		b.log.WithError(err).Warn("failed to journal event", "topic", topic)
	}
	return b.inner.Publish(ctx, topic, event)
}

// Subscribe delegates to the inner bus.
func (b *JournaledBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Close closes the journal and then the inner bus.
func (b *JournaledBus) Close() error {
	if err := b.journal.Close(); err != nil {
		b.log.WithError(err).Warn("failed to close event journal")
	}
	return b.inner.Close()
}
