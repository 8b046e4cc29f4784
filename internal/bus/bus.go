// Package bus publishes evaluation progress events so external consumers
// can follow long-running runs.
package bus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/clindocs/cdi-eval/internal/pkg/hash"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus is a one-way publish/subscribe event bus.
type Bus interface {
	// Publish delivers an event to all subscribers of a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe registers a handler for events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type, equal to the topic it is published on.
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix nanoseconds.
	Timestamp int64 `json:"timestamp"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Evaluation run topics.
const (
	TopicCaseCompleted  = "eval.case.completed"
	TopicCaseFailed     = "eval.case.failed"
	TopicBatchCompleted = "eval.batch.completed"
	TopicSplitCompleted = "split.completed"
)

var eventSeq atomic.Uint64

// NewEvent builds an event with a deterministic-length unique ID.
func NewEvent(eventType, source string, payload any) Event {
	now := time.Now()
	seed := fmt.Sprintf("%s|%s|%d|%d", eventType, source, now.UnixNano(), eventSeq.Add(1))
	return Event{
		ID:        hash.SHA256Short([]byte(seed), 16),
		Type:      eventType,
		Source:    source,
		Timestamp: now.UnixNano(),
		Payload:   payload,
	}
}
