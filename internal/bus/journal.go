package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// JournaledEvent is one line of the on-disk event journal.
type JournaledEvent struct {
	Event     Event     `json:"event"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// EventJournal appends every published event to a JSON-lines file, so a
// finished run can be audited or replayed without the original dataset.
type EventJournal struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	enabled bool
	encoder *json.Encoder
}

// NewEventJournal creates an event journal at path. When enabled is false
// the journal is inert and writes nothing.
func NewEventJournal(path string, enabled bool) (*EventJournal, error) {
	j := &EventJournal{path: path, enabled: enabled}
	if !enabled {
		return j, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	j.file = file
	j.encoder = json.NewEncoder(file)
	return j, nil
}

// Log appends one event. A disabled journal is a no-op.
func (j *EventJournal) Log(topic string, event Event) error {
	if !j.enabled {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New(errors.CodeInternal, "event journal not initialized")
	}

	entry := JournaledEvent{Event: event, Topic: topic, Timestamp: time.Now()}
	if err := j.encoder.Encode(entry); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return j.file.Sync()
}

// Events reads journal entries recorded after since, at most limit when
// limit is positive, in chronological order.
func (j *EventJournal) Events(since time.Time, limit int) ([]JournaledEvent, error) {
	if !j.enabled {
		return nil, errors.New(errors.CodeUnavailable, "event journal is disabled")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []JournaledEvent{}, nil
		}
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	var events []JournaledEvent
	scanner := bufio.NewScanner(file)
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, maxScanTokenSize), maxScanTokenSize)

	for scanner.Scan() {
		var entry JournaledEvent
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// Skip malformed lines
			continue
		}
		if entry.Timestamp.After(since) {
			events = append(events, entry)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal file: %w", err)
	}
	return events, nil
}

// Replay republishes journaled events recorded after since onto a bus.
func (j *EventJournal) Replay(ctx context.Context, b Bus, since time.Time) error {
	if !j.enabled {
		return errors.New(errors.CodeUnavailable, "event journal is disabled")
	}

	events, err := j.Events(since, 0)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	for _, entry := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := b.Publish(ctx, entry.Topic, entry.Event); err != nil {
				return fmt.Errorf("failed to replay event %s: %w", entry.Event.ID, err)
			}
		}
	}
	return nil
}

// Close closes the journal file.
func (j *EventJournal) Close() error {
	if !j.enabled {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("failed to close journal file: %w", err)
		}
		j.file = nil
		j.encoder = nil
	}
	return nil
}

// IsEnabled reports whether the journal writes events.
func (j *EventJournal) IsEnabled() bool {
	return j.enabled
}
