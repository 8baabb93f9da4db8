// Package events provides the fire-and-forget event/audit sink the
// compliance core publishes lifecycle notifications to. Delivery is never
// awaited for correctness; a failing sink must not fail the operation that
// emitted the event.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one published notification.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	TenantID  string         `json:"tenant_id"`
	EntityID  string         `json:"entity_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives published events.
type Sink interface {
	Publish(ctx context.Context, name, tenant, entityID string, payload map[string]any)
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a zerolog-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, name, tenant, entityID string, payload map[string]any) {
	s.logger.Info().
		Str("event", name).
		Str("tenant_id", tenant).
		Str("entity_id", entityID).
		Interface("payload", payload).
		Msg("event published")
}

// MemorySink captures events for assertions in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, name, tenant, entityID string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{
		ID:        uuid.New().String(),
		Name:      name,
		TenantID:  tenant,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// Events returns a snapshot of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Named returns the captured events with the given name.
func (s *MemorySink) Named(name string) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
