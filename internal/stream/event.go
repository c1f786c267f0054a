// Package stream drives single turns through the learning state
// machine and surfaces progress as ordered, uniquely identified
// events.
package stream

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type represents the kind of turn event.
type Type string

const (
	TurnStart        Type = "turn_start"
	NodeStart        Type = "node_start"
	Token            Type = "token"
	StageChange      Type = "stage_change"
	SlideCreated     Type = "slide"
	Suspended        Type = "suspended"
	ResponseComplete Type = "response_complete"
	ErrorEvent       Type = "error"
	TurnEnd          Type = "turn_end"
)

// Event is one unit of turn progress. IDs are ULIDs, so they are
// unique and sort in emission order.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New creates an event for the given session.
func New(eventType Type, sessionID string) *Event {
	return &Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// WithData adds a data field to the event and returns it for chaining.
func (e *Event) WithData(key string, value interface{}) *Event {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// Emitter is the interface for event consumers.
type Emitter interface {
	Emit(event *Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// Emit implements Emitter by discarding the event.
func (NoopEmitter) Emit(*Event) {}

// CollectorEmitter collects events in memory for testing.
type CollectorEmitter struct {
	mu     sync.Mutex
	Events []*Event
}

// Emit appends the event to the collector.
func (c *CollectorEmitter) Emit(event *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
}

// Types returns the collected event types in order.
func (c *CollectorEmitter) Types() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Type, len(c.Events))
	for i, e := range c.Events {
		out[i] = e.Type
	}
	return out
}

// DedupeEmitter suppresses exact-duplicate event ids for the lifetime
// of one connection, so a retried send is delivered once.
type DedupeEmitter struct {
	next Emitter
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupeEmitter wraps an emitter with duplicate suppression.
func NewDedupeEmitter(next Emitter) *DedupeEmitter {
	return &DedupeEmitter{next: next, seen: make(map[string]struct{})}
}

// Emit forwards the event unless its id was already delivered.
func (d *DedupeEmitter) Emit(event *Event) {
	d.mu.Lock()
	if _, dup := d.seen[event.ID]; dup {
		d.mu.Unlock()
		return
	}
	d.seen[event.ID] = struct{}{}
	d.mu.Unlock()

	d.next.Emit(event)
}
