// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that happened
// to a match during its lifecycle.
const (
	// Match lifecycle events
	EventMatchProposed      EventType = "match.proposed"
	EventMatchAccepted      EventType = "match.accepted"
	EventMatchRejected      EventType = "match.rejected"
	EventMatchAutoRejected  EventType = "match.auto_rejected"
	EventManualMatchCreated EventType = "match.manual_created"

	// Coordination events
	EventManualMatchingRequired EventType = "match.manual_matching_required"

	// Batch events
	EventMatchingInitiated EventType = "batch.matching_initiated"
	EventSweepCompleted    EventType = "batch.sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return NewBaseEventAt(eventType, aggregateID, time.Now())
}

// NewBaseEventAt creates a new base event with an explicit timestamp.
func NewBaseEventAt(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Match Events
// ═══════════════════════════════════════════════════════════════════════════

// MatchEvent is emitted on every match state change. The aggregate is the match.
type MatchEvent struct {
	BaseEvent
	ProgramID            string  `json:"program_id"`
	MenteeID             string  `json:"mentee_id"`
	MentorID             string  `json:"mentor_id"`
	MatchType            string  `json:"match_type"`
	Status               string  `json:"status"`
	Score                float64 `json:"score"`
	PreferredChoiceOrder int     `json:"preferred_choice_order,omitempty"`
	Reason               string  `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e MatchEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"program_id": e.ProgramID,
		"mentee_id":  e.MenteeID,
		"mentor_id":  e.MentorID,
		"match_type": e.MatchType,
		"status":     e.Status,
		"score":      e.Score,
	}
	if e.PreferredChoiceOrder > 0 {
		p["preferred_choice_order"] = e.PreferredChoiceOrder
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}
	return p
}

// ManualMatchingRequiredEvent is emitted when the cascade runs out of candidates
// and coordinators must pair the mentee by hand.
type ManualMatchingRequiredEvent struct {
	BaseEvent
	ProgramID string `json:"program_id"`
	MenteeID  string `json:"mentee_id"`
	Attempted int    `json:"attempted"`
}

// Payload implements Event interface.
func (e ManualMatchingRequiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"program_id": e.ProgramID,
		"mentee_id":  e.MenteeID,
		"attempted":  e.Attempted,
	}
}

// NewManualMatchingRequiredEvent creates a new ManualMatchingRequiredEvent.
func NewManualMatchingRequiredEvent(programID, menteeID string, attempted int, at time.Time) ManualMatchingRequiredEvent {
	return ManualMatchingRequiredEvent{
		BaseEvent: NewBaseEventAt(EventManualMatchingRequired, menteeID, at),
		ProgramID: programID,
		MenteeID:  menteeID,
		Attempted: attempted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Batch Events
// ═══════════════════════════════════════════════════════════════════════════

// BatchCompletedEvent summarizes a batch run (initiate-matching or expiry sweep).
type BatchCompletedEvent struct {
	BaseEvent
	Counts   map[string]int `json:"counts"`
	Duration time.Duration  `json:"duration"`
}

// Payload implements Event interface.
func (e BatchCompletedEvent) Payload() map[string]interface{} {
	p := make(map[string]interface{}, len(e.Counts)+1)
	for k, v := range e.Counts {
		p[k] = v
	}
	p["duration_ms"] = e.Duration.Milliseconds()
	return p
}

// NewBatchCompletedEvent creates a new BatchCompletedEvent.
func NewBatchCompletedEvent(eventType EventType, aggregateID string, counts map[string]int, duration time.Duration, at time.Time) BatchCompletedEvent {
	return BatchCompletedEvent{
		BaseEvent: NewBaseEventAt(eventType, aggregateID, at),
		Counts:    counts,
		Duration:  duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes the event payload into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}

	env := EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := event.(interface{ baseEvent() BaseEvent }); ok {
		env.Version = b.baseEvent().Version
		env.CorrelationID = b.baseEvent().CorrelationID
	}
	return env, nil
}

func (e BaseEvent) baseEvent() BaseEvent { return e }

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
