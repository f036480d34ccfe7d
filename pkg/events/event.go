package events

import "time"

// Event type codes emitted by the turn pipeline.
const (
	TypeTurnCompleted = "TURN_COMPLETED"
	TypeIndexRebuilt  = "INDEX_REBUILT"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used by the pipeline.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewTurnCompleted wraps one turn report payload.
func NewTurnCompleted(payload map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       TypeTurnCompleted,
		Data:       payload,
		OccurredAt: time.Now(),
	}
}

// NewIndexRebuilt records an admin-triggered partition rebuild.
func NewIndexRebuilt(indexName string, entries int) BaseEvent {
	return BaseEvent{
		Type: TypeIndexRebuilt,
		Data: map[string]interface{}{
			"index_name": indexName,
			"entries":    entries,
		},
		OccurredAt: time.Now(),
	}
}
