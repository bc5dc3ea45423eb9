package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the notification bus. Commands come in from other
// services, domain events go out after storage has accepted a write.
const (
	TypeBroadcastCommand = "command.broadcast"
	TypeUserCommand      = "command.user"

	TypeNotificationCreated = "event.created"
	TypeNotificationRead    = "event.read"
)

// Event defines the contract for everything travelling over the bus.
type Event interface {
	// EventID identifies one occurrence, used for de-duplication downstream.
	EventID() string

	// EventType returns the routing code (e.g. "event.created").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	ID         string
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

// New stamps a fresh id and the current time onto an event.
func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() string {
	return e.ID
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

// StringField reads a string value out of a payload, tolerating absence.
func StringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

type envelope struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Encode serializes an event with its metadata for in-process transport.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(envelope{
		ID:         event.EventID(),
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
}

func Decode(data []byte) (BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return BaseEvent{}, err
	}
	return BaseEvent{ID: env.ID, Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}
