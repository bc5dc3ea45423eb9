package realtime

import (
	"encoding/json"
	"fmt"
)

// Event names pushed over a user's channel.
const (
	EventConnected    = "connected"
	EventNotification = "notification"
	EventUnreadCount  = "unreadCount"
)

// Event is one named frame with a JSON payload, encoded once and shared by
// every recipient of a broadcast.
type Event struct {
	Name string
	Data json.RawMessage
}

func NewEvent(name string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", name, err)
	}
	return Event{Name: name, Data: data}, nil
}

// ConnectedEvent is the one-shot confirmation queued ahead of any data.
func ConnectedEvent() Event {
	return Event{Name: EventConnected, Data: json.RawMessage(`"ok"`)}
}
