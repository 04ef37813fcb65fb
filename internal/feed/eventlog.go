package feed

import (
	"sync"
	"time"

	"digitdash/internal/memorystore"
)

type EventKind string

const (
	EventStatus    EventKind = "status"
	EventAttempt   EventKind = "reconnect_attempt"
	EventMalformed EventKind = "malformed"
	EventFeedError EventKind = "feed_error"
)

// Event is one diagnostic entry about the connection.
type Event struct {
	At     time.Time `json:"at"`
	Kind   EventKind `json:"kind"`
	Status Status    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// EventLog is a bounded circular log of connection events.
type EventLog struct {
	mu   sync.Mutex
	ring *memorystore.Ring[Event]
}

func NewEventLog(size int) *EventLog {
	return &EventLog{ring: memorystore.NewRing[Event](size)}
}

func (l *EventLog) Add(e Event) {
	l.mu.Lock()
	l.ring.Push(e)
	l.mu.Unlock()
}

// Events returns the retained events, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Items()
}
