package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notice levels carried by events.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event represents an overlay state change or a user-visible notice.
type Event struct {
	ID       string    `json:"id"`
	Resource string    `json:"resource"` // "overlays", "config", "theme", "annotation"
	Action   string    `json:"action"`   // "activated", "deactivated", "failed", "updated", ...
	Target   string    `json:"target,omitempty"`
	Level    string    `json:"level,omitempty"`
	Title    string    `json:"title,omitempty"`
	Message  string    `json:"message,omitempty"`
	Data     any       `json:"data,omitempty"`
	Time     time.Time `json:"time"`
}

// EventBus is a simple fan-out pub/sub for overlay events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking). Missing ids and
// timestamps are filled in.
func (b *EventBus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Notice publishes a user-visible message.
func (b *EventBus) Notice(level, target, title, message string) {
	b.Publish(Event{Resource: "notice", Action: level, Target: target, Level: level, Title: title, Message: message})
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
