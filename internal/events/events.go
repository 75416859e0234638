package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventAppointmentRequested = "appointment_requested"
	EventAppointmentApproved  = "appointment_approved"
	EventAppointmentRejected  = "appointment_rejected"
	EventAppointmentCancelled = "appointment_cancelled"
	EventAppointmentCheckedIn = "appointment_checked_in"
)

// AppointmentEventPayload is the minimal appointment snapshot handed to event
// consumers (notifiers, schedule mirror). Transitions publish it after the
// write committed, never inside it.
type AppointmentEventPayload struct {
	AppointmentID int64     `json:"appointment_id"`
	Reference     string    `json:"reference"`
	HallID        int64     `json:"hall_id"`
	HallName      string    `json:"hall_name"`
	UserID        int64     `json:"user_id"`
	OwnerID       int64     `json:"owner_id,omitempty"`
	Status        string    `json:"status"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	ChangedByID   int64     `json:"changed_by_id,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
