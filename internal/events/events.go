package events

import (
	"encoding/json"
	"sync"
	"time"

	"hallbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventHallApproved     = "hall_approved"
)

// AllTypes lists every event type the engine publishes.
var AllTypes = []string{EventBookingCreated, EventBookingCancelled, EventHallApproved}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   int64           `json:"booking_id"`
	HallID      int64           `json:"hall_id"`
	HallName    string          `json:"hall_name"`
	Date        string          `json:"date"`
	GuestCount  int             `json:"guest_count"`
	CustomerID  int64           `json:"customer_id"`
	Customer    models.Customer `json:"customer"`
	CreatedAt   time.Time       `json:"created_at"`
	ChangedByID int64           `json:"changed_by_id,omitempty"`
	ChangedBy   string          `json:"changed_by,omitempty"`
}

// NewBookingPayload snapshots b for consumers. changedBy is the acting user.
func NewBookingPayload(b *models.Booking, changedBy *models.User) BookingEventPayload {
	p := BookingEventPayload{
		BookingID:  b.ID,
		HallID:     b.HallID,
		HallName:   b.HallName,
		Date:       b.DateKey(),
		GuestCount: b.GuestCount,
		CustomerID: b.CustomerID,
		Customer:   b.Customer,
		CreatedAt:  b.CreatedAt,
	}
	if changedBy != nil {
		p.ChangedByID = changedBy.ID
		p.ChangedBy = string(changedBy.Role)
	}
	return p
}

// Booking rebuilds the booking snapshot carried by the payload.
func (p BookingEventPayload) Booking() (*models.Booking, error) {
	date, err := models.ParseDate(p.Date)
	if err != nil {
		return nil, err
	}
	return &models.Booking{
		ID:         p.BookingID,
		HallID:     p.HallID,
		HallName:   p.HallName,
		Date:       date,
		GuestCount: p.GuestCount,
		CustomerID: p.CustomerID,
		Customer:   p.Customer,
		CreatedAt:  p.CreatedAt,
	}, nil
}

type HallEventPayload struct {
	HallID      int64  `json:"hall_id"`
	HallName    string `json:"hall_name"`
	Approved    bool   `json:"approved"`
	ChangedByID int64  `json:"changed_by_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors go to logger when set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every type in AllTypes.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range AllTypes {
		b.Subscribe(t, handler)
	}
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
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
