package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the envelope every booking and payment domain event travels in
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with a fresh ULID
func NewEvent(eventType, aggregateType, aggregateID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation tags the event with the payment correlation key
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into v
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher publishes events to a message broker
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

const (
	AggregateBooking = "booking"
	AggregatePayment = "payment"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventBookingPaid      = "booking.paid"
	EventPaymentPaid      = "payment.paid"
	EventPaymentFailed    = "payment.failed"
)

// BookingData is the data for booking.* events
type BookingData struct {
	BookingID   string    `json:"booking_id"`
	OwnerID     string    `json:"owner_id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}

// PaymentData is the data for payment.* events
type PaymentData struct {
	PaymentID     string    `json:"payment_id"`
	BookingID     string    `json:"booking_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	ResponseCode  string    `json:"response_code,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Channel       string    `json:"channel,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}
