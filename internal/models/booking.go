package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ServiceKind identifies which catalog a selection points at
type ServiceKind string

const (
	ServiceKindHotel  ServiceKind = "hotel"
	ServiceKindFlight ServiceKind = "flight"
	ServiceKindTour   ServiceKind = "tour"
)

// IsValid reports whether k is one of the known service kinds
func (k ServiceKind) IsValid() bool {
	switch k {
	case ServiceKindHotel, ServiceKindFlight, ServiceKindTour:
		return true
	}
	return false
}

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValid reports whether s belongs to the booking status enum
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusPaid, BookingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusPaid || s == BookingStatusCancelled
}

// Selection is one selected catalog service. Amount is its contribution to
// the booking total, fixed when the booking is priced.
type Selection struct {
	Kind      ServiceKind `json:"kind" binding:"required,service_kind"`
	ServiceID uuid.UUID   `json:"service_id" binding:"required"`
	Amount    float64     `json:"amount"`
}

// Selections is stored as a JSONB array
type Selections []Selection

// Value implements the driver.Valuer interface
func (s Selections) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (s *Selections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Selections", value)
	}
	return json.Unmarshal(bytes, s)
}

// Kinds returns the distinct kinds present, in first-seen order
func (s Selections) Kinds() []ServiceKind {
	seen := make(map[ServiceKind]bool, len(s))
	kinds := make([]ServiceKind, 0, len(s))
	for _, sel := range s {
		if !seen[sel.Kind] {
			seen[sel.Kind] = true
			kinds = append(kinds, sel.Kind)
		}
	}
	return kinds
}

// CallerDates are the check-in/check-out dates supplied by the caller
type CallerDates struct {
	CheckIn  *time.Time `json:"check_in,omitempty"`
	CheckOut *time.Time `json:"check_out,omitempty"`
}

// StayPeriod is the resolved period of a booking. End stays nil when it
// could not be derived.
type StayPeriod struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Booking represents a reservation of one or more catalog services
type Booking struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	OwnerID     uuid.UUID      `json:"owner_id" db:"owner_id"`
	Selections  Selections     `json:"selections" db:"selections"`
	IsBundle    bool           `json:"is_bundle" db:"is_bundle"`
	StayStart   *time.Time     `json:"stay_start,omitempty" db:"stay_start"`
	StayEnd     *time.Time     `json:"stay_end,omitempty" db:"stay_end"`
	TotalAmount float64        `json:"total_amount" db:"total_amount"`
	Currency    string         `json:"currency" db:"currency"`
	Warnings    pq.StringArray `json:"warnings,omitempty" db:"warnings"`
	Status      BookingStatus  `json:"status" db:"status"`
	PaidAt      *time.Time     `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsOwnedBy reports whether the actor owns the booking
func (b *Booking) IsOwnedBy(actor Actor) bool {
	return b.OwnerID == actor.UserID
}

// CanBeAccessedBy reports whether the actor may read or act on the booking
func (b *Booking) CanBeAccessedBy(actor Actor) bool {
	return actor.IsAdmin || b.IsOwnedBy(actor)
}

// Actor is the caller identity performing an operation
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	Selections []Selection `json:"selections" binding:"required,min=1,dive"`
	CheckIn    *time.Time  `json:"check_in,omitempty"`
	CheckOut   *time.Time  `json:"check_out,omitempty"`
	Bundle     bool        `json:"bundle"`
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if len(r.Selections) == 0 {
		return ErrNoSelections
	}
	for _, sel := range r.Selections {
		if !sel.Kind.IsValid() {
			return fmt.Errorf("unknown service kind %q", sel.Kind)
		}
		if sel.ServiceID == uuid.Nil {
			return errors.New("service_id is required")
		}
	}
	return nil
}

// Dates returns the caller supplied dates
func (r *CreateBookingRequest) Dates() CallerDates {
	return CallerDates{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// UpdateBookingStatusRequest is the admin booking status override payload
type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required,booking_status"`
}

// BookingResponse is a booking with its resolved services
type BookingResponse struct {
	*Booking
	Services []ServiceView `json:"services"`
}
