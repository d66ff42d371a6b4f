package models

import (
	"time"

	"github.com/google/uuid"
)

// Hotel is a read-only hotel catalog record
type Hotel struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	PricePerNight float64   `json:"price_per_night" db:"price_per_night"`
}

// Flight is a read-only flight catalog record
type Flight struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FlightNumber string    `json:"flight_number" db:"flight_number"`
	Price        float64   `json:"price" db:"price"`
}

// Tour is a read-only tour catalog record. Duration is free text such as
// "3 Days 2 Nights".
type Tour struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	PricePerPerson float64   `json:"price_per_person" db:"price_per_person"`
	DepartureTime  time.Time `json:"departure_time" db:"departure_time"`
	Duration       string    `json:"duration" db:"duration"`
}

// ServiceReference is the outcome of resolving a selection against the
// catalog: either a resolved snapshot or an unresolved placeholder.
type ServiceReference interface {
	Kind() ServiceKind
	ServiceID() uuid.UUID
	Resolved() bool
	View() ServiceView
	serviceReference()
}

// ServiceView is the JSON rendering of a ServiceReference
type ServiceView struct {
	Kind     ServiceKind `json:"kind"`
	ID       uuid.UUID   `json:"id"`
	Resolved bool        `json:"resolved"`
	Name     string      `json:"name,omitempty"`
	Price    float64     `json:"price,omitempty"`
	Details  interface{} `json:"details,omitempty"`
}

// ResolvedHotel is a hotel snapshot
type ResolvedHotel struct{ Hotel Hotel }

func (r ResolvedHotel) Kind() ServiceKind    { return ServiceKindHotel }
func (r ResolvedHotel) ServiceID() uuid.UUID { return r.Hotel.ID }
func (r ResolvedHotel) Resolved() bool       { return true }
func (r ResolvedHotel) serviceReference()    {}

func (r ResolvedHotel) View() ServiceView {
	return ServiceView{Kind: ServiceKindHotel, ID: r.Hotel.ID, Resolved: true, Name: r.Hotel.Name, Price: r.Hotel.PricePerNight, Details: r.Hotel}
}

// ResolvedFlight is a flight snapshot
type ResolvedFlight struct{ Flight Flight }

func (r ResolvedFlight) Kind() ServiceKind    { return ServiceKindFlight }
func (r ResolvedFlight) ServiceID() uuid.UUID { return r.Flight.ID }
func (r ResolvedFlight) Resolved() bool       { return true }
func (r ResolvedFlight) serviceReference()    {}

func (r ResolvedFlight) View() ServiceView {
	return ServiceView{Kind: ServiceKindFlight, ID: r.Flight.ID, Resolved: true, Name: r.Flight.FlightNumber, Price: r.Flight.Price, Details: r.Flight}
}

// ResolvedTour is a tour snapshot
type ResolvedTour struct{ Tour Tour }

func (r ResolvedTour) Kind() ServiceKind    { return ServiceKindTour }
func (r ResolvedTour) ServiceID() uuid.UUID { return r.Tour.ID }
func (r ResolvedTour) Resolved() bool       { return true }
func (r ResolvedTour) serviceReference()    {}

func (r ResolvedTour) View() ServiceView {
	return ServiceView{Kind: ServiceKindTour, ID: r.Tour.ID, Resolved: true, Name: r.Tour.Name, Price: r.Tour.PricePerPerson, Details: r.Tour}
}

// UnresolvedService is the placeholder for a selection whose catalog entry
// no longer exists
type UnresolvedService struct {
	ServiceKind ServiceKind
	ID          uuid.UUID
}

func (u UnresolvedService) Kind() ServiceKind    { return u.ServiceKind }
func (u UnresolvedService) ServiceID() uuid.UUID { return u.ID }
func (u UnresolvedService) Resolved() bool       { return false }
func (u UnresolvedService) serviceReference()    {}

func (u UnresolvedService) View() ServiceView {
	return ServiceView{Kind: u.ServiceKind, ID: u.ID, Resolved: false}
}

// NotFoundError converts the placeholder into a ServiceNotFoundError
func (u UnresolvedService) NotFoundError() error {
	return &ServiceNotFoundError{Kind: u.ServiceKind, ID: u.ID}
}
