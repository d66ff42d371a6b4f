// Package testutil provides in-memory stand-ins for the postgres
// repositories, used by service and handler tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/travelhub/booking-engine/internal/events"
	"github.com/travelhub/booking-engine/internal/models"
)

type txKey struct{}

// Store is an in-memory database. WithTx serialises transactions behind a
// single lock and restores a snapshot when the work fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	bookings map[uuid.UUID]models.Booking
	payments map[uuid.UUID]models.Payment
	audits   []models.PaymentAudit

	Hotels  map[uuid.UUID]models.Hotel
	Flights map[uuid.UUID]models.Flight
	Tours   map[uuid.UUID]models.Tour
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		bookings: map[uuid.UUID]models.Booking{},
		payments: map[uuid.UUID]models.Payment{},
		Hotels:   map[uuid.UUID]models.Hotel{},
		Flights:  map[uuid.UUID]models.Flight{},
		Tours:    map[uuid.UUID]models.Tour{},
	}
}

// WithTx runs fn with exclusive access to the store
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	bookings := cloneMap(s.bookings)
	payments := cloneMap(s.payments)
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.bookings = bookings
		s.payments = payments
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// lock guards a single statement. Inside WithTx the transaction lock is
// already held by this goroutine.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		s.mu.Lock()
		return func() { s.mu.Unlock(); s.txMu.Unlock() }
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Bookings exposes the booking table
func (s *Store) Bookings() *BookingTable { return &BookingTable{s} }

// Payments exposes the payment table
func (s *Store) Payments() *PaymentTable { return &PaymentTable{s} }

// Audits exposes the audit log
func (s *Store) Audits() *AuditTable { return &AuditTable{s} }

// Catalog exposes the catalog tables
func (s *Store) Catalog() *CatalogTable { return &CatalogTable{s} }

// BookingTable implements the booking repository
type BookingTable struct{ s *Store }

func (t *BookingTable) Create(ctx context.Context, b *models.Booking) error {
	defer t.s.lock(ctx)()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	t.s.bookings[b.ID] = *b
	return nil
}

func (t *BookingTable) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	defer t.s.lock(ctx)()
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return &b, nil
}

func (t *BookingTable) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return t.GetByID(ctx, id)
}

func (t *BookingTable) ListByOwner(ctx context.Context, owner uuid.UUID, limit, offset int) ([]models.Booking, error) {
	defer t.s.lock(ctx)()
	out := []models.Booking{}
	for _, b := range t.s.bookings {
		if b.OwnerID == owner {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Booking{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (t *BookingTable) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	defer t.s.lock(ctx)()
	b, ok := t.s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	now := time.Now()
	b.Status = to
	b.UpdatedAt = now
	switch to {
	case models.BookingStatusPaid:
		b.PaidAt = &now
	case models.BookingStatusCancelled:
		b.CancelledAt = &now
	}
	t.s.bookings[id] = b
	return true, nil
}

// Put stores a booking as is
func (t *BookingTable) Put(b models.Booking) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.bookings[b.ID] = b
}

// Count returns how many bookings exist
func (t *BookingTable) Count() int {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return len(t.s.bookings)
}

// PaymentTable implements the payment repository
type PaymentTable struct{ s *Store }

func (t *PaymentTable) Create(ctx context.Context, p *models.Payment) error {
	defer t.s.lock(ctx)()
	for _, existing := range t.s.payments {
		if existing.CorrelationKey == p.CorrelationKey {
			return fmt.Errorf("correlation key %s already in use", p.CorrelationKey)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.s.payments[p.ID] = *p
	return nil
}

func (t *PaymentTable) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	defer t.s.lock(ctx)()
	p, ok := t.s.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return &p, nil
}

func (t *PaymentTable) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return t.GetByID(ctx, id)
}

func (t *PaymentTable) GetByCorrelationKeyForUpdate(ctx context.Context, key string) (*models.Payment, error) {
	defer t.s.lock(ctx)()
	for _, p := range t.s.payments {
		if p.CorrelationKey == key {
			return &p, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (t *PaymentTable) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error) {
	defer t.s.lock(ctx)()
	out := []models.Payment{}
	for _, p := range t.s.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *PaymentTable) TransitionFromPending(ctx context.Context, id uuid.UUID, to models.PaymentStatus, code, txn *string) (bool, error) {
	defer t.s.lock(ctx)()
	p, ok := t.s.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	if to == models.PaymentStatusPaid {
		for _, other := range t.s.payments {
			if other.BookingID == p.BookingID && other.Status == models.PaymentStatusPaid {
				return false, fmt.Errorf("booking already has a paid payment: %w", models.ErrInvalidTransition)
			}
		}
	}
	now := time.Now()
	p.Status = to
	p.GatewayResponseCode = code
	p.GatewayTransactionID = txn
	p.CompletedAt = &now
	p.UpdatedAt = now
	t.s.payments[id] = p
	return true, nil
}

// Put stores a payment as is
func (t *PaymentTable) Put(p models.Payment) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.payments[p.ID] = p
}

// AuditTable implements the payment audit repository. Entries are kept on
// rollback, like audits written outside the transaction.
type AuditTable struct{ s *Store }

func (t *AuditTable) Log(_ context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return errors.New("audit entry cannot be nil")
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.audits = append(t.s.audits, *audit)
	return nil
}

func (t *AuditTable) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]models.PaymentAudit, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := []models.PaymentAudit{}
	for _, a := range t.s.audits {
		if a.PaymentID != nil && *a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *AuditTable) CountDuplicates(_ context.Context, correlationKey string) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	count := 0
	for _, a := range t.s.audits {
		if a.IsDuplicate && a.CorrelationKey != nil && *a.CorrelationKey == correlationKey {
			count++
		}
	}
	return count, nil
}

// ByType returns every audit entry of the given type
func (t *AuditTable) ByType(eventType models.PaymentEventType) []models.PaymentAudit {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := []models.PaymentAudit{}
	for _, a := range t.s.audits {
		if a.EventType == eventType {
			out = append(out, a)
		}
	}
	return out
}

// CatalogTable implements the catalog lookups
type CatalogTable struct{ s *Store }

func (t *CatalogTable) GetHotel(_ context.Context, id uuid.UUID) (*models.Hotel, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if h, ok := t.s.Hotels[id]; ok {
		return &h, nil
	}
	return nil, nil
}

func (t *CatalogTable) GetFlight(_ context.Context, id uuid.UUID) (*models.Flight, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if f, ok := t.s.Flights[id]; ok {
		return &f, nil
	}
	return nil, nil
}

func (t *CatalogTable) GetTour(_ context.Context, id uuid.UUID) (*models.Tour, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if tour, ok := t.s.Tours[id]; ok {
		return &tour, nil
	}
	return nil, nil
}

// RecordingPublisher collects published events
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Count returns how many events of eventType were published
func (p *RecordingPublisher) Count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// Total returns how many events were published
func (p *RecordingPublisher) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
