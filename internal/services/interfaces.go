package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/travelhub/booking-engine/internal/models"
)

// BookingRepository persists bookings
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) (bool, error)
}

// PaymentRepository persists payment attempts
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByCorrelationKeyForUpdate(ctx context.Context, key string) (*models.Payment, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, to models.PaymentStatus, responseCode, transactionID *string) (bool, error)
}

// PaymentAuditRepository stores the payment audit trail
type PaymentAuditRepository interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentAudit, error)
	CountDuplicates(ctx context.Context, correlationKey string) (int, error)
}

// Catalog looks up hotel, flight and tour records. A missing record is
// returned as nil with no error.
type Catalog interface {
	GetHotel(ctx context.Context, id uuid.UUID) (*models.Hotel, error)
	GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error)
	GetTour(ctx context.Context, id uuid.UUID) (*models.Tour, error)
}

// TxRunner runs fn in a transaction carried on the context
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestMeta describes the HTTP request an operation came from
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
