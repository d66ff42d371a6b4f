package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/travelhub/booking-engine/internal/models"
)

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, owner_id, selections, is_bundle, stay_start, stay_end,
	total_amount, currency, warnings, status,
	paid_at, cancelled_at, created_at, updated_at`

// Create inserts a new booking
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query := `
		INSERT INTO bookings (
			id, owner_id, selections, is_bundle, stay_start, stay_end,
			total_amount, currency, warnings, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		booking.ID, booking.OwnerID, booking.Selections, booking.IsBundle,
		booking.StayStart, booking.StayEnd,
		booking.TotalAmount, booking.Currency, booking.Warnings, booking.Status,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a booking and locks its row until the
// surrounding transaction ends
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := sqlx.GetContext(ctx, executor(ctx, r.db), &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}
	return &booking, nil
}

// ListByOwner lists the bookings of one owner, newest first
func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	bookings := []models.Booking{}
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &bookings, query, ownerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus moves a booking from one status to another. It reports false
// when the booking was no longer in the expected status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3,
		    paid_at = CASE WHEN $3 = 'paid' THEN NOW() ELSE paid_at END,
		    cancelled_at = CASE WHEN $3 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}
