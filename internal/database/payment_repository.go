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

// PaymentRepository handles payment attempt database operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, booking_id, amount, currency, method, correlation_key, status,
	gateway_response_code, gateway_transaction_id, completed_at,
	created_at, updated_at`

// Create inserts a new payment attempt
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query := `
		INSERT INTO payments (
			id, booking_id, amount, currency, method, correlation_key, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		payment.ID, payment.BookingID, payment.Amount, payment.Currency,
		payment.Method, payment.CorrelationKey, payment.Status,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("correlation key %s already in use: %w", payment.CorrelationKey, err)
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, `SELECT`+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a payment by ID and locks its row
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, `SELECT`+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

// GetByCorrelationKeyForUpdate resolves a correlation key by exact match and
// locks the payment row
func (r *PaymentRepository) GetByCorrelationKeyForUpdate(ctx context.Context, key string) (*models.Payment, error) {
	return r.get(ctx, `SELECT`+paymentColumns+` FROM payments WHERE correlation_key = $1 FOR UPDATE`, key)
}

func (r *PaymentRepository) get(ctx context.Context, query string, arg interface{}) (*models.Payment, error) {
	var payment models.Payment
	err := sqlx.GetContext(ctx, executor(ctx, r.db), &payment, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &payment, nil
}

// ListByBooking lists all payment attempts of a booking, oldest first
func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	payments := []models.Payment{}
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &payments, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// TransitionFromPending moves a pending payment to a terminal status. It
// reports false when the payment had already left pending.
func (r *PaymentRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, to models.PaymentStatus, responseCode, transactionID *string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    gateway_response_code = COALESCE($3, gateway_response_code),
		    gateway_transaction_id = COALESCE($4, gateway_transaction_id),
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, id, to, responseCode, transactionID)
	if isUniqueViolation(err) {
		// one paid payment per booking
		return false, fmt.Errorf("booking already has a paid payment: %w", models.ErrInvalidTransition)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}
