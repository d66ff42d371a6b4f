package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry. It always writes on the pool, never
// on a transaction from ctx, so entries survive a rolled back reconciliation.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, payment_id, booking_id, correlation_key,
			event_type, event_source,
			expected_amount, received_amount, amounts_match,
			response_code, payment_status,
			request_payload, device_info,
			error_message, is_duplicate,
			ip_address, user_agent, actor_id,
			processing_time_ms, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11,
			$12, $13,
			$14, $15,
			$16, $17, $18,
			$19, $20
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.PaymentID, audit.BookingID, audit.CorrelationKey,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.ResponseCode, audit.PaymentStatus,
		audit.RequestPayload, audit.DeviceInfo,
		audit.ErrorMessage, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.ActorID,
		audit.ProcessingTimeMs, audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":      audit.EventType,
			"correlation_key": audit.CorrelationKey,
		}).Error("Failed to write payment audit entry")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// ListByPayment retrieves all audit entries for a payment, oldest first
func (r *PaymentAuditRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `
		SELECT * FROM payment_audits
		WHERE payment_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, paymentID); err != nil {
		return nil, fmt.Errorf("failed to get audits by payment: %w", err)
	}
	return audits, nil
}

// CountDuplicates returns how many replays were recorded for a correlation key
func (r *PaymentAuditRepository) CountDuplicates(ctx context.Context, correlationKey string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM payment_audits
		WHERE correlation_key = $1
		AND is_duplicate = TRUE`

	if err := r.db.GetContext(ctx, &count, query, correlationKey); err != nil {
		return 0, fmt.Errorf("failed to count duplicates: %w", err)
	}
	return count, nil
}
