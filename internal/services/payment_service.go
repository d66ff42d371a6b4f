package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/events"
	"github.com/travelhub/booking-engine/internal/models"
)

// PaymentService starts payment attempts and handles admin overrides
type PaymentService struct {
	payments  PaymentRepository
	bookings  *BookingService
	tx        TxRunner
	gateway   *GatewayAdapter
	audit     *PaymentAuditService
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	payments PaymentRepository,
	bookings *BookingService,
	tx TxRunner,
	gateway *GatewayAdapter,
	audit *PaymentAuditService,
	publisher events.Publisher,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		bookings:  bookings,
		tx:        tx,
		gateway:   gateway,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// Initiate creates a pending payment for a pending booking and returns the
// signed gateway redirect
func (s *PaymentService) Initiate(ctx context.Context, bookingID uuid.UUID, actor models.Actor, method models.PaymentMethod, meta RequestMeta) (*models.PaymentRedirect, error) {
	if !s.gateway.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing merchant credentials")
	}
	if method == "" {
		method = models.PaymentMethodCard
	}

	var booking *models.Booking
	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !booking.CanBeAccessedBy(actor) {
			return models.ErrForbidden
		}
		if booking.Status != models.BookingStatusPending {
			return fmt.Errorf("%w: booking is %s", models.ErrInvalidTransition, booking.Status)
		}

		payment = &models.Payment{
			ID:             uuid.New(),
			BookingID:      booking.ID,
			Amount:         booking.TotalAmount,
			Currency:       booking.Currency,
			Method:         method,
			CorrelationKey: NewCorrelationKey(),
			Status:         models.PaymentStatusPending,
		}
		return s.payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	redirectURL, err := s.gateway.BuildRedirect(payment, booking)
	if err != nil {
		return nil, err
	}

	s.audit.RedirectIssued(ctx, payment, s.gateway.MinorUnits(payment.Amount), actor, meta)
	s.logger.WithFields(logrus.Fields{
		"payment_id":      payment.ID,
		"booking_id":      booking.ID,
		"correlation_key": payment.CorrelationKey,
	}).Info("Payment initiated")

	return &models.PaymentRedirect{Payment: payment, RedirectURL: redirectURL}, nil
}

// ListForBooking lists every attempt of a booking the actor may see
func (s *PaymentService) ListForBooking(ctx context.Context, bookingID uuid.UUID, actor models.Actor) ([]models.Payment, error) {
	if _, err := s.bookings.Get(ctx, bookingID, actor); err != nil {
		return nil, err
	}
	return s.payments.ListByBooking(ctx, bookingID)
}

// SetStatus is the admin override. Marking a payment paid also marks its
// booking paid in the same transaction.
func (s *PaymentService) SetStatus(ctx context.Context, id uuid.UUID, target models.PaymentStatus, actor models.Actor, meta RequestMeta) (*models.Payment, error) {
	if !actor.IsAdmin {
		return nil, models.ErrForbidden
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, target)
	}

	started := time.Now()
	var payment *models.Payment
	var booking *models.Booking
	var changed, bookingChanged bool

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.payments.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == target {
			payment = current
			return nil
		}
		if current.Status.IsTerminal() {
			return fmt.Errorf("%w: payment is %s", models.ErrInvalidTransition, current.Status)
		}

		ok, err := s.payments.TransitionFromPending(ctx, id, target, nil, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %s left pending concurrently", models.ErrInvalidTransition, id)
		}

		if target == models.PaymentStatusPaid {
			booking, bookingChanged, err = s.bookings.markPaid(ctx, current.BookingID)
			if err != nil {
				return err
			}
		}

		now := time.Now()
		updated := *current
		updated.Status = target
		updated.CompletedAt = &now
		updated.UpdatedAt = now
		payment = &updated
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.audit.AdminOverride(ctx, payment, actor, started, meta)
		s.logger.WithFields(logrus.Fields{
			"payment_id": id,
			"admin_id":   actor.UserID,
			"status":     target,
		}).Info("Payment status overridden by admin")

		eventType := events.EventPaymentFailed
		if target == models.PaymentStatusPaid {
			eventType = events.EventPaymentPaid
		}
		publishPaymentEvent(ctx, s.publisher, s.logger, eventType, payment, string(models.PaymentSourceAdmin))
	}
	if bookingChanged {
		s.bookings.publish(ctx, events.EventBookingPaid, booking)
	}
	return payment, nil
}

// AuditTrail returns the audit entries of a payment. Admin only.
func (s *PaymentService) AuditTrail(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.PaymentAuditTrail, error) {
	if !actor.IsAdmin {
		return nil, models.ErrForbidden
	}
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.audit.Trail(ctx, payment)
}
