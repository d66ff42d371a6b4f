package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/events"
	"github.com/travelhub/booking-engine/internal/models"
)

// ReconcileResult is what applying a gateway notification did
type ReconcileResult struct {
	Outcome models.ReconcileOutcome
	Payment *models.Payment
	Booking *models.Booking
}

// ReconciliationService applies gateway notifications from both channels.
// Each payment reaches a terminal status exactly once no matter how many
// times or in which order the channels report it.
type ReconciliationService struct {
	payments  PaymentRepository
	bookings  *BookingService
	tx        TxRunner
	gateway   *GatewayAdapter
	audit     *PaymentAuditService
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	payments PaymentRepository,
	bookings *BookingService,
	tx TxRunner,
	gateway *GatewayAdapter,
	audit *PaymentAuditService,
	publisher events.Publisher,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		payments:  payments,
		bookings:  bookings,
		tx:        tx,
		gateway:   gateway,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleCallback verifies raw callback parameters and reconciles them.
// Nothing is mutated when verification fails.
func (s *ReconciliationService) HandleCallback(ctx context.Context, params map[string]string, channel models.NotificationChannel, meta RequestMeta) (*ReconcileResult, error) {
	notification, err := s.gateway.ParseNotification(params, channel)
	if err != nil {
		if errors.Is(err, models.ErrSignatureInvalid) {
			s.logger.WithFields(logrus.Fields{
				"channel":   channel,
				"order_ref": params[ParamOrderRef],
				"ip":        meta.IPAddress,
			}).Warn("Gateway callback rejected: invalid signature")
			s.audit.SignatureRejected(ctx, params, channel, meta)
			return nil, err
		}
		s.auditNotFound(ctx, params[ParamOrderRef], params[ParamResponseCode], channel, err, meta)
		return nil, err
	}
	return s.Reconcile(ctx, notification, meta)
}

// Reconcile applies a verified notification. The payment row is locked and
// moved out of pending with a compare-and-set, and a successful payment marks
// its booking paid in the same transaction. Events are published only after
// commit.
func (s *ReconciliationService) Reconcile(ctx context.Context, n *models.GatewayNotification, meta RequestMeta) (*ReconcileResult, error) {
	started := time.Now()
	result := &ReconcileResult{}
	var bookingChanged bool

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		payment, err := s.payments.GetByCorrelationKeyForUpdate(ctx, n.CorrelationKey)
		if err != nil {
			return err
		}
		result.Payment = payment

		if prefix, _, err := ParseOrderRef(n.Reference); err == nil && prefix != "" && prefix != payment.BookingID.String() {
			return fmt.Errorf("%w: reference does not belong to booking %s", models.ErrPaymentNotFound, payment.BookingID)
		}

		if payment.Status.IsTerminal() {
			result.Outcome = models.OutcomeReplay
			return nil
		}

		target := models.PaymentStatusFailed
		result.Outcome = models.OutcomeFailed
		if s.gateway.IsSuccess(n.ResponseCode) {
			target = models.PaymentStatusPaid
			result.Outcome = models.OutcomePaid
		}

		ok, err := s.payments.TransitionFromPending(ctx, payment.ID, target, optional(n.ResponseCode), optional(n.TransactionID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %s left pending concurrently", models.ErrInvalidTransition, payment.ID)
		}

		now := time.Now()
		applied := *payment
		applied.Status = target
		applied.GatewayResponseCode = optional(n.ResponseCode)
		applied.GatewayTransactionID = optional(n.TransactionID)
		applied.CompletedAt = &now
		applied.UpdatedAt = now

		if target == models.PaymentStatusPaid {
			result.Booking, bookingChanged, err = s.bookings.markPaid(ctx, payment.BookingID)
			if err != nil {
				return err
			}
		}
		result.Payment = &applied
		return nil
	})

	s.auditOutcome(ctx, n, result, bookingChanged, err, started, meta)

	if err != nil {
		fields := logrus.Fields{
			"correlation_key": n.CorrelationKey,
			"channel":         n.Channel,
			"response_code":   n.ResponseCode,
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			s.logger.WithError(err).WithFields(fields).Error("Reconciliation mismatch, manual review required")
		} else {
			s.logger.WithError(err).WithFields(fields).Warn("Reconciliation failed")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": result.Payment.ID,
		"booking_id": result.Payment.BookingID,
		"outcome":    result.Outcome,
		"channel":    n.Channel,
	}).Info("Gateway notification reconciled")

	if result.Outcome != models.OutcomeReplay {
		s.publishPayment(ctx, result.Payment, n)
	}
	if bookingChanged {
		s.bookings.publish(ctx, events.EventBookingPaid, result.Booking)
	}
	return result, nil
}

func (s *ReconciliationService) auditOutcome(ctx context.Context, n *models.GatewayNotification, result *ReconcileResult, bookingChanged bool, err error, started time.Time, meta RequestMeta) {
	source := models.SourceForChannel(n.Channel)

	if err != nil && result.Payment == nil {
		s.auditNotFound(ctx, n.Reference, n.ResponseCode, n.Channel, err, meta)
		return
	}

	var eventType models.PaymentEventType
	switch {
	case err != nil && errors.Is(err, models.ErrInvalidTransition):
		eventType = models.PaymentEventReconciliationMismatch
	case errors.Is(err, models.ErrPaymentNotFound):
		eventType = models.PaymentEventPaymentNotFound
	case err != nil:
		eventType = models.PaymentEventError
	case result.Outcome == models.OutcomeReplay:
		eventType = models.PaymentEventReplayIgnored
	case result.Outcome == models.OutcomePaid:
		eventType = models.PaymentEventSuccess
	default:
		eventType = models.PaymentEventFailed
	}

	audit := models.NewPaymentAudit(eventType, source).
		SetPayment(result.Payment).
		SetResponseCode(n.ResponseCode).
		SetRequestPayload(withoutSignature(n.Params)).
		SetError(err).
		SetProcessingTime(started)
	if received, perr := strconv.ParseInt(n.Amount, 10, 64); perr == nil {
		if !audit.SetAmounts(s.gateway.MinorUnits(result.Payment.Amount), received) {
			s.logger.WithFields(logrus.Fields{
				"payment_id": result.Payment.ID,
				"expected":   *audit.ExpectedAmount,
				"received":   received,
			}).Warn("Gateway reported a different amount")
		}
	}
	if eventType == models.PaymentEventReplayIgnored {
		audit.MarkAsDuplicate()
	}
	s.audit.Record(ctx, audit, meta)

	if bookingChanged && err == nil {
		bookingAudit := models.NewPaymentAudit(models.PaymentEventBookingPaid, source).SetPayment(result.Payment)
		s.audit.Record(ctx, bookingAudit, meta)
	}
}

func (s *ReconciliationService) auditNotFound(ctx context.Context, reference, code string, channel models.NotificationChannel, err error, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventPaymentNotFound, models.SourceForChannel(channel)).
		SetResponseCode(code).
		SetRequestPayload(map[string]string{ParamOrderRef: reference}).
		SetError(err)
	if _, key, perr := ParseOrderRef(reference); perr == nil {
		audit.SetCorrelationKey(key)
	}
	s.audit.Record(ctx, audit, meta)
}

func (s *ReconciliationService) publishPayment(ctx context.Context, payment *models.Payment, n *models.GatewayNotification) {
	eventType := events.EventPaymentFailed
	if payment.Status == models.PaymentStatusPaid {
		eventType = events.EventPaymentPaid
	}
	publishPaymentEvent(ctx, s.publisher, s.logger, eventType, payment, string(n.Channel))
}

func publishPaymentEvent(ctx context.Context, publisher events.Publisher, logger *logrus.Logger, eventType string, payment *models.Payment, channel string) {
	data := events.PaymentData{
		PaymentID: payment.ID.String(),
		BookingID: payment.BookingID.String(),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Channel:   channel,
	}
	if payment.GatewayResponseCode != nil {
		data.ResponseCode = *payment.GatewayResponseCode
	}
	if payment.GatewayTransactionID != nil {
		data.TransactionID = *payment.GatewayTransactionID
	}
	if payment.CompletedAt != nil {
		data.CompletedAt = *payment.CompletedAt
	}

	event, err := events.NewEvent(eventType, events.AggregatePayment, payment.ID.String(), data)
	if err == nil {
		err = publisher.Publish(ctx, event.WithCorrelation(payment.CorrelationKey))
	}
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"event_type": eventType,
		}).Error("Failed to publish payment event")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func withoutSignature(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if k != ParamSignature {
			out[k] = v
		}
	}
	return out
}
