package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
	"github.com/travelhub/booking-engine/internal/utils"
)

// PaymentAuditService writes the payment audit trail. A failed write is
// logged and never fails the operation being audited.
type PaymentAuditService struct {
	repo    PaymentAuditRepository
	enabled bool
	logger  *logrus.Logger
}

// NewPaymentAuditService creates a new audit service
func NewPaymentAuditService(repo PaymentAuditRepository, enabled bool, logger *logrus.Logger) *PaymentAuditService {
	return &PaymentAuditService{
		repo:    repo,
		enabled: enabled,
		logger:  logger,
	}
}

// Record stores one entry, attaching request metadata
func (s *PaymentAuditService) Record(ctx context.Context, audit *models.PaymentAudit, meta RequestMeta) {
	if !s.enabled {
		return
	}
	var device models.JSONB
	if meta.UserAgent != "" {
		device = models.JSONB(utils.ParseUserAgent(meta.UserAgent).Map())
	}
	audit.SetMetadata(meta.IPAddress, meta.UserAgent, device)

	if err := s.repo.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"audit_id":   audit.ID,
		}).Error("Payment audit entry lost")
	}
}

// RedirectIssued records a new payment attempt being sent to the gateway
func (s *PaymentAuditService) RedirectIssued(ctx context.Context, payment *models.Payment, expectedMinor int64, actor models.Actor, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventRedirectIssued, models.PaymentSourceBackend).
		SetPayment(payment).
		SetActor(actor.UserID)
	audit.ExpectedAmount = &expectedMinor
	s.Record(ctx, audit, meta)
}

// SignatureRejected records a callback whose signature did not verify. Only
// the order reference and response code are kept.
func (s *PaymentAuditService) SignatureRejected(ctx context.Context, params map[string]string, channel models.NotificationChannel, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventSignatureRejected, models.SourceForChannel(channel)).
		SetResponseCode(params[ParamResponseCode]).
		SetRequestPayload(map[string]string{ParamOrderRef: params[ParamOrderRef]})
	audit.SetError(models.ErrSignatureInvalid)
	s.Record(ctx, audit, meta)
}

// AdminOverride records an administrative payment status change
func (s *PaymentAuditService) AdminOverride(ctx context.Context, payment *models.Payment, actor models.Actor, started time.Time, meta RequestMeta) {
	audit := models.NewPaymentAudit(models.PaymentEventAdminOverride, models.PaymentSourceAdmin).
		SetPayment(payment).
		SetActor(actor.UserID).
		SetProcessingTime(started)
	s.Record(ctx, audit, meta)
}

// Trail returns the audit entries of a payment, oldest first, with the
// number of replayed callbacks seen for its correlation key
func (s *PaymentAuditService) Trail(ctx context.Context, payment *models.Payment) (*models.PaymentAuditTrail, error) {
	audits, err := s.repo.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	duplicates, err := s.repo.CountDuplicates(ctx, payment.CorrelationKey)
	if err != nil {
		return nil, err
	}
	return &models.PaymentAuditTrail{
		PaymentID:      payment.ID,
		CorrelationKey: payment.CorrelationKey,
		Audits:         audits,
		Count:          len(audits),
		Duplicates:     duplicates,
	}, nil
}
