package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventRedirectIssued         PaymentEventType = "redirect_issued"
	PaymentEventNotificationReceived   PaymentEventType = "notification_received"
	PaymentEventSignatureRejected      PaymentEventType = "signature_rejected"
	PaymentEventPaymentNotFound        PaymentEventType = "payment_not_found"
	PaymentEventReplayIgnored          PaymentEventType = "replay_ignored"
	PaymentEventSuccess                PaymentEventType = "payment_success"
	PaymentEventFailed                 PaymentEventType = "payment_failed"
	PaymentEventBookingPaid            PaymentEventType = "booking_paid"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventAdminOverride          PaymentEventType = "admin_override"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend     PaymentEventSource = "backend"
	PaymentSourceInteractive PaymentEventSource = "gateway_return"
	PaymentSourceOutOfBand   PaymentEventSource = "gateway_notify"
	PaymentSourceAdmin       PaymentEventSource = "admin"
)

// SourceForChannel maps a notification channel to its audit source
func SourceForChannel(ch NotificationChannel) PaymentEventSource {
	if ch == ChannelInteractive {
		return PaymentSourceInteractive
	}
	return PaymentSourceOutOfBand
}

// PaymentAudit is an immutable audit log entry for a gateway interaction
type PaymentAudit struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	PaymentID      *uuid.UUID `json:"payment_id,omitempty" db:"payment_id"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	CorrelationKey *string    `json:"correlation_key,omitempty" db:"correlation_key"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amounts in minor units as exchanged with the gateway
	ExpectedAmount *int64  `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *int64  `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool   `json:"amounts_match,omitempty" db:"amounts_match"`
	ResponseCode   *string `json:"response_code,omitempty" db:"response_code"`
	PaymentStatus  *string `json:"payment_status,omitempty" db:"payment_status"`

	RequestPayload JSONB `json:"request_payload,omitempty" db:"request_payload"`
	DeviceInfo     JSONB `json:"device_info,omitempty" db:"device_info"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	IsDuplicate  bool    `json:"is_duplicate" db:"is_duplicate"`

	IPAddress *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string    `json:"user_agent,omitempty" db:"user_agent"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`

	ProcessingTimeMs *int      `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// PaymentAuditTrail is the admin view of a payment's audit history
type PaymentAuditTrail struct {
	PaymentID      uuid.UUID      `json:"payment_id"`
	CorrelationKey string         `json:"correlation_key"`
	Audits         []PaymentAudit `json:"audits"`
	Count          int            `json:"count"`
	Duplicates     int            `json:"duplicates"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetPayment links the audit to a payment and its booking
func (pa *PaymentAudit) SetPayment(p *Payment) *PaymentAudit {
	if p == nil {
		return pa
	}
	pa.PaymentID = &p.ID
	pa.BookingID = &p.BookingID
	pa.CorrelationKey = &p.CorrelationKey
	status := string(p.Status)
	pa.PaymentStatus = &status
	return pa
}

// SetCorrelationKey sets the key reported by the gateway
func (pa *PaymentAudit) SetCorrelationKey(key string) *PaymentAudit {
	if key != "" {
		pa.CorrelationKey = &key
	}
	return pa
}

// SetAmounts sets and compares amounts, returning whether they match
func (pa *PaymentAudit) SetAmounts(expected, received int64) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetResponseCode sets the gateway response code
func (pa *PaymentAudit) SetResponseCode(code string) *PaymentAudit {
	if code != "" {
		pa.ResponseCode = &code
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
	return pa
}

// SetRequestPayload stores the parameters exchanged with the gateway
func (pa *PaymentAudit) SetRequestPayload(params map[string]string) *PaymentAudit {
	pa.RequestPayload = StringMapToJSONB(params)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string, device JSONB) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	pa.DeviceInfo = device
	return pa
}

// SetActor records the admin or owner that triggered the event
func (pa *PaymentAudit) SetActor(actorID uuid.UUID) *PaymentAudit {
	pa.ActorID = &actorID
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a replay of an already applied one
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
