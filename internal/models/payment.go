package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a single payment attempt
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsValid reports whether s belongs to the payment status enum
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the payment can no longer change
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// PaymentMethod is how the customer intends to pay
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodWallet       PaymentMethod = "wallet"
)

// Payment is one attempt to pay a booking through the gateway
type Payment struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	BookingID            uuid.UUID     `json:"booking_id" db:"booking_id"`
	Amount               float64       `json:"amount" db:"amount"`
	Currency             string        `json:"currency" db:"currency"`
	Method               PaymentMethod `json:"method" db:"method"`
	CorrelationKey       string        `json:"correlation_key" db:"correlation_key"`
	Status               PaymentStatus `json:"status" db:"status"`
	GatewayResponseCode  *string       `json:"gateway_response_code,omitempty" db:"gateway_response_code"`
	GatewayTransactionID *string       `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// NotificationChannel is the path a gateway notification arrived on
type NotificationChannel string

const (
	ChannelInteractive NotificationChannel = "interactive"
	ChannelOutOfBand   NotificationChannel = "out_of_band"
)

// GatewayNotification is a verified callback from the payment gateway. It is
// never persisted as an entity.
type GatewayNotification struct {
	CorrelationKey string
	Reference      string
	ResponseCode   string
	TransactionID  string
	Amount         string
	Signature      string
	Params         map[string]string
	Channel        NotificationChannel
}

// ReconcileOutcome describes what a notification did
type ReconcileOutcome string

const (
	OutcomePaid   ReconcileOutcome = "paid"
	OutcomeFailed ReconcileOutcome = "failed"
	OutcomeReplay ReconcileOutcome = "replay"
)

// InitiatePaymentRequest is the payload for starting a payment attempt
type InitiatePaymentRequest struct {
	Method PaymentMethod `json:"method" binding:"omitempty,oneof=card bank_transfer wallet"`
}

// PaymentRedirect is returned when a payment attempt is created
type PaymentRedirect struct {
	Payment     *Payment `json:"payment"`
	RedirectURL string   `json:"redirect_url"`
}

// UpdatePaymentStatusRequest is the admin payment status override payload
type UpdatePaymentStatusRequest struct {
	Status PaymentStatus `json:"status" binding:"required,payment_status"`
}

// NotificationAck is the structured acknowledgement sent on the out-of-band
// channel
type NotificationAck struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	AckCodeAccepted          = "00"
	AckCodePaymentNotFound   = "01"
	AckCodeInvalidTransition = "02"
	AckCodeInvalidSignature  = "97"
	AckCodeInternalError     = "99"
)
