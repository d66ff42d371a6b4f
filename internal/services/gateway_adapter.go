package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/config"
	"github.com/travelhub/booking-engine/internal/models"
)

// Gateway parameter names
const (
	ParamMerchantID    = "merchant_id"
	ParamAmount        = "amount"
	ParamCurrency      = "currency"
	ParamOrderRef      = "order_ref"
	ParamOrderInfo     = "order_info"
	ParamReturnURL     = "return_url"
	ParamNotifyURL     = "notify_url"
	ParamCreatedAt     = "created_at"
	ParamMethod        = "method"
	ParamResponseCode  = "response_code"
	ParamTransactionID = "transaction_id"
	ParamSignature     = "signature"
)

const gatewayTimeLayout = "20060102150405"

// GatewayAdapter builds signed redirects to the hosted payment page and
// verifies the callbacks it sends back. Each adapter carries its own secret.
type GatewayAdapter struct {
	gatewayURL      string
	merchantID      string
	secret          []byte
	returnURL       string
	notifyURL       string
	minorUnitFactor int
	successCodes    map[string]bool
	logger          *logrus.Logger
	now             func() time.Time
}

// NewGatewayAdapter creates a GatewayAdapter from the payment config
func NewGatewayAdapter(cfg config.PaymentConfig, logger *logrus.Logger) *GatewayAdapter {
	codes := make(map[string]bool, len(cfg.SuccessCodes))
	for _, code := range cfg.SuccessCodes {
		codes[code] = true
	}
	factor := cfg.MinorUnitFactor
	if factor <= 0 {
		factor = 1
	}
	return &GatewayAdapter{
		gatewayURL:      cfg.GatewayURL,
		merchantID:      cfg.MerchantID,
		secret:          []byte(cfg.SigningSecret),
		returnURL:       cfg.ReturnURL,
		notifyURL:       cfg.NotifyURL,
		minorUnitFactor: factor,
		successCodes:    codes,
		logger:          logger,
		now:             time.Now,
	}
}

// IsConfigured reports whether the adapter can sign requests
func (g *GatewayAdapter) IsConfigured() bool {
	return g.merchantID != "" && len(g.secret) > 0 && g.gatewayURL != ""
}

// MinorUnits converts a major-unit amount into the gateway's integer units
func (g *GatewayAdapter) MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * float64(g.minorUnitFactor)))
}

// RedirectParams returns the signed parameter set for a payment
func (g *GatewayAdapter) RedirectParams(payment *models.Payment, booking *models.Booking) map[string]string {
	method := string(payment.Method)
	if method == "" {
		method = string(models.PaymentMethodCard)
	}
	params := map[string]string{
		ParamMerchantID: g.merchantID,
		ParamAmount:     strconv.FormatInt(g.MinorUnits(payment.Amount), 10),
		ParamCurrency:   payment.Currency,
		ParamOrderRef:   OrderRef(booking.ID, payment.CorrelationKey),
		ParamOrderInfo:  fmt.Sprintf("Payment for booking %s", booking.ID),
		ParamReturnURL:  g.returnURL,
		ParamNotifyURL:  g.notifyURL,
		ParamCreatedAt:  g.now().UTC().Format(gatewayTimeLayout),
		ParamMethod:     method,
	}
	params[ParamSignature] = g.Sign(params)
	return params
}

// BuildRedirect returns the hosted payment page URL for a payment
func (g *GatewayAdapter) BuildRedirect(payment *models.Payment, booking *models.Booking) (string, error) {
	if !g.IsConfigured() {
		return "", fmt.Errorf("payment gateway not configured: missing merchant credentials")
	}

	base, err := url.Parse(g.gatewayURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL: %w", err)
	}

	query := base.Query()
	for k, v := range g.RedirectParams(payment, booking) {
		query.Set(k, v)
	}
	base.RawQuery = query.Encode()

	g.logger.WithFields(logrus.Fields{
		"payment_id":      payment.ID,
		"booking_id":      booking.ID,
		"correlation_key": payment.CorrelationKey,
		"amount":          payment.Amount,
	}).Info("Payment redirect built")

	return base.String(), nil
}

// Sign computes the hex HMAC-SHA256 of the canonical form of params. The
// signature field itself is excluded.
func (g *GatewayAdapter) Sign(params map[string]string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature of params in constant time
func (g *GatewayAdapter) Verify(params map[string]string) bool {
	signature := params[ParamSignature]
	if signature == "" || params[ParamOrderRef] == "" || params[ParamResponseCode] == "" {
		return false
	}
	given, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(g.Sign(params))
	return hmac.Equal(given, expected)
}

// ParseNotification verifies a callback and extracts its fields. A bad
// signature yields ErrSignatureInvalid; an unusable order reference yields
// ErrPaymentNotFound.
func (g *GatewayAdapter) ParseNotification(params map[string]string, channel models.NotificationChannel) (*models.GatewayNotification, error) {
	if !g.Verify(params) {
		return nil, models.ErrSignatureInvalid
	}

	_, key, err := ParseOrderRef(params[ParamOrderRef])
	if err != nil {
		return nil, err
	}

	return &models.GatewayNotification{
		CorrelationKey: key,
		Reference:      params[ParamOrderRef],
		ResponseCode:   params[ParamResponseCode],
		TransactionID:  params[ParamTransactionID],
		Amount:         params[ParamAmount],
		Signature:      params[ParamSignature],
		Params:         params,
		Channel:        channel,
	}, nil
}

// IsSuccess reports whether code is one of the configured success codes
func (g *GatewayAdapter) IsSuccess(code string) bool {
	return g.successCodes[code]
}

// NewCorrelationKey returns a fresh ULID
func NewCorrelationKey() string {
	return ulid.Make().String()
}

// OrderRef is the reference sent to the gateway: booking id and correlation
// key joined by an underscore
func OrderRef(bookingID uuid.UUID, correlationKey string) string {
	return bookingID.String() + "_" + correlationKey
}

// ParseOrderRef splits a reference at its last underscore. The key must be a
// valid ULID.
func ParseOrderRef(ref string) (bookingPrefix, correlationKey string, err error) {
	idx := strings.LastIndex(ref, "_")
	if idx < 0 {
		return "", "", fmt.Errorf("%w: malformed order reference", models.ErrPaymentNotFound)
	}
	bookingPrefix, correlationKey = ref[:idx], ref[idx+1:]
	if _, err := ulid.ParseStrict(correlationKey); err != nil {
		return "", "", fmt.Errorf("%w: malformed correlation key", models.ErrPaymentNotFound)
	}
	return bookingPrefix, correlationKey, nil
}

// canonicalize renders params as a sorted, percent-encoded query string so
// that no value can smuggle in a separator
func canonicalize(params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		if k != ParamSignature {
			values.Set(k, v)
		}
	}
	return values.Encode()
}
