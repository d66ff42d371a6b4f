package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
	"github.com/travelhub/booking-engine/internal/services"
)

// Result page statuses
const (
	resultPaid    = "paid"
	resultFailed  = "failed"
	resultPending = "pending"
	resultError   = "error"
)

// PaymentHandler handles payment initiation and both gateway channels
type PaymentHandler struct {
	payments      *services.PaymentService
	recon         *services.ReconciliationService
	resultPageURL string
	logger        *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	payments *services.PaymentService,
	recon *services.ReconciliationService,
	resultPageURL string,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		recon:         recon,
		resultPageURL: resultPageURL,
		logger:        logger,
	}
}

// InitiatePayment opens a payment attempt and returns the signed gateway URL
// @Router /api/v1/bookings/{id}/payments [post]
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.InitiatePaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
	}

	redirect, err := h.payments.Initiate(c.Request.Context(), bookingID, actor, req.Method, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, redirect)
}

// ListPayments lists every payment attempt of a booking
// @Router /api/v1/bookings/{id}/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.payments.ListForBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"count":    len(payments),
	})
}

// HandleReturn is the interactive channel: the customer's browser comes back
// from the gateway and is redirected to the result page
// @Router /api/v1/payments/return [get]
func (h *PaymentHandler) HandleReturn(c *gin.Context) {
	params := flattenValues(c.Request.URL.Query())

	result, err := h.recon.HandleCallback(c.Request.Context(), params, models.ChannelInteractive, requestMeta(c))
	if err != nil {
		status, reference := resultError, params[services.ParamOrderRef]
		switch {
		case errors.Is(err, models.ErrSignatureInvalid):
			reference = ""
		case errors.Is(err, models.ErrInvalidTransition):
			status = resultPending
		}
		c.Redirect(http.StatusFound, h.resultURL(status, reference))
		return
	}

	status := resultPending
	switch result.Payment.Status {
	case models.PaymentStatusPaid:
		status = resultPaid
	case models.PaymentStatusFailed:
		status = resultFailed
	}
	c.Redirect(http.StatusFound, h.resultURL(status, result.Payment.BookingID.String()))
}

// HandleNotify is the out-of-band channel. The gateway always receives a
// structured acknowledgement.
// @Router /api/v1/payments/notify [get]
// @Router /api/v1/payments/notify [post]
func (h *PaymentHandler) HandleNotify(c *gin.Context) {
	params, err := notificationParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NotificationAck{
			Code:    models.AckCodeInvalidSignature,
			Message: "Malformed notification",
		})
		return
	}

	result, err := h.recon.HandleCallback(c.Request.Context(), params, models.ChannelOutOfBand, requestMeta(c))
	status, ack := acknowledge(result, err)
	c.JSON(status, ack)
}

func acknowledge(result *services.ReconcileResult, err error) (int, models.NotificationAck) {
	switch {
	case err == nil && result.Outcome == models.OutcomeReplay:
		return http.StatusOK, models.NotificationAck{Code: models.AckCodeAccepted, Message: "Notification already processed"}
	case err == nil:
		return http.StatusOK, models.NotificationAck{Code: models.AckCodeAccepted, Message: "Confirm success"}
	case errors.Is(err, models.ErrSignatureInvalid):
		return http.StatusBadRequest, models.NotificationAck{Code: models.AckCodeInvalidSignature, Message: "Invalid signature"}
	case errors.Is(err, models.ErrPaymentNotFound):
		return http.StatusOK, models.NotificationAck{Code: models.AckCodePaymentNotFound, Message: "Payment not found"}
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, models.NotificationAck{Code: models.AckCodeInvalidTransition, Message: "Payment cannot be applied"}
	default:
		return http.StatusInternalServerError, models.NotificationAck{Code: models.AckCodeInternalError, Message: "Internal error"}
	}
}

func (h *PaymentHandler) resultURL(status, reference string) string {
	u, err := url.Parse(h.resultPageURL)
	if err != nil {
		h.logger.WithError(err).Error("Invalid result page URL")
		return "/"
	}
	q := u.Query()
	q.Set("status", status)
	if reference != "" {
		q.Set("reference", reference)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// notificationParams collects callback parameters from the query string, a
// form body or a flat JSON object
func notificationParams(c *gin.Context) (map[string]string, error) {
	if c.Request.Method == http.MethodPost && strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		if body == nil {
			body = map[string]string{}
		}
		for k, v := range flattenValues(c.Request.URL.Query()) {
			if _, exists := body[k]; !exists {
				body[k] = v
			}
		}
		return body, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return flattenValues(c.Request.Form), nil
}

func flattenValues(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
