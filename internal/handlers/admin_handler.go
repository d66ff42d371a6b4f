package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
	"github.com/travelhub/booking-engine/internal/services"
)

// AdminHandler handles administrative status overrides and audit queries
type AdminHandler struct {
	bookings *services.BookingService
	payments *services.PaymentService
	logger   *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(bookings *services.BookingService, payments *services.PaymentService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		bookings: bookings,
		payments: payments,
		logger:   logger,
	}
}

// UpdateBookingStatus overrides the status of a booking
// @Router /api/v1/admin/bookings/{id}/status [put]
func (h *AdminHandler) UpdateBookingStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	booking, err := h.bookings.SetStatus(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// UpdatePaymentStatus overrides the status of a payment attempt. A paid
// payment also marks its booking paid.
// @Router /api/v1/admin/payments/{id}/status [put]
func (h *AdminHandler) UpdatePaymentStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	payment, err := h.payments.SetStatus(c.Request.Context(), id, req.Status, actor, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// GetPaymentAudit returns the audit trail of a payment
// @Router /api/v1/admin/payments/{id}/audit [get]
func (h *AdminHandler) GetPaymentAudit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	trail, err := h.payments.AuditTrail(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trail)
}
