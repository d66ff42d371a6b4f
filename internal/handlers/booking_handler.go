package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
	"github.com/travelhub/booking-engine/internal/services"
)

// BookingHandler handles customer booking operations
type BookingHandler struct {
	bookings *services.BookingService
	receipts *services.ReceiptService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings *services.BookingService, receipts *services.ReceiptService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		receipts: receipts,
		logger:   logger,
	}
}

// CreateBooking creates a booking from one or more catalog selections
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response, err := h.withServices(c, booking)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// ListBookings lists the caller's bookings, newest first
// @Router /api/v1/bookings [get]
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookings.ListForOwner(c.Request.Context(), actor.UserID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// GetBooking returns a booking with its services resolved against the
// current catalog
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response, err := h.withServices(c, booking)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// CancelBooking cancels a pending booking
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

// GetReceipt renders the PDF receipt of a paid booking
// @Router /api/v1/bookings/{id}/receipt [get]
func (h *BookingHandler) GetReceipt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	pdf, err := h.receipts.Render(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *BookingHandler) withServices(c *gin.Context, booking *models.Booking) (*models.BookingResponse, error) {
	refs, err := h.bookings.Services(c.Request.Context(), booking)
	if err != nil {
		return nil, err
	}
	views := make([]models.ServiceView, 0, len(refs))
	for _, ref := range refs {
		views = append(views, ref.View())
	}
	return &models.BookingResponse{Booking: booking, Services: views}, nil
}
