package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/middleware"
	"github.com/travelhub/booking-engine/internal/models"
	"github.com/travelhub/booking-engine/internal/services"
	"github.com/travelhub/booking-engine/internal/utils"
)

// respondError maps a domain error onto an HTTP status and error code
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case errors.Is(err, models.ErrInvalidDateRange),
		errors.Is(err, models.ErrNoSelections),
		errors.Is(err, models.ErrBundleRequired),
		errors.Is(err, models.ErrInvalidStatus):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, models.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, models.ErrServiceNotFound):
		status, code = http.StatusNotFound, "service_not_found"
	case errors.Is(err, models.ErrBookingNotFound):
		status, code = http.StatusNotFound, "booking_not_found"
	case errors.Is(err, models.ErrPaymentNotFound):
		status, code = http.StatusNotFound, "payment_not_found"
	case errors.Is(err, models.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	}

	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(status, gin.H{
			"error":   code,
			"message": "An internal error occurred",
		})
		return
	}

	c.JSON(status, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}

// respondBindingError reports an invalid request body
func respondBindingError(c *gin.Context, err error) {
	body := gin.H{
		"error":   "invalid_request",
		"message": "Invalid request body",
	}
	if details := validationDetails(err); details != nil {
		body["details"] = details
	} else {
		body["message"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// requireActor returns the caller identity or writes 401
func requireActor(c *gin.Context) (models.Actor, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Authentication required",
		})
		return models.Actor{}, false
	}
	return userCtx.Actor(), true
}

// parseIDParam reads a UUID path parameter or writes 400
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}

// requestMeta extracts caller network details for audit entries
func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}
