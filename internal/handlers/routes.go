package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/travelhub/booking-engine/internal/middleware"
	"github.com/travelhub/booking-engine/pkg/jwt"
)

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Health   *HealthHandler
	Bookings *BookingHandler
	Payments *PaymentHandler
	Admin    *AdminHandler
}

// RegisterRoutes mounts the health check and the /api/v1 routes. auth must
// populate the user context.
func RegisterRoutes(router *gin.Engine, h Handlers, auth gin.HandlerFunc) {
	router.GET("/health", h.Health.Health)

	v1 := router.Group("/api/v1")
	{
		// Gateway channels are authenticated by signature, not by token
		payments := v1.Group("/payments")
		{
			payments.GET("/return", h.Payments.HandleReturn)
			payments.GET("/notify", h.Payments.HandleNotify)
			payments.POST("/notify", h.Payments.HandleNotify)
		}

		bookings := v1.Group("/bookings")
		bookings.Use(auth)
		{
			bookings.POST("", h.Bookings.CreateBooking)
			bookings.GET("", h.Bookings.ListBookings)
			bookings.GET("/:id", h.Bookings.GetBooking)
			bookings.POST("/:id/cancel", h.Bookings.CancelBooking)
			bookings.GET("/:id/receipt", h.Bookings.GetReceipt)
			bookings.POST("/:id/payments", h.Payments.InitiatePayment)
			bookings.GET("/:id/payments", h.Payments.ListPayments)
		}

		admin := v1.Group("/admin")
		admin.Use(auth, middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.PUT("/bookings/:id/status", h.Admin.UpdateBookingStatus)
			admin.PUT("/payments/:id/status", h.Admin.UpdatePaymentStatus)
			admin.GET("/payments/:id/audit", h.Admin.GetPaymentAudit)
		}
	}
}
