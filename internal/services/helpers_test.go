package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/travelhub/booking-engine/internal/config"
	"github.com/travelhub/booking-engine/internal/models"
	"github.com/travelhub/booking-engine/internal/testutil"
)

type testEnv struct {
	store     *testutil.Store
	publisher *testutil.RecordingPublisher
	gateway   *GatewayAdapter
	bookings  *BookingService
	payments  *PaymentService
	recon     *ReconciliationService
	receipts  *ReceiptService

	owner models.Actor
	admin models.Actor
	hotel models.Hotel
	tour  models.Tour
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		GatewayURL:      "https://pay.example.com/checkout",
		MerchantID:      "M001",
		SigningSecret:   "test-signing-secret",
		ReturnURL:       "https://api.example.com/api/v1/payments/return",
		NotifyURL:       "https://api.example.com/api/v1/payments/notify",
		ResultPageURL:   "https://app.example.com/payment-result",
		Currency:        "VND",
		MinorUnitFactor: 100,
		SuccessCodes:    []string{"00"},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	store := testutil.NewStore()
	publisher := &testutil.RecordingPublisher{}

	aggregator := NewPriceAggregator(store.Catalog(), true, logger)
	bookings := NewBookingService(store.Bookings(), store, aggregator, publisher, "VND", logger)
	gateway := NewGatewayAdapter(testPaymentConfig(), logger)
	audit := NewPaymentAuditService(store.Audits(), true, logger)

	env := &testEnv{
		store:     store,
		publisher: publisher,
		gateway:   gateway,
		bookings:  bookings,
		payments:  NewPaymentService(store.Payments(), bookings, store, gateway, audit, publisher, logger),
		recon:     NewReconciliationService(store.Payments(), bookings, store, gateway, audit, publisher, logger),
		receipts:  NewReceiptService(bookings, store.Payments(), "TravelHub"),
		owner:     models.Actor{UserID: uuid.New()},
		admin:     models.Actor{UserID: uuid.New(), IsAdmin: true},
		hotel:     models.Hotel{ID: uuid.New(), Name: "Riverside Inn", PricePerNight: 100},
		tour: models.Tour{
			ID:             uuid.New(),
			Name:           "Ha Long Bay",
			PricePerPerson: 80,
			DepartureTime:  time.Date(2025, 4, 15, 8, 0, 0, 0, time.UTC),
			Duration:       "3 Days 2 Nights",
		},
	}
	store.Hotels[env.hotel.ID] = env.hotel
	store.Tours[env.tour.ID] = env.tour
	return env
}

func dates(in, out time.Time) (*time.Time, *time.Time) {
	return &in, &out
}

// createHotelBooking books three nights at the test hotel
func (e *testEnv) createHotelBooking(t *testing.T) *models.Booking {
	t.Helper()
	checkIn, checkOut := dates(time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC), time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC))
	booking, err := e.bookings.Create(context.Background(), e.owner.UserID, &models.CreateBookingRequest{
		Selections: []models.Selection{{Kind: models.ServiceKindHotel, ServiceID: e.hotel.ID}},
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	require.NoError(t, err)
	return booking
}

// initiatePayment starts a payment for booking as its owner
func (e *testEnv) initiatePayment(t *testing.T, booking *models.Booking) *models.Payment {
	t.Helper()
	redirect, err := e.payments.Initiate(context.Background(), booking.ID, e.owner, models.PaymentMethodCard, RequestMeta{})
	require.NoError(t, err)
	return redirect.Payment
}

// callback builds signed gateway callback parameters for payment
func (e *testEnv) callback(payment *models.Payment, code string) map[string]string {
	params := map[string]string{
		ParamOrderRef:      OrderRef(payment.BookingID, payment.CorrelationKey),
		ParamResponseCode:  code,
		ParamTransactionID: "GW-" + payment.CorrelationKey[:8],
		ParamAmount:        "30000",
	}
	params[ParamSignature] = e.gateway.Sign(params)
	return params
}
