package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelhub/booking-engine/internal/events"
	"github.com/travelhub/booking-engine/internal/models"
)

func TestReconciliation_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)

	result, err := env.recon.HandleCallback(ctx, env.callback(payment, "00"), models.ChannelInteractive, RequestMeta{IPAddress: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePaid, result.Outcome)
	assert.Equal(t, models.PaymentStatusPaid, result.Payment.Status)
	require.NotNil(t, result.Booking)
	assert.Equal(t, models.BookingStatusPaid, result.Booking.Status)

	stored, _ := env.store.Payments().GetByID(ctx, payment.ID)
	assert.Equal(t, models.PaymentStatusPaid, stored.Status)
	require.NotNil(t, stored.GatewayResponseCode)
	assert.Equal(t, "00", *stored.GatewayResponseCode)

	storedBooking, _ := env.store.Bookings().GetByID(ctx, booking.ID)
	assert.Equal(t, models.BookingStatusPaid, storedBooking.Status)

	assert.Equal(t, 1, env.publisher.Count(events.EventPaymentPaid))
	assert.Equal(t, 1, env.publisher.Count(events.EventBookingPaid))

	success := env.store.Audits().ByType(models.PaymentEventSuccess)
	require.Len(t, success, 1)
	require.NotNil(t, success[0].AmountsMatch)
	assert.True(t, *success[0].AmountsMatch)
	assert.NotContains(t, success[0].RequestPayload, ParamSignature)
	assert.Len(t, env.store.Audits().ByType(models.PaymentEventBookingPaid), 1)
}

func TestReconciliation_Failure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)

	result, err := env.recon.HandleCallback(ctx, env.callback(payment, "24"), models.ChannelOutOfBand, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Nil(t, result.Booking)

	storedBooking, _ := env.store.Bookings().GetByID(ctx, booking.ID)
	assert.Equal(t, models.BookingStatusPending, storedBooking.Status)
	assert.Equal(t, 1, env.publisher.Count(events.EventPaymentFailed))
	assert.Equal(t, 0, env.publisher.Count(events.EventBookingPaid))

	// a late success for the failed attempt changes nothing
	result, err = env.recon.HandleCallback(ctx, env.callback(payment, "00"), models.ChannelInteractive, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeReplay, result.Outcome)
	assert.Equal(t, models.PaymentStatusFailed, result.Payment.Status)

	// a new attempt can still pay the booking
	retry := env.initiatePayment(t, booking)
	result, err = env.recon.HandleCallback(ctx, env.callback(retry, "00"), models.ChannelOutOfBand, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePaid, result.Outcome)
}

func TestReconciliation_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)
	params := env.callback(payment, "00")

	first, err := env.recon.HandleCallback(ctx, params, models.ChannelOutOfBand, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePaid, first.Outcome)
	eventsAfterFirst := env.publisher.Total()

	for _, channel := range []models.NotificationChannel{models.ChannelOutOfBand, models.ChannelInteractive, models.ChannelOutOfBand} {
		again, err := env.recon.HandleCallback(ctx, params, channel, RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeReplay, again.Outcome)
		assert.Equal(t, models.PaymentStatusPaid, again.Payment.Status)
	}

	assert.Equal(t, eventsAfterFirst, env.publisher.Total())
	replays := env.store.Audits().ByType(models.PaymentEventReplayIgnored)
	require.Len(t, replays, 3)
	assert.True(t, replays[0].IsDuplicate)
}

func TestReconciliation_ConcurrentChannels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)
	params := env.callback(payment, "00")

	const workers = 16
	outcomes := make(chan models.ReconcileOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		channel := models.ChannelInteractive
		if i%2 == 0 {
			channel = models.ChannelOutOfBand
		}
		go func(channel models.NotificationChannel) {
			defer wg.Done()
			result, err := env.recon.HandleCallback(ctx, params, channel, RequestMeta{})
			if assert.NoError(t, err) {
				outcomes <- result.Outcome
			}
		}(channel)
	}
	wg.Wait()
	close(outcomes)

	counts := map[models.ReconcileOutcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[models.OutcomePaid])
	assert.Equal(t, workers-1, counts[models.OutcomeReplay])
	assert.Equal(t, 1, env.publisher.Count(events.EventPaymentPaid))
	assert.Equal(t, 1, env.publisher.Count(events.EventBookingPaid))
}

func TestReconciliation_ConcurrentConflictingCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)

	var wg sync.WaitGroup
	for _, code := range []string{"00", "24", "00", "24"} {
		wg.Add(1)
		go func(params map[string]string) {
			defer wg.Done()
			_, _ = env.recon.HandleCallback(ctx, params, models.ChannelOutOfBand, RequestMeta{})
		}(env.callback(payment, code))
	}
	wg.Wait()

	stored, _ := env.store.Payments().GetByID(ctx, payment.ID)
	assert.True(t, stored.Status.IsTerminal())
	assert.Equal(t, 1, env.publisher.Count(events.EventPaymentPaid)+env.publisher.Count(events.EventPaymentFailed))
}

func TestReconciliation_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)

	params := env.callback(payment, "24")
	params[ParamResponseCode] = "00"

	_, err := env.recon.HandleCallback(ctx, params, models.ChannelOutOfBand, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrSignatureInvalid)

	stored, _ := env.store.Payments().GetByID(ctx, payment.ID)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	storedBooking, _ := env.store.Bookings().GetByID(ctx, booking.ID)
	assert.Equal(t, models.BookingStatusPending, storedBooking.Status)
	assert.Equal(t, 0, env.publisher.Count(events.EventPaymentPaid))

	rejected := env.store.Audits().ByType(models.PaymentEventSignatureRejected)
	require.Len(t, rejected, 1)
	assert.NotContains(t, rejected[0].RequestPayload, ParamSignature)
}

func TestReconciliation_PaymentNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)

	unknown := &models.Payment{BookingID: booking.ID, CorrelationKey: NewCorrelationKey()}
	_, err := env.recon.HandleCallback(ctx, env.callback(unknown, "00"), models.ChannelOutOfBand, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
	assert.Len(t, env.store.Audits().ByType(models.PaymentEventPaymentNotFound), 1)

	t.Run("Key Prefix Does Not Match", func(t *testing.T) {
		payment := env.initiatePayment(t, booking)
		// a key that merely contains the real key must not resolve
		params := map[string]string{
			ParamOrderRef:     booking.ID.String() + "_X" + payment.CorrelationKey,
			ParamResponseCode: "00",
		}
		params[ParamSignature] = env.gateway.Sign(params)

		_, err := env.recon.HandleCallback(ctx, params, models.ChannelOutOfBand, RequestMeta{})
		assert.ErrorIs(t, err, models.ErrPaymentNotFound)

		stored, _ := env.store.Payments().GetByID(ctx, payment.ID)
		assert.Equal(t, models.PaymentStatusPending, stored.Status)
	})

	t.Run("Booking Prefix Mismatch", func(t *testing.T) {
		payment := env.initiatePayment(t, booking)
		other := env.createHotelBooking(t)
		params := map[string]string{
			ParamOrderRef:     other.ID.String() + "_" + payment.CorrelationKey,
			ParamResponseCode: "00",
		}
		params[ParamSignature] = env.gateway.Sign(params)

		_, err := env.recon.HandleCallback(ctx, params, models.ChannelOutOfBand, RequestMeta{})
		assert.ErrorIs(t, err, models.ErrPaymentNotFound)

		stored, _ := env.store.Payments().GetByID(ctx, payment.ID)
		assert.Equal(t, models.PaymentStatusPending, stored.Status)
	})
}

func TestReconciliation_CancelledBookingRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	payment := env.initiatePayment(t, booking)

	_, err := env.bookings.Cancel(ctx, booking.ID, env.owner)
	require.NoError(t, err)

	_, err = env.recon.HandleCallback(ctx, env.callback(payment, "00"), models.ChannelOutOfBand, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, _ := env.store.Payments().GetByID(ctx, payment.ID)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Equal(t, 0, env.publisher.Count(events.EventPaymentPaid))
	assert.Len(t, env.store.Audits().ByType(models.PaymentEventReconciliationMismatch), 1)
}

func TestReconciliation_SecondPaidAttemptRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.createHotelBooking(t)
	first := env.initiatePayment(t, booking)
	second := env.initiatePayment(t, booking)

	_, err := env.recon.HandleCallback(ctx, env.callback(first, "00"), models.ChannelOutOfBand, RequestMeta{})
	require.NoError(t, err)

	_, err = env.recon.HandleCallback(ctx, env.callback(second, "00"), models.ChannelOutOfBand, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, _ := env.store.Payments().GetByID(ctx, second.ID)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Equal(t, 1, env.publisher.Count(events.EventBookingPaid))
}
