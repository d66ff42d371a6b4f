package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/events"
	"github.com/travelhub/booking-engine/internal/models"
)

// BookingService owns the booking lifecycle
type BookingService struct {
	bookings   BookingRepository
	tx         TxRunner
	aggregator *PriceAggregator
	publisher  events.Publisher
	currency   string
	logger     *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings BookingRepository,
	tx TxRunner,
	aggregator *PriceAggregator,
	publisher events.Publisher,
	currency string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:   bookings,
		tx:         tx,
		aggregator: aggregator,
		publisher:  publisher,
		currency:   currency,
		logger:     logger,
	}
}

// Create prices the selections and stores a pending booking. Nothing is
// written when aggregation fails.
func (s *BookingService) Create(ctx context.Context, ownerID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	quote, err := s.aggregator.Compute(ctx, ComputeInput{
		Selections: req.Selections,
		Dates:      req.Dates(),
		Bundle:     req.Bundle,
	})
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Selections:  models.Selections(quote.Lines),
		IsBundle:    len(models.Selections(req.Selections).Kinds()) > 1,
		StayStart:   quote.StayPeriod.Start,
		StayEnd:     quote.StayPeriod.End,
		TotalAmount: quote.TotalAmount,
		Currency:    s.currency,
		Warnings:    quote.Warnings,
		Status:      models.BookingStatusPending,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"owner_id":   ownerID,
		"total":      booking.TotalAmount,
		"selections": len(booking.Selections),
	}).Info("Booking created")

	s.publish(ctx, events.EventBookingCreated, booking)
	return booking, nil
}

// Get returns a booking the actor may see
func (s *BookingService) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.CanBeAccessedBy(actor) {
		return nil, models.ErrForbidden
	}
	return booking, nil
}

// ListForOwner lists the owner's bookings, newest first
func (s *BookingService) ListForOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByOwner(ctx, ownerID, limit, offset)
}

// Services re-resolves the booking's selections for display. Catalog entries
// that no longer exist come back as placeholders.
func (s *BookingService) Services(ctx context.Context, booking *models.Booking) ([]models.ServiceReference, error) {
	refs := make([]models.ServiceReference, 0, len(booking.Selections))
	for _, sel := range booking.Selections {
		ref, err := s.aggregator.Resolve(ctx, sel)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Cancel moves a pending booking to cancelled. Only the owner or an admin
// may cancel.
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.CanBeAccessedBy(actor) {
			return models.ErrForbidden
		}
		if current.Status != models.BookingStatusPending {
			return fmt.Errorf("%w: booking is %s", models.ErrInvalidTransition, current.Status)
		}
		booking, err = s.transition(ctx, current, models.BookingStatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": id,
		"actor_id":   actor.UserID,
		"is_admin":   actor.IsAdmin,
	}).Info("Booking cancelled")

	s.publish(ctx, events.EventBookingCancelled, booking)
	return booking, nil
}

// MarkPaid moves a pending booking to paid. A booking that is already paid is
// returned unchanged.
func (s *BookingService) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	var changed bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		booking, changed, err = s.markPaid(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, events.EventBookingPaid, booking)
	}
	return booking, nil
}

// markPaid must run inside a transaction. It reports whether the booking
// changed so the caller can publish after commit.
func (s *BookingService) markPaid(ctx context.Context, id uuid.UUID) (*models.Booking, bool, error) {
	booking, err := s.bookings.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	switch booking.Status {
	case models.BookingStatusPaid:
		return booking, false, nil
	case models.BookingStatusCancelled:
		return nil, false, fmt.Errorf("%w: booking %s is cancelled", models.ErrInvalidTransition, id)
	}

	booking, err = s.transition(ctx, booking, models.BookingStatusPaid)
	if err != nil {
		return nil, false, err
	}
	return booking, true, nil
}

// SetStatus is the admin override. Setting the current status is a no-op;
// terminal bookings cannot be moved.
func (s *BookingService) SetStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, actor models.Actor) (*models.Booking, error) {
	if !actor.IsAdmin {
		return nil, models.ErrForbidden
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, target)
	}

	var booking *models.Booking
	var changed bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == target {
			booking = current
			return nil
		}
		if current.Status.IsTerminal() {
			return fmt.Errorf("%w: booking is %s", models.ErrInvalidTransition, current.Status)
		}
		booking, err = s.transition(ctx, current, target)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.WithFields(logrus.Fields{
			"booking_id": id,
			"admin_id":   actor.UserID,
			"status":     target,
		}).Info("Booking status overridden by admin")

		eventType := events.EventBookingPaid
		if target == models.BookingStatusCancelled {
			eventType = events.EventBookingCancelled
		}
		s.publish(ctx, eventType, booking)
	}
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, booking *models.Booking, to models.BookingStatus) (*models.Booking, error) {
	ok, err := s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %s changed concurrently", models.ErrInvalidTransition, booking.ID)
	}

	now := time.Now()
	updated := *booking
	updated.Status = to
	updated.UpdatedAt = now
	switch to {
	case models.BookingStatusPaid:
		updated.PaidAt = &now
	case models.BookingStatusCancelled:
		updated.CancelledAt = &now
	}
	return &updated, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *models.Booking) {
	event, err := events.NewEvent(eventType, events.AggregateBooking, booking.ID.String(), events.BookingData{
		BookingID:   booking.ID.String(),
		OwnerID:     booking.OwnerID.String(),
		Status:      string(booking.Status),
		TotalAmount: booking.TotalAmount,
		Currency:    booking.Currency,
		At:          booking.UpdatedAt,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"event_type": eventType,
		}).Error("Failed to publish booking event")
	}
}
