package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
)

var tourDaysPattern = regexp.MustCompile(`(?i)(\d+)\s*days?\b`)

// maxTourDays bounds the parsed tour length; longer values are treated as unparseable
const maxTourDays = 3650

// PriceQuote is the outcome of aggregating a set of selections
type PriceQuote struct {
	TotalAmount float64
	Lines       []models.Selection
	StayPeriod  models.StayPeriod
	Warnings    []string
	Services    []models.ServiceReference
}

// ComputeInput is what PriceAggregator.Compute prices
type ComputeInput struct {
	Selections []models.Selection
	Dates      models.CallerDates
	Bundle     bool
}

// PriceAggregator computes the total price and stay period of a booking
type PriceAggregator struct {
	catalog      Catalog
	allowBundles bool
	logger       *logrus.Logger
}

// NewPriceAggregator creates a new PriceAggregator
func NewPriceAggregator(catalog Catalog, allowBundles bool, logger *logrus.Logger) *PriceAggregator {
	return &PriceAggregator{
		catalog:      catalog,
		allowBundles: allowBundles,
		logger:       logger,
	}
}

// Resolve looks a selection up in the catalog. A missing entry yields an
// UnresolvedService placeholder, not an error.
func (a *PriceAggregator) Resolve(ctx context.Context, sel models.Selection) (models.ServiceReference, error) {
	switch sel.Kind {
	case models.ServiceKindHotel:
		hotel, err := a.catalog.GetHotel(ctx, sel.ServiceID)
		if err != nil || hotel == nil {
			return models.UnresolvedService{ServiceKind: sel.Kind, ID: sel.ServiceID}, err
		}
		return models.ResolvedHotel{Hotel: *hotel}, nil
	case models.ServiceKindFlight:
		flight, err := a.catalog.GetFlight(ctx, sel.ServiceID)
		if err != nil || flight == nil {
			return models.UnresolvedService{ServiceKind: sel.Kind, ID: sel.ServiceID}, err
		}
		return models.ResolvedFlight{Flight: *flight}, nil
	case models.ServiceKindTour:
		tour, err := a.catalog.GetTour(ctx, sel.ServiceID)
		if err != nil || tour == nil {
			return models.UnresolvedService{ServiceKind: sel.Kind, ID: sel.ServiceID}, err
		}
		return models.ResolvedTour{Tour: *tour}, nil
	}
	return nil, fmt.Errorf("unknown service kind %q", sel.Kind)
}

// Compute prices every selection in order. Contributions are summed and each
// selection that sets a stay period overwrites the previous one.
func (a *PriceAggregator) Compute(ctx context.Context, in ComputeInput) (*PriceQuote, error) {
	if len(in.Selections) == 0 {
		return nil, models.ErrNoSelections
	}

	kinds := models.Selections(in.Selections).Kinds()
	if len(kinds) > 1 && (!in.Bundle || !a.allowBundles) {
		return nil, fmt.Errorf("%w: got %v", models.ErrBundleRequired, kinds)
	}

	quote := &PriceQuote{
		Lines:    make([]models.Selection, 0, len(in.Selections)),
		Warnings: []string{},
	}
	for _, sel := range in.Selections {
		line := models.Selection{Kind: sel.Kind, ServiceID: sel.ServiceID}
		ref, err := a.Resolve(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s %s: %w", sel.Kind, sel.ServiceID, err)
		}

		switch svc := ref.(type) {
		case models.UnresolvedService:
			return nil, svc.NotFoundError()

		case models.ResolvedHotel:
			nights, err := nightsBetween(in.Dates)
			if err != nil {
				return nil, err
			}
			line.Amount = float64(nights) * svc.Hotel.PricePerNight
			start, end := *in.Dates.CheckIn, *in.Dates.CheckOut
			quote.StayPeriod = models.StayPeriod{Start: &start, End: &end}

		case models.ResolvedFlight:
			line.Amount = svc.Flight.Price

		case models.ResolvedTour:
			line.Amount = svc.Tour.PricePerPerson
			period, ok := tourStayPeriod(svc.Tour)
			if !ok {
				warning := fmt.Sprintf("tour %s: could not derive end date from duration %q", svc.Tour.ID, svc.Tour.Duration)
				quote.Warnings = append(quote.Warnings, warning)
				a.logger.WithFields(logrus.Fields{
					"tour_id":  svc.Tour.ID,
					"duration": svc.Tour.Duration,
				}).Warn("Tour duration not parseable")
			}
			quote.StayPeriod = period
		}

		quote.TotalAmount += line.Amount
		quote.Lines = append(quote.Lines, line)
		quote.Services = append(quote.Services, ref)
	}

	return quote, nil
}

// nightsBetween rounds partial days up
func nightsBetween(dates models.CallerDates) (int, error) {
	if dates.CheckIn == nil || dates.CheckOut == nil {
		return 0, fmt.Errorf("%w: check-in and check-out are required for hotels", models.ErrInvalidDateRange)
	}
	if !dates.CheckOut.After(*dates.CheckIn) {
		return 0, fmt.Errorf("%w: check-out must be after check-in", models.ErrInvalidDateRange)
	}
	hours := dates.CheckOut.Sub(*dates.CheckIn).Hours()
	return int(math.Ceil(hours / 24)), nil
}

// tourStayPeriod reads the first "<N> Day(s)" in the duration text
func tourStayPeriod(tour models.Tour) (models.StayPeriod, bool) {
	start := tour.DepartureTime
	period := models.StayPeriod{Start: &start}

	match := tourDaysPattern.FindStringSubmatch(tour.Duration)
	if match == nil {
		return period, false
	}
	days, err := strconv.Atoi(match[1])
	if err != nil || days > maxTourDays {
		return period, false
	}
	end := start.Add(time.Duration(days) * 24 * time.Hour)
	period.End = &end
	return period, true
}
