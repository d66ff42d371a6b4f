package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/travelhub/booking-engine/internal/models"
)

// CatalogRepository reads hotel, flight and tour records. The catalog is
// owned by another system; this repository never writes.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetHotel returns nil, nil when the hotel does not exist
func (r *CatalogRepository) GetHotel(ctx context.Context, id uuid.UUID) (*models.Hotel, error) {
	var hotel models.Hotel
	query := `SELECT id, name, price_per_night FROM hotels WHERE id = $1`
	if err := r.db.GetContext(ctx, &hotel, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch hotel: %w", err)
	}
	return &hotel, nil
}

// GetFlight returns nil, nil when the flight does not exist
func (r *CatalogRepository) GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error) {
	var flight models.Flight
	query := `SELECT id, flight_number, price FROM flights WHERE id = $1`
	if err := r.db.GetContext(ctx, &flight, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch flight: %w", err)
	}
	return &flight, nil
}

// GetTour returns nil, nil when the tour does not exist
func (r *CatalogRepository) GetTour(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	query := `SELECT id, name, price_per_person, departure_time, duration FROM tours WHERE id = $1`
	if err := r.db.GetContext(ctx, &tour, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch tour: %w", err)
	}
	return &tour, nil
}
