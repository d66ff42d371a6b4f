package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/models"
)

// CatalogSource is the authoritative catalog
type CatalogSource interface {
	GetHotel(ctx context.Context, id uuid.UUID) (*models.Hotel, error)
	GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error)
	GetTour(ctx context.Context, id uuid.UUID) (*models.Tour, error)
}

// Store is the key/value backend used by CachedCatalog
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// CachedCatalog is a read-through cache in front of a CatalogSource. Cache
// failures are logged and fall through to the source. Missing records are
// never cached.
type CachedCatalog struct {
	source CatalogSource
	store  Store
	logger *logrus.Logger
}

// NewCachedCatalog wraps source with store
func NewCachedCatalog(source CatalogSource, store Store, logger *logrus.Logger) *CachedCatalog {
	return &CachedCatalog{source: source, store: store, logger: logger}
}

func (c *CachedCatalog) GetHotel(ctx context.Context, id uuid.UUID) (*models.Hotel, error) {
	var hotel models.Hotel
	return readThrough(ctx, c, catalogKey(models.ServiceKindHotel, id), &hotel, func() (*models.Hotel, error) {
		return c.source.GetHotel(ctx, id)
	})
}

func (c *CachedCatalog) GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error) {
	var flight models.Flight
	return readThrough(ctx, c, catalogKey(models.ServiceKindFlight, id), &flight, func() (*models.Flight, error) {
		return c.source.GetFlight(ctx, id)
	})
}

func (c *CachedCatalog) GetTour(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	return readThrough(ctx, c, catalogKey(models.ServiceKindTour, id), &tour, func() (*models.Tour, error) {
		return c.source.GetTour(ctx, id)
	})
}

func readThrough[T any](ctx context.Context, c *CachedCatalog, key string, dest *T, load func() (*T, error)) (*T, error) {
	hit, err := c.store.Get(ctx, key, dest)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Catalog cache read failed")
	} else if hit {
		return dest, nil
	}

	record, err := load()
	if err != nil || record == nil {
		return record, err
	}

	if err := c.store.Set(ctx, key, record); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Catalog cache write failed")
	}
	return record, nil
}
