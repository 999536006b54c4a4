package geolocation

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/aerodrome/internal/models"
)

// Locator is an interface that defines a method for obtaining the device position.
// Locate makes a single attempt and returns an error if no fix is available.
type Locator interface {
	Locate(ctx context.Context) (*models.Coordinates, error)
}

// ErrUnavailable is returned when no location capability is configured.
// It is never surfaced to users: the resolver degrades to the fallback point.
var ErrUnavailable = errors.New("geolocation unavailable")

// StaticLocator reports a fixed, configured device position.
type StaticLocator struct {
	coords models.Coordinates
}

// NewStaticLocator creates a locator that always reports coords.
func NewStaticLocator(coords models.Coordinates) *StaticLocator {
	return &StaticLocator{coords: coords}
}

// Locate returns the configured position.
func (sl *StaticLocator) Locate(_ context.Context) (*models.Coordinates, error) {
	coords := sl.coords
	return &coords, nil
}
