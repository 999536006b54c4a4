package geolocation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/aerodrome/internal/models"
	"googlemaps.github.io/maps"
)

// LocatorType represents the type of location capability.
type LocatorType string

const (
	// LocatorTypeGoogle represents the Google Geolocation API.
	LocatorTypeGoogle LocatorType = "google"
	// LocatorTypeIP represents IP-based lookup through ip-api.com.
	LocatorTypeIP LocatorType = "ip"
	// LocatorTypeStatic represents a configured fixed position.
	LocatorTypeStatic LocatorType = "static"
	// LocatorTypeNone disables device location; the fallback point is always used.
	LocatorTypeNone LocatorType = "none"
)

// LocatorConfig holds configuration for creating a locator.
type LocatorConfig struct {
	Type   LocatorType         // Type of locator to create
	APIKey string              // API key (used by Google locator)
	Static *models.Coordinates // Fixed position (used by static locator)
	Logger *slog.Logger        // Logger for the locator
}

// NewLocator creates a locator based on the provided configuration.
// LocatorTypeNone yields a nil Locator, which the resolver treats as an
// unavailable location capability.
func NewLocator(config LocatorConfig) (Locator, error) {
	switch config.Type {
	case LocatorTypeGoogle:
		return newGoogleLocator(config)
	case LocatorTypeIP:
		return NewIPLocator(config.Logger), nil
	case LocatorTypeStatic:
		if config.Static == nil {
			return nil, errors.New("coordinates are required for static locator")
		}
		return NewStaticLocator(*config.Static), nil
	case LocatorTypeNone, "":
		return nil, nil //nolint:nilnil // no locator is a valid configuration
	default:
		return nil, fmt.Errorf("unsupported locator type: %s", config.Type)
	}
}

// newGoogleLocator creates a Google Geolocation API locator.
func newGoogleLocator(config LocatorConfig) (Locator, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google locator")
	}

	client, err := maps.NewClient(maps.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleLocator(client, config.Logger), nil
}
