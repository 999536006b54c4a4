package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/aerodrome/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleLocator is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It locates the device through the
// Google Geolocation API using the caller's IP address.
type GoogleLocator struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// ErrEmptyResponse is returned when the Google Maps API responds with an empty result.
var ErrEmptyResponse = errors.New("get empty response from Google Maps API")

// NewGoogleLocator initializes a new GoogleLocator with the given client and logger.
func NewGoogleLocator(client GoogleAPIClient, log *slog.Logger) *GoogleLocator {
	return &GoogleLocator{client: client, log: log}
}

// Locate asks the Google Geolocation API for the current position.
func (gl *GoogleLocator) Locate(ctx context.Context) (*models.Coordinates, error) {
	gl.log.DebugContext(ctx, "Locating using Google Geolocation API")

	req := maps.GeolocationRequest{ConsiderIP: true}
	result, err := gl.client.Geolocate(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geolocate: %w", err)
	}

	if result == nil {
		return nil, ErrEmptyResponse
	}
	gl.log.DebugContext(ctx, "Google geolocation result", "accuracy_m", result.Accuracy)

	return &models.Coordinates{Latitude: result.Location.Lat, Longitude: result.Location.Lng}, nil
}
