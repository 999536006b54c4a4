package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/aerodrome/internal/models"
)

// ErrInvalidCoords is returned when the backend answers with an out-of-range coordinate.
var ErrInvalidCoords = errors.New("backend returned invalid coordinates")

type cityResponse struct {
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func coordsQuery(coords models.Coordinates) url.Values {
	query := url.Values{}
	query.Set("latitude", formatFloat(coords.Latitude))
	query.Set("longitude", formatFloat(coords.Longitude))

	return query
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReverseGeocode resolves a coordinate to a city name.
func (c *Client) ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error) {
	var out cityResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/geo-local", query: coordsQuery(coords)}, &out)
	if err != nil {
		return "", err
	}

	return out.City, nil
}

// City resolves a city name to its coordinate. A backend 400 or 404 means the
// backend has no record for the exact name and is reported as ErrNotFound.
func (c *Client) City(ctx context.Context, title string) (*models.Coordinates, error) {
	query := url.Values{}
	query.Set("title", title)

	var out cityResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/city", query: query}, &out)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) &&
			(apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusNotFound) {
			return nil, &Error{Kind: ErrNotFound, Status: apiErr.Status, Message: apiErr.Message, Endpoint: apiErr.Endpoint}
		}
		return nil, err
	}

	if out.Latitude == nil || out.Longitude == nil {
		return nil, fmt.Errorf("%w: city %q has no coordinates", ErrInvalidCoords, title)
	}
	coords := models.Coordinates{Latitude: *out.Latitude, Longitude: *out.Longitude}
	if !coords.Valid() {
		return nil, fmt.Errorf("%w: %v for city %q", ErrInvalidCoords, coords, title)
	}

	return &coords, nil
}
