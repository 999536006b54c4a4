package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/google/uuid"
)

// ErrInvalidPage is returned when the catalog answers with an impossible page.
var ErrInvalidPage = errors.New("backend returned an invalid page")

type airportsResponse struct {
	Items []models.AirportSummary `json:"items"`
	Page  int                     `json:"page"`
	Size  int                     `json:"size"`
	Pages int                     `json:"pages"`
}

// Airports fetches one page of the airport catalog.
func (c *Client) Airports(ctx context.Context, page, size int) (*models.Page[models.AirportSummary], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var out airportsResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/airports", query: query}, &out); err != nil {
		return nil, err
	}

	if out.Page == 0 {
		out.Page = page
	}
	if out.Size <= 0 {
		out.Size = size
	}
	if out.Pages < 1 {
		out.Pages = 1
	}
	if out.Page < 1 || out.Page > out.Pages {
		return nil, fmt.Errorf("%w: page %d of %d", ErrInvalidPage, out.Page, out.Pages)
	}
	if len(out.Items) > out.Size {
		out.Items = out.Items[:out.Size]
	}

	return &models.Page[models.AirportSummary]{
		Items:      out.Items,
		Page:       out.Page,
		Size:       out.Size,
		TotalPages: out.Pages,
	}, nil
}

// Airport fetches the full record of one airport.
func (c *Client) Airport(ctx context.Context, id uuid.UUID) (*models.Airport, error) {
	query := url.Values{}
	query.Set("id", id.String())

	var out models.Airport
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/airport", query: query}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Distance fetches the great-circle distance between origin and an airport.
func (c *Client) Distance(ctx context.Context, origin, airport models.Coordinates) (*models.DistanceInfo, error) {
	query := url.Values{}
	query.Set("latitude_city", formatFloat(origin.Latitude))
	query.Set("longitude_city", formatFloat(origin.Longitude))
	query.Set("latitude_airport", formatFloat(airport.Latitude))
	query.Set("longitude_airport", formatFloat(airport.Longitude))

	var out models.DistanceInfo
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/distance", query: query}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Nearest fetches up to limit airports ordered nearest-first from origin.
func (c *Client) Nearest(ctx context.Context, origin models.Coordinates, limit int) ([]models.NearbyAirport, error) {
	query := coordsQuery(origin)
	query.Set("limit", strconv.Itoa(limit))

	var out []models.NearbyAirport
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/nearest", query: query}, &out); err != nil {
		return nil, err
	}

	return out, nil
}
