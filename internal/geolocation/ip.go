package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/models"
)

// IPAPIBaseURL -- ip-api.com JSON endpoint.
const IPAPIBaseURL = "http://ip-api.com/json/"

// IPLocator implements the Locator interface using IP-based geolocation.
// The public endpoint allows 45 requests per minute.
type IPLocator struct {
	client  HTTPClient   // HTTP client for making requests
	baseURL string       // Base URL for the lookup API
	log     *slog.Logger // Logger for logging operations
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ipAPIResponse represents the JSON response from ip-api.com.
type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
}

// Common errors for IP locator.
var (
	ErrIPLookupFailed = errors.New("ip geolocation lookup failed")
)

// NewIPLocator creates a new IP locator using the public ip-api.com endpoint.
func NewIPLocator(log *slog.Logger) *IPLocator {
	const timeout = 10
	return &IPLocator{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: IPAPIBaseURL,
		log:     log,
	}
}

// NewIPLocatorWithClient creates an IP locator with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewIPLocatorWithClient(client HTTPClient, baseURL string, log *slog.Logger) *IPLocator {
	return &IPLocator{
		client:  client,
		baseURL: baseURL,
		log:     log,
	}
}

// Locate looks up the approximate position of the public IP address of this host.
func (il *IPLocator) Locate(ctx context.Context) (*models.Coordinates, error) {
	reqURL, err := url.Parse(il.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("fields", "status,message,lat,lon,city")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := il.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		il.log.ErrorContext(ctx, "IP geolocation API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("ip geolocation API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ipAPIResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode ip geolocation response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrIPLookupFailed, result.Message)
	}

	il.log.DebugContext(ctx, "IP geolocation found result", "city", result.City, "lat", result.Lat, "lon", result.Lon)

	return &models.Coordinates{Latitude: result.Lat, Longitude: result.Lon}, nil
}
