package models

import "github.com/google/uuid"

// AirportSummary is the short airport shape returned by the paginated catalog.
// It may lack fields that only the full record carries.
type AirportSummary struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Address          string    `json:"address,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	ImageURL         string    `json:"image_url,omitempty"`
}

// Airport is the full airport record returned by a single-airport lookup.
type Airport struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	FullName         string    `json:"full_name,omitempty"`
	City             string    `json:"city,omitempty"`
	Address          string    `json:"address,omitempty"`
	URL              string    `json:"url,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	Description      string    `json:"description,omitempty"`
	ICAO             string    `json:"icao,omitempty"`
	IATA             string    `json:"iata,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	TimeZone         string    `json:"time_zone,omitempty"`
	ImageTop         string    `json:"img_top,omitempty"`
	ImageAirport     string    `json:"img_airport,omitempty"`
	OnlineBoard      string    `json:"online_tablo,omitempty"`
}

// Coordinates returns the airport location.
func (a Airport) Coordinates() Coordinates {
	return Coordinates{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Summary projects the full record onto the catalog shape.
func (a Airport) Summary() AirportSummary {
	return AirportSummary{
		ID:               a.ID,
		Name:             a.Name,
		Address:          a.Address,
		ShortDescription: a.ShortDescription,
		ImageURL:         a.ImageTop,
	}
}

// NearbyAirport is one entry of a proximity result: an airport and its
// server-computed distance from the requested origin.
type NearbyAirport struct {
	Airport

	DistanceKilometers float64 `json:"distance_kilometers"`
}

// DistanceInfo is the great-circle distance between one origin and one airport.
type DistanceInfo struct {
	Meters     float64 `json:"distance_meters"`
	Kilometers float64 `json:"distance_kilometers"`
}
