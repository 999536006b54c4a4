package models

import "github.com/google/uuid"

// Identity is the display identity derived from an authenticated session.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile is the user record returned by the backend.
type Profile struct {
	ID         string `json:"id,omitempty"`
	Email      string `json:"email,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// Review is a rated comment about an airport.
type Review struct {
	AirportID uuid.UUID `json:"airport_id" validate:"required"`
	Content   string    `json:"content"    validate:"required"`
	Rating    int       `json:"rating"     validate:"min=1,max=5"`
}
