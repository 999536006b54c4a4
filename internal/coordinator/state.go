package coordinator

import (
	"github.com/UnknownOlympus/aerodrome/internal/detail"
	"github.com/UnknownOlympus/aerodrome/internal/directory"
	"github.com/UnknownOlympus/aerodrome/internal/geolocation"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/proximity"
	"github.com/UnknownOlympus/aerodrome/internal/session"
)

// SourceCity marks an origin chosen by city selection.
const SourceCity geolocation.Source = "city"

// Origin is the coordinate currently considered the user's location.
// Source is "device", "fallback" or "city"; a fallback origin carries the
// reason the device could not be located.
type Origin struct {
	Coordinates models.Coordinates `json:"coordinates"`
	Source      geolocation.Source `json:"source"`
	City        string             `json:"city,omitempty"`
	Reason      string             `json:"reason,omitempty"`
}

// Modals are the derived visibility flags of the dialogs.
type Modals struct {
	Auth    bool `json:"auth"`
	User    bool `json:"user"`
	Details bool `json:"details"`
}

// Snapshot is the consistent state exposed to the presentation layer.
type Snapshot struct {
	Origin       *Origin          `json:"origin,omitempty"`
	LocationName string           `json:"location_name,omitempty"`
	CityQuery    string           `json:"city_query"`
	Cities       []string         `json:"cities"`
	Directory    directory.State  `json:"directory"`
	Nearest      proximity.State  `json:"nearest"`
	Detail       detail.View      `json:"detail"`
	Session      session.Snapshot `json:"session"`
	Modals       Modals           `json:"modals"`
}
