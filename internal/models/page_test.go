package models_test

import (
	"math"
	"testing"

	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCoordinatesValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		coords models.Coordinates
		want   bool
	}{
		{"moscow", models.Coordinates{Latitude: 55.7558, Longitude: 37.6173}, true},
		{"poles and antimeridian", models.Coordinates{Latitude: -90, Longitude: 180}, true},
		{"latitude too high", models.Coordinates{Latitude: 90.1, Longitude: 0}, false},
		{"longitude too low", models.Coordinates{Latitude: 0, Longitude: -180.5}, false},
		{"nan", models.Coordinates{Latitude: math.NaN(), Longitude: 0}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.coords.Valid())
		})
	}
}

func TestPageBounds(t *testing.T) {
	t.Parallel()

	page := models.Page[int]{Items: []int{1, 2}, Page: 2, Size: 2, TotalPages: 3}

	assert.True(t, page.HasNext())
	assert.True(t, page.HasPrev())
	assert.True(t, page.Contains(3))
	assert.False(t, page.Contains(0))
	assert.False(t, page.Contains(4))

	last := models.Page[int]{Page: 1, Size: 10, TotalPages: 1}
	assert.False(t, last.HasNext())
	assert.False(t, last.HasPrev())
}
