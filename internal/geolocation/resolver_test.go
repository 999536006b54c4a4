package geolocation_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/geolocation"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var moscow = geolocation.Fallback{
	City:        "Moscow",
	Coordinates: models.Coordinates{Latitude: 55.7558, Longitude: 37.6173},
}

// blockingLocator waits for its context to end.
type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (*models.Coordinates, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// stubbornLocator ignores its context and answers only when released.
type stubbornLocator struct {
	release chan struct{}
}

func (l stubbornLocator) Locate(_ context.Context) (*models.Coordinates, error) {
	<-l.release
	return &models.Coordinates{Latitude: 55.79, Longitude: 49.12}, nil
}

func newResolver(t *testing.T, locator geolocation.Locator, timeout time.Duration) *geolocation.Resolver {
	t.Helper()

	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver, err := geolocation.NewResolver(locator, moscow, timeout, appMetrics, logger)
	require.NoError(t, err)

	return resolver
}

func TestNewResolverRejectsInvalidFallback(t *testing.T) {
	_, err := geolocation.NewResolver(nil, geolocation.Fallback{
		City:        "Nowhere",
		Coordinates: models.Coordinates{Latitude: 91, Longitude: 0},
	}, time.Second, metrics.NewMetrics(prometheus.NewRegistry()), slog.Default())

	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Run("device position", func(t *testing.T) {
		locator := mocks.NewLocator(t)
		locator.On("Locate", mock.Anything).Return(&models.Coordinates{Latitude: 40.71, Longitude: -74.0}, nil).Once()

		resolver := newResolver(t, locator, time.Second)
		res := resolver.Resolve(t.Context())

		assert.Equal(t, geolocation.SourceDevice, res.Source)
		assert.Equal(t, models.Coordinates{Latitude: 40.71, Longitude: -74.0}, res.Coordinates)
		assert.Empty(t, res.Reason)
	})

	t.Run("locator error falls back without retry", func(t *testing.T) {
		locator := mocks.NewLocator(t)
		locator.On("Locate", mock.Anything).Return(nil, assert.AnError).Once()

		resolver := newResolver(t, locator, time.Second)
		res := resolver.Resolve(t.Context())

		assert.Equal(t, geolocation.SourceFallback, res.Source)
		assert.Equal(t, moscow.Coordinates, res.Coordinates)
		assert.Equal(t, "Moscow", res.City)
		assert.Contains(t, res.Reason, assert.AnError.Error())
	})

	t.Run("no locator", func(t *testing.T) {
		resolver := newResolver(t, nil, time.Second)
		res := resolver.Resolve(t.Context())

		assert.Equal(t, geolocation.SourceFallback, res.Source)
		assert.Equal(t, geolocation.ErrUnavailable.Error(), res.Reason)
	})

	t.Run("timeout", func(t *testing.T) {
		resolver := newResolver(t, blockingLocator{}, 20*time.Millisecond)

		start := time.Now()
		res := resolver.Resolve(t.Context())

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, geolocation.SourceFallback, res.Source)
		assert.Contains(t, res.Reason, "timed out")
	})

	t.Run("locator ignoring its context is bounded by the timeout", func(t *testing.T) {
		locator := stubbornLocator{release: make(chan struct{})}
		t.Cleanup(func() { close(locator.release) })
		resolver := newResolver(t, locator, 20*time.Millisecond)

		start := time.Now()
		res := resolver.Resolve(t.Context())

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, geolocation.SourceFallback, res.Source)
		assert.Contains(t, res.Reason, "timed out")
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		for _, coords := range []models.Coordinates{
			{Latitude: 95, Longitude: 10},
			{Latitude: 10, Longitude: -190},
			{Latitude: math.NaN(), Longitude: 10},
		} {
			locator := mocks.NewLocator(t)
			locator.On("Locate", mock.Anything).Return(&coords, nil).Once()

			resolver := newResolver(t, locator, time.Second)
			res := resolver.Resolve(t.Context())

			assert.Equal(t, geolocation.SourceFallback, res.Source)
			assert.Equal(t, moscow.Coordinates, res.Coordinates)
		}
	})

	t.Run("listeners receive every resolution", func(t *testing.T) {
		resolver := newResolver(t, nil, time.Second)

		var got []geolocation.Resolution
		resolver.OnChange(func(_ context.Context, res geolocation.Resolution) {
			got = append(got, res)
		})

		resolver.Resolve(t.Context())
		resolver.Resolve(t.Context())

		require.Len(t, got, 2)
		assert.Equal(t, geolocation.SourceFallback, got[0].Source)
	})
}
