package cities_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/cities"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	calls    atomic.Int32
	cityFunc func(ctx context.Context, title string) (*models.Coordinates, error)
}

func (m *mockSource) City(ctx context.Context, title string) (*models.Coordinates, error) {
	m.calls.Add(1)
	return m.cityFunc(ctx, title)
}

var catalog = []string{"Moscow", "Saint Petersburg", "Mossoró", "Kazan", "Smolensk", "Mosul"}

func newIndex(source cities.Source) *cities.Index {
	return cities.NewIndex(catalog, source, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFilter(t *testing.T) {
	index := newIndex(nil)

	t.Run("empty query returns full catalog", func(t *testing.T) {
		assert.Equal(t, catalog, index.Filter(""))
	})

	t.Run("case insensitive substring in catalog order", func(t *testing.T) {
		assert.Equal(t, []string{"Moscow", "Mossoró", "Mosul"}, index.Filter("mos"))
		assert.Equal(t, []string{"Moscow", "Mossoró", "Mosul"}, index.Filter("MOS"))
		assert.Equal(t, []string{"Smolensk"}, index.Filter("olen"))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, index.Filter("zzz"))
	})

	t.Run("result does not alias the catalog", func(t *testing.T) {
		all := index.Filter("")
		all[0] = "changed"
		assert.Equal(t, "Moscow", index.Catalog()[0])
	})
}

func TestLookup(t *testing.T) {
	t.Run("repeated lookup yields identical coordinate", func(t *testing.T) {
		source := &mockSource{cityFunc: func(_ context.Context, title string) (*models.Coordinates, error) {
			assert.Equal(t, "Kazan", title)
			return &models.Coordinates{Latitude: 55.79, Longitude: 49.12}, nil
		}}
		index := newIndex(source)

		first, err := index.Lookup(t.Context(), "Kazan")
		require.NoError(t, err)
		second, err := index.Lookup(t.Context(), "Kazan")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.EqualValues(t, 1, source.calls.Load())
	})

	t.Run("not found", func(t *testing.T) {
		source := &mockSource{cityFunc: func(_ context.Context, _ string) (*models.Coordinates, error) {
			return nil, &backend.Error{Kind: backend.ErrNotFound, Status: 404, Message: "City not found"}
		}}
		index := newIndex(source)

		_, err := index.Lookup(t.Context(), "Atlantis")

		require.ErrorIs(t, err, backend.ErrNotFound)
	})

	t.Run("failures are not memoised", func(t *testing.T) {
		fail := true
		source := &mockSource{cityFunc: func(_ context.Context, _ string) (*models.Coordinates, error) {
			if fail {
				return nil, assert.AnError
			}
			return &models.Coordinates{Latitude: 1, Longitude: 2}, nil
		}}
		index := newIndex(source)

		_, err := index.Lookup(t.Context(), "Omsk")
		require.ErrorIs(t, err, assert.AnError)

		fail = false
		coords, err := index.Lookup(t.Context(), "Omsk")
		require.NoError(t, err)
		assert.Equal(t, models.Coordinates{Latitude: 1, Longitude: 2}, coords)
		assert.EqualValues(t, 2, source.calls.Load())
	})

	t.Run("concurrent lookups share one request", func(t *testing.T) {
		release := make(chan struct{})
		source := &mockSource{cityFunc: func(_ context.Context, _ string) (*models.Coordinates, error) {
			<-release
			return &models.Coordinates{Latitude: 59.93, Longitude: 30.33}, nil
		}}
		index := newIndex(source)

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				coords, err := index.Lookup(t.Context(), "Saint Petersburg")
				assert.NoError(t, err)
				assert.InDelta(t, 59.93, coords.Latitude, 0.001)
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.EqualValues(t, 1, source.calls.Load())
	})

	t.Run("canceled caller does not fail the others", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		source := &mockSource{cityFunc: func(ctx context.Context, _ string) (*models.Coordinates, error) {
			close(started)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return &models.Coordinates{Latitude: 55.79, Longitude: 49.12}, nil
			}
		}}
		index := newIndex(source)

		leaderCtx, cancel := context.WithCancel(t.Context())
		leaderErr := make(chan error, 1)
		go func() {
			_, err := index.Lookup(leaderCtx, "Kazan")
			leaderErr <- err
		}()
		<-started

		type lookup struct {
			coords models.Coordinates
			err    error
		}
		follower := make(chan lookup, 1)
		go func() {
			coords, err := index.Lookup(t.Context(), "Kazan")
			follower <- lookup{coords: coords, err: err}
		}()
		time.Sleep(50 * time.Millisecond)

		cancel()
		require.ErrorIs(t, <-leaderErr, context.Canceled)
		close(release)

		got := <-follower
		require.NoError(t, got.err)
		assert.InDelta(t, 55.79, got.coords.Latitude, 0.001)
		assert.EqualValues(t, 1, source.calls.Load())
	})
}
