// Package cities holds the static city catalog, filters it by search text
// and resolves city names to coordinates through the backend.
package cities

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/models"
	"golang.org/x/sync/singleflight"
)

// Source resolves a city name to its coordinate.
type Source interface {
	City(ctx context.Context, title string) (*models.Coordinates, error)
}

// sharedLookupTimeout bounds a lookup that no longer follows any caller's context.
const sharedLookupTimeout = 10 * time.Second

// Index is the searchable city catalog.
type Index struct {
	catalog []string
	source  Source
	log     *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	known map[string]models.Coordinates
}

// NewIndex creates an index over catalog. The catalog order is preserved by Filter.
func NewIndex(catalog []string, source Source, log *slog.Logger) *Index {
	return &Index{
		catalog: slices.Clone(catalog),
		source:  source,
		log:     log,
		known:   make(map[string]models.Coordinates),
	}
}

// Catalog returns a copy of the full catalog.
func (i *Index) Catalog() []string {
	return slices.Clone(i.catalog)
}

// Filter returns the catalog names containing query, case-insensitively, in
// catalog order. The empty query returns the whole catalog.
func (i *Index) Filter(query string) []string {
	if query == "" {
		return i.Catalog()
	}

	needle := strings.ToLower(query)
	matches := make([]string, 0)
	for _, name := range i.catalog {
		if strings.Contains(strings.ToLower(name), needle) {
			matches = append(matches, name)
		}
	}

	return matches
}

// Lookup resolves name to a coordinate. A name that was resolved before
// returns the same coordinate without another request, and concurrent
// lookups of one name share a single request. Unknown names fail with
// backend.ErrNotFound.
func (i *Index) Lookup(ctx context.Context, name string) (models.Coordinates, error) {
	i.mu.RLock()
	coords, ok := i.known[name]
	i.mu.RUnlock()
	if ok {
		return coords, nil
	}

	// The shared request outlives any single caller; each caller only stops
	// waiting for it when its own ctx ends.
	ch := i.group.DoChan(name, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()

		found, lookupErr := i.source.City(lctx, name)
		if lookupErr != nil {
			return nil, lookupErr
		}

		i.mu.Lock()
		i.known[name] = *found
		i.mu.Unlock()

		return *found, nil
	})

	var (
		result any
		err    error
		shared bool
	)
	select {
	case <-ctx.Done():
		return models.Coordinates{}, ctx.Err()
	case res := <-ch:
		result, err, shared = res.Val, res.Err, res.Shared
	}
	if err != nil {
		i.log.WarnContext(ctx, "City lookup failed", "city", name, "error", err)
		return models.Coordinates{}, err
	}
	i.log.DebugContext(ctx, "City resolved", "city", name, "shared", shared)

	return result.(models.Coordinates), nil //nolint:forcetypeassert // only Coordinates are stored
}
