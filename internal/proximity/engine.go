// Package proximity keeps the nearest-airports result for the origin coordinate.
package proximity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/task"
)

// Source returns airports ordered nearest-first.
type Source interface {
	Nearest(ctx context.Context, origin models.Coordinates, limit int) ([]models.NearbyAirport, error)
}

// State is a snapshot of the engine. Airports is nil until the first
// successful response; Origin is the coordinate Airports were computed for and
// Requested the coordinate of the latest request.
type State struct {
	Origin    *models.Coordinates    `json:"origin,omitempty"`
	Requested *models.Coordinates    `json:"requested,omitempty"`
	Airports  []models.NearbyAirport `json:"airports"`
	Loading   bool                   `json:"loading"`
	Error     string                 `json:"error,omitempty"`
}

// Engine fetches the nearest airports whenever the origin changes. Results
// keep the server order; nothing is re-sorted or recomputed locally.
type Engine struct {
	source  Source
	limit   int
	slot    *task.Slot
	metrics *metrics.Metrics
	log     *slog.Logger

	mu        sync.RWMutex
	origin    *models.Coordinates
	requested *models.Coordinates
	airports  []models.NearbyAirport
	loading   bool
	err       error
}

// NewEngine creates an engine with the default result limit.
func NewEngine(source Source, limit int, appMetrics *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		source:  source,
		limit:   limit,
		slot:    task.NewSlot("proximity"),
		metrics: appMetrics,
		log:     log,
	}
}

// Refresh recomputes the result for origin with the default limit.
func (e *Engine) Refresh(ctx context.Context, origin models.Coordinates) ([]models.NearbyAirport, error) {
	return e.Nearest(ctx, origin, e.limit)
}

// RefreshIf is Refresh issued only while current reports true. current is
// checked atomically with taking over the request slot, so a caller whose own
// request has been superseded cannot displace a newer origin's refresh.
func (e *Engine) RefreshIf(
	ctx context.Context,
	origin models.Coordinates,
	current func() bool,
) ([]models.NearbyAirport, error) {
	tctx, ticket, ok := e.slot.BeginIf(ctx, current)
	if !ok {
		e.metrics.Superseded.WithLabelValues(e.slot.Name()).Inc()
		return nil, task.ErrSuperseded
	}

	return e.fetch(ctx, tctx, ticket, origin, e.limit)
}

// Nearest replaces the result with the airports nearest to origin. On failure
// the previous result stays in place. A response for an origin that has been
// replaced by a newer request is discarded with task.ErrSuperseded.
func (e *Engine) Nearest(ctx context.Context, origin models.Coordinates, limit int) ([]models.NearbyAirport, error) {
	if limit < 1 {
		limit = e.limit
	}

	tctx, ticket := e.slot.Begin(ctx)

	return e.fetch(ctx, tctx, ticket, origin, limit)
}

func (e *Engine) fetch(
	ctx, tctx context.Context,
	ticket task.Ticket,
	origin models.Coordinates,
	limit int,
) ([]models.NearbyAirport, error) {
	defer ticket.Finish()

	ticket.Commit(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.requested = &origin
		e.loading = true
		e.err = nil
	})

	airports, err := e.source.Nearest(tctx, origin, limit)
	if err == nil && len(airports) > limit {
		airports = airports[:limit]
	}

	committed := ticket.Commit(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.loading = false
		if err != nil {
			e.err = err
			return
		}
		if airports == nil {
			airports = []models.NearbyAirport{}
		}
		e.origin = &origin
		e.airports = airports
	})
	if !committed {
		e.metrics.Superseded.WithLabelValues(e.slot.Name()).Inc()
		return nil, task.ErrSuperseded
	}
	if err != nil {
		e.log.WarnContext(ctx, "Failed to fetch nearest airports, keeping previous result", "error", err)
		return nil, fmt.Errorf("failed to fetch nearest airports: %w", err)
	}

	return slices.Clone(airports), nil
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := State{Origin: e.origin, Requested: e.requested, Airports: slices.Clone(e.airports), Loading: e.loading}
	if e.err != nil {
		state.Error = backend.Message(e.err)
	}

	return state
}
