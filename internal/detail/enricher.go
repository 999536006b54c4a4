// Package detail runs the enrichment pipeline of the airport detail view:
// full record, then distance from the origin, then the airport's own
// nearest neighbors.
package detail

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
	"github.com/google/uuid"
)

// Source provides the three enrichment stages.
type Source interface {
	Airport(ctx context.Context, id uuid.UUID) (*models.Airport, error)
	Distance(ctx context.Context, origin, airport models.Coordinates) (*models.DistanceInfo, error)
	Nearest(ctx context.Context, origin models.Coordinates, limit int) ([]models.NearbyAirport, error)
}

// View is a snapshot of the detail view.
type View struct {
	Selected  *models.AirportSummary `json:"selected,omitempty"`
	Airport   *models.Airport        `json:"airport,omitempty"`
	Distance  *models.DistanceInfo   `json:"distance,omitempty"`
	Neighbors []models.NearbyAirport `json:"neighbors,omitempty"`
	Notices   []string               `json:"notices,omitempty"`
	Loading   bool                   `json:"loading"`
	Visible   bool                   `json:"visible"`
}

// Enricher owns the open detail view.
type Enricher struct {
	source        Source
	neighborLimit int
	slot          *task.Slot
	metrics       *metrics.Metrics
	log           *slog.Logger

	mu   sync.RWMutex
	view View
}

// NewEnricher creates an enricher that shows up to neighborLimit neighbors.
func NewEnricher(source Source, neighborLimit int, appMetrics *metrics.Metrics, log *slog.Logger) *Enricher {
	return &Enricher{
		source:        source,
		neighborLimit: neighborLimit,
		slot:          task.NewSlot("detail"),
		metrics:       appMetrics,
		log:           log,
	}
}

// Open selects summary and runs the pipeline for it. Stages run strictly in
// order. The view becomes visible once the full record is known; distance
// and neighbor failures are appended as notices and do not hide the view.
// Open returns an error only when the record itself cannot be fetched, and
// task.ErrSuperseded when another airport was opened (or the view closed)
// while the pipeline was running.
func (e *Enricher) Open(ctx context.Context, summary models.AirportSummary, origin models.Coordinates) error {
	tctx, ticket := e.slot.Begin(ctx)
	defer ticket.Finish()

	e.commit(ticket, func(v *View) {
		*v = View{Selected: &summary, Loading: true}
	})

	record, err := e.source.Airport(tctx, summary.ID)
	if err != nil {
		if !e.commit(ticket, func(v *View) {
			v.Loading = false
			v.Notices = append(v.Notices, backend.Message(err))
		}) {
			return e.superseded(ctx, summary.ID)
		}
		e.log.ErrorContext(ctx, "Failed to fetch airport record", "airport_id", summary.ID, "error", err)
		return fmt.Errorf("failed to fetch airport %s: %w", summary.ID, err)
	}
	if !e.commit(ticket, func(v *View) {
		v.Airport = record
		v.Visible = true
	}) {
		return e.superseded(ctx, summary.ID)
	}

	airportCoords := record.Coordinates()

	distance, err := e.source.Distance(tctx, origin, airportCoords)
	if !e.commit(ticket, func(v *View) {
		if err != nil {
			v.Notices = append(v.Notices, "Distance unavailable: "+backend.Message(err))
			return
		}
		v.Distance = distance
	}) {
		return e.superseded(ctx, summary.ID)
	}
	if err != nil {
		e.log.WarnContext(ctx, "Failed to fetch airport distance", "airport_id", summary.ID, "error", err)
	}

	neighbors, err := e.source.Nearest(tctx, airportCoords, e.neighborLimit+1)
	if !e.commit(ticket, func(v *View) {
		v.Loading = false
		if err != nil {
			v.Notices = append(v.Notices, "Nearby airports unavailable: "+backend.Message(err))
			return
		}
		v.Neighbors = e.excludeSelf(record.ID, neighbors)
	}) {
		return e.superseded(ctx, summary.ID)
	}
	if err != nil {
		e.log.WarnContext(ctx, "Failed to fetch airport neighbors", "airport_id", summary.ID, "error", err)
	}

	return nil
}

// Close hides the view and drops every field, including the distance.
// Pipelines still in flight are discarded.
func (e *Enricher) Close() {
	e.slot.Invalidate()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.view = View{}
}

// View returns a snapshot of the detail view.
func (e *Enricher) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()

	view := e.view
	view.Neighbors = slices.Clone(e.view.Neighbors)
	view.Notices = slices.Clone(e.view.Notices)

	return view
}

func (e *Enricher) commit(ticket task.Ticket, apply func(v *View)) bool {
	return ticket.Commit(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		apply(&e.view)
	})
}

func (e *Enricher) superseded(ctx context.Context, id uuid.UUID) error {
	e.metrics.Superseded.WithLabelValues(e.slot.Name()).Inc()
	e.log.DebugContext(ctx, "Discarding superseded detail pipeline", "airport_id", id)

	return task.ErrSuperseded
}

func (e *Enricher) excludeSelf(id uuid.UUID, neighbors []models.NearbyAirport) []models.NearbyAirport {
	out := make([]models.NearbyAirport, 0, len(neighbors))
	for _, neighbor := range neighbors {
		if neighbor.ID == id {
			continue
		}
		out = append(out, neighbor)
	}
	if len(out) > e.neighborLimit {
		out = out[:e.neighborLimit]
	}

	return out
}
