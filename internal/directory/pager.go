// Package directory pages through the airport catalog one page at a time.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/task"
)

// ErrOutOfRange is returned by navigation that would leave [1, total_pages].
// No request is issued in that case.
var ErrOutOfRange = errors.New("page out of range")

// Source fetches one page of the airport catalog.
type Source interface {
	Airports(ctx context.Context, page, size int) (*models.Page[models.AirportSummary], error)
}

// State is a snapshot of the pager.
type State struct {
	Page      *models.Page[models.AirportSummary] `json:"page,omitempty"`
	Requested int                                 `json:"requested"`
	Loading   bool                                `json:"loading"`
	Error     string                              `json:"error,omitempty"`
}

// Pager holds the currently displayed catalog page.
type Pager struct {
	source  Source
	size    int
	slot    *task.Slot
	metrics *metrics.Metrics
	log     *slog.Logger

	mu        sync.RWMutex
	page      *models.Page[models.AirportSummary]
	requested int
	loading   bool
	err       error
}

// NewPager creates a pager that requests pages of the given size.
func NewPager(source Source, size int, appMetrics *metrics.Metrics, log *slog.Logger) *Pager {
	return &Pager{
		source:  source,
		size:    size,
		slot:    task.NewSlot("directory"),
		metrics: appMetrics,
		log:     log,
	}
}

// FetchPage requests page n and replaces the current page with the response.
// Only the latest request may update the pager: a response for a request that
// has since been superseded is dropped and task.ErrSuperseded is returned.
func (p *Pager) FetchPage(ctx context.Context, n int) (*models.Page[models.AirportSummary], error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}

	tctx, ticket := p.slot.Begin(ctx)
	defer ticket.Finish()

	ticket.Commit(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.requested = n
		p.loading = true
		p.err = nil
	})

	page, err := p.source.Airports(tctx, n, p.size)

	committed := ticket.Commit(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.loading = false
		if err != nil {
			p.err = err
			return
		}
		p.page = page
	})
	if !committed {
		p.metrics.Superseded.WithLabelValues(p.slot.Name()).Inc()
		p.log.DebugContext(ctx, "Discarding superseded page response", "page", n)
		return nil, task.ErrSuperseded
	}
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to fetch airport page", "page", n, "error", err)
		return nil, fmt.Errorf("failed to fetch page %d: %w", n, err)
	}

	return page, nil
}

// Next moves to the page after the latest requested one.
func (p *Pager) Next(ctx context.Context) (*models.Page[models.AirportSummary], error) {
	return p.move(ctx, func(current int) int { return current + 1 })
}

// Prev moves to the page before the latest requested one.
func (p *Pager) Prev(ctx context.Context) (*models.Page[models.AirportSummary], error) {
	return p.move(ctx, func(current int) int { return current - 1 })
}

// GoTo moves to page n.
func (p *Pager) GoTo(ctx context.Context, n int) (*models.Page[models.AirportSummary], error) {
	return p.move(ctx, func(int) int { return n })
}

func (p *Pager) move(ctx context.Context, target func(current int) int) (*models.Page[models.AirportSummary], error) {
	p.mu.RLock()
	current := p.requested
	if current == 0 && p.page != nil {
		current = p.page.Page
	}
	n := target(current)
	inRange := p.inRange(n)
	p.mu.RUnlock()

	if !inRange {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}

	return p.FetchPage(ctx, n)
}

// inRange must be called with p.mu held. Before any page is known only the
// first page is in range.
func (p *Pager) inRange(n int) bool {
	if p.page == nil {
		return n == 1
	}

	return p.page.Contains(n)
}

// State returns a snapshot of the pager.
func (p *Pager) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state := State{Page: p.page, Requested: p.requested, Loading: p.loading}
	if p.err != nil {
		state.Error = backend.Message(p.err)
	}

	return state
}
