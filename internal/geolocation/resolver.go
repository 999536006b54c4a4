// Package geolocation resolves the origin coordinate. Resolution always
// succeeds: when the device position is unavailable, denied, late or out of
// range, the configured fallback point is used instead.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
)

// Source tells where a resolved coordinate came from.
type Source string

const (
	SourceDevice   Source = "device"
	SourceFallback Source = "fallback"
)

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Coordinates models.Coordinates `json:"coordinates"`
	Source      Source             `json:"source"`
	City        string             `json:"city,omitempty"`   // set for the fallback point
	Reason      string             `json:"reason,omitempty"` // why the fallback was used
}

// Listener receives every resolution (the location-changed event).
type Listener func(ctx context.Context, res Resolution)

// Fallback is the documented default point used when the device cannot be located.
type Fallback struct {
	City        string
	Coordinates models.Coordinates
}

// Resolver obtains a coordinate from a Locator with a single bounded attempt.
type Resolver struct {
	locator  Locator
	fallback Fallback
	timeout  time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.RWMutex
	listeners []Listener
}

// NewResolver creates a resolver. locator may be nil (no location capability).
// The fallback point must itself be valid.
func NewResolver(
	locator Locator,
	fallback Fallback,
	timeout time.Duration,
	appMetrics *metrics.Metrics,
	log *slog.Logger,
) (*Resolver, error) {
	if !fallback.Coordinates.Valid() {
		return nil, fmt.Errorf("invalid fallback coordinates: %+v", fallback.Coordinates)
	}

	return &Resolver{
		locator:  locator,
		fallback: fallback,
		timeout:  timeout,
		log:      log,
		metrics:  appMetrics,
	}, nil
}

// OnChange registers a listener for location-changed events.
func (r *Resolver) OnChange(listener Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

// Fallback returns the configured fallback point.
func (r *Resolver) Fallback() Fallback {
	return r.fallback
}

// Resolve makes one attempt to locate the device, never retries, and never
// fails: any problem yields the fallback point. Listeners are notified
// synchronously before Resolve returns.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	res := r.locate(ctx)
	r.metrics.Geolocations.WithLabelValues(string(res.Source)).Inc()

	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, res)
	}

	return res
}

func (r *Resolver) locate(ctx context.Context) Resolution {
	if r.locator == nil {
		return r.fallbackResolution(ctx, ErrUnavailable)
	}

	lctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type fix struct {
		coords *models.Coordinates
		err    error
	}
	// A locator that ignores lctx is abandoned at the deadline.
	done := make(chan fix, 1)
	go func() {
		coords, err := r.locator.Locate(lctx)
		done <- fix{coords: coords, err: err}
	}()

	var (
		coords *models.Coordinates
		err    error
	)
	select {
	case <-lctx.Done():
		err = lctx.Err()
	case got := <-done:
		coords, err = got.coords, got.err
	}
	if err == nil && coords == nil {
		err = ErrUnavailable
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: timed out after %s", ErrUnavailable, r.timeout)
		}
		return r.fallbackResolution(ctx, err)
	}
	if !coords.Valid() {
		return r.fallbackResolution(ctx, fmt.Errorf("%w: out of range position %+v", ErrUnavailable, *coords))
	}

	r.log.DebugContext(ctx, "Device located", "lat", coords.Latitude, "lon", coords.Longitude)

	return Resolution{Coordinates: *coords, Source: SourceDevice}
}

func (r *Resolver) fallbackResolution(ctx context.Context, cause error) Resolution {
	r.log.InfoContext(ctx, "Using fallback location", "city", r.fallback.City, "reason", cause)

	return Resolution{
		Coordinates: r.fallback.Coordinates,
		Source:      SourceFallback,
		City:        r.fallback.City,
		Reason:      cause.Error(),
	}
}
