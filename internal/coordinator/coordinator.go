// Package coordinator owns the client state and reconciles geolocation, the
// city index, the airport directory, proximity results, the detail view and
// the session behind a narrow set of commands.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/cities"
	"github.com/UnknownOlympus/aerodrome/internal/detail"
	"github.com/UnknownOlympus/aerodrome/internal/directory"
	"github.com/UnknownOlympus/aerodrome/internal/geolocation"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/proximity"
	"github.com/UnknownOlympus/aerodrome/internal/session"
	"github.com/UnknownOlympus/aerodrome/internal/storage"
	"github.com/UnknownOlympus/aerodrome/internal/task"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrValidation is returned before any request when a form is incomplete.
	ErrValidation = errors.New("validation error")
	// ErrNotVerified is returned when a verified account is required.
	ErrNotVerified = errors.New("account is not verified")
)

// Geocoder resolves a coordinate to a city name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error)
}

// Reviews posts airport reviews.
type Reviews interface {
	AddReview(ctx context.Context, token string, review models.Review) error
}

// Deps are the components the coordinator orchestrates.
type Deps struct {
	Resolver  *geolocation.Resolver
	Cities    *cities.Index
	Pager     *directory.Pager
	Proximity *proximity.Engine
	Detail    *detail.Enricher
	Session   *session.Store
	Geocoder  Geocoder
	Reviews   Reviews
	Slot      storage.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type cityChoice struct {
	name   string
	coords models.Coordinates
}

// Coordinator is the single owner of the cross-component client state.
type Coordinator struct {
	resolver  *geolocation.Resolver
	cities    *cities.Index
	pager     *directory.Pager
	proximity *proximity.Engine
	detail    *detail.Enricher
	session   *session.Store
	geocoder  Geocoder
	reviews   Reviews
	slot      storage.Store
	validate  *validator.Validate
	metrics   *metrics.Metrics
	log       *slog.Logger

	originSlot  *task.Slot
	geocodeSlot *task.Slot

	mu            sync.RWMutex
	location      *geolocation.Resolution
	city          *cityChoice
	locationName  string
	cityQuery     string
	authRequested bool
	userRequested bool
}

// New wires the coordinator and subscribes it to location changes.
func New(deps Deps) *Coordinator {
	c := &Coordinator{
		resolver:    deps.Resolver,
		cities:      deps.Cities,
		pager:       deps.Pager,
		proximity:   deps.Proximity,
		detail:      deps.Detail,
		session:     deps.Session,
		geocoder:    deps.Geocoder,
		reviews:     deps.Reviews,
		slot:        deps.Slot,
		validate:    validator.New(),
		metrics:     deps.Metrics,
		log:         deps.Logger,
		originSlot:  task.NewSlot("origin"),
		geocodeSlot: task.NewSlot("geocode"),
	}
	c.resolver.OnChange(c.locationChanged)

	return c
}

func (c *Coordinator) locationChanged(ctx context.Context, res geolocation.Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.location = &res
	c.log.DebugContext(ctx, "Location changed", "source", res.Source,
		"lat", res.Coordinates.Latitude, "lon", res.Coordinates.Longitude)
}

// Start restores the session, resolves the origin (re-centering on the
// persisted city if there is one), then loads the first directory page, the
// nearest airports, the origin's city name and the profile in parallel.
// Failures of individual sources are logged and left in their state; Start
// fails only when ctx ends.
func (c *Coordinator) Start(ctx context.Context) error {
	authenticated, err := c.session.Restore(ctx)
	if err != nil {
		c.log.WarnContext(ctx, "Failed to restore session", "error", err)
	}

	_, ticket := c.originSlot.Begin(ctx)
	defer ticket.Finish()

	res := c.resolver.Resolve(ctx)

	if name, lastErr := c.slot.Get(ctx, storage.KeyLastCity); lastErr == nil && name != "" {
		_, err = c.applyCity(ctx, ticket, name, false)
		c.ignore(ctx, "last city", err)
	} else if lastErr != nil && !errors.Is(lastErr, storage.ErrNotFound) {
		c.log.WarnContext(ctx, "Failed to read last city", "error", lastErr)
	}

	origin := c.origin()
	if origin == nil {
		origin = &Origin{Coordinates: res.Coordinates, Source: res.Source, City: res.City, Reason: res.Reason}
	}

	var group errgroup.Group
	group.Go(func() error {
		c.ignore(ctx, "directory", c.pagerResult(c.pager.FetchPage(ctx, 1)))
		return nil
	})
	group.Go(func() error {
		_, nearestErr := c.proximity.RefreshIf(ctx, origin.Coordinates, ticket.Current)
		c.ignore(ctx, "nearest", nearestErr)
		return nil
	})
	if origin.Source != SourceCity {
		group.Go(func() error {
			c.ignore(ctx, "reverse geocode", c.refreshLocationName(ctx, origin.Coordinates))
			return nil
		})
	}
	if authenticated {
		group.Go(func() error {
			_, profileErr := c.FetchProfile(ctx)
			c.ignore(ctx, "profile", profileErr)
			return nil
		})
	}

	_ = group.Wait()
	c.log.InfoContext(ctx, "Startup completed", "origin_source", origin.Source)

	return ctx.Err()
}

// Relocate resolves the device position again, drops the selected city and
// recomputes the nearest airports.
func (c *Coordinator) Relocate(ctx context.Context) (*Origin, error) {
	_, ticket := c.originSlot.Begin(ctx)
	defer ticket.Finish()

	res := c.resolver.Resolve(ctx)
	if !ticket.Commit(func() {
		c.mu.Lock()
		c.city = nil
		c.mu.Unlock()

		if err := c.slot.Delete(ctx, storage.KeyLastCity); err != nil {
			c.log.WarnContext(ctx, "Failed to forget last city", "error", err)
		}
	}) {
		c.metrics.Superseded.WithLabelValues(c.originSlot.Name()).Inc()
		return nil, task.ErrSuperseded
	}

	origin := &Origin{Coordinates: res.Coordinates, Source: res.Source, City: res.City, Reason: res.Reason}

	var (
		group      errgroup.Group
		nearestErr error
	)
	group.Go(func() error {
		_, nearestErr = c.proximity.RefreshIf(ctx, origin.Coordinates, ticket.Current)
		c.ignore(ctx, "nearest", nearestErr)
		return nil
	})
	group.Go(func() error {
		c.ignore(ctx, "reverse geocode", c.refreshLocationName(ctx, origin.Coordinates))
		return nil
	})
	_ = group.Wait()

	if errors.Is(nearestErr, task.ErrSuperseded) {
		return nil, nearestErr
	}

	return origin, nil
}

// SelectCity makes the named city the origin, persists it and recomputes the
// nearest airports. The directory page is left untouched.
func (c *Coordinator) SelectCity(ctx context.Context, name string) (*Origin, error) {
	_, ticket := c.originSlot.Begin(ctx)
	defer ticket.Finish()

	origin, err := c.applyCity(ctx, ticket, name, true)
	if err != nil {
		return nil, err
	}

	_, err = c.proximity.RefreshIf(ctx, origin.Coordinates, ticket.Current)
	if errors.Is(err, task.ErrSuperseded) {
		return nil, err
	}
	c.ignore(ctx, "nearest", err)

	return origin, nil
}

// applyCity looks the city up and makes it the origin if ticket is still the
// latest origin request. With persist the city is stored as the last city in
// the same step, so a newer origin request always persists after it.
func (c *Coordinator) applyCity(ctx context.Context, ticket task.Ticket, name string, persist bool) (*Origin, error) {
	coords, err := c.cities.Lookup(ctx, name)
	if !ticket.Current() {
		c.metrics.Superseded.WithLabelValues(c.originSlot.Name()).Inc()
		return nil, task.ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up city %q: %w", name, err)
	}

	if !ticket.Commit(func() {
		c.mu.Lock()
		c.city = &cityChoice{name: name, coords: coords}
		c.locationName = name
		c.mu.Unlock()

		if !persist {
			return
		}
		if err := c.slot.Set(ctx, storage.KeyLastCity, name); err != nil {
			c.log.WarnContext(ctx, "Failed to persist last city", "city", name, "error", err)
		}
	}) {
		c.metrics.Superseded.WithLabelValues(c.originSlot.Name()).Inc()
		return nil, task.ErrSuperseded
	}
	c.geocodeSlot.Invalidate()
	c.log.InfoContext(ctx, "City selected", "city", name)

	return &Origin{Coordinates: coords, Source: SourceCity, City: name}, nil
}

// refreshLocationName names a device or fallback origin. A selected city
// names the origin itself, so a reverse geocode landing after a city was
// chosen is dropped.
func (c *Coordinator) refreshLocationName(ctx context.Context, coords models.Coordinates) error {
	tctx, ticket := c.geocodeSlot.Begin(ctx)
	defer ticket.Finish()

	name, err := c.geocoder.ReverseGeocode(tctx, coords)
	applied := false
	if !ticket.Commit(func() {
		if err != nil {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.city == nil {
			c.locationName = name
			applied = true
		}
	}) {
		c.metrics.Superseded.WithLabelValues(c.geocodeSlot.Name()).Inc()
		return task.ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("failed to reverse geocode origin: %w", err)
	}
	if !applied {
		return task.ErrSuperseded
	}

	return nil
}

// FilterCities sets the city search text and returns the matching names.
func (c *Coordinator) FilterCities(query string) []string {
	c.mu.Lock()
	c.cityQuery = query
	c.mu.Unlock()

	return c.cities.Filter(query)
}

// NextPage moves the directory one page forward.
func (c *Coordinator) NextPage(ctx context.Context) error {
	return c.pagerResult(c.pager.Next(ctx))
}

// PrevPage moves the directory one page back.
func (c *Coordinator) PrevPage(ctx context.Context) error {
	return c.pagerResult(c.pager.Prev(ctx))
}

// GoToPage moves the directory to page n.
func (c *Coordinator) GoToPage(ctx context.Context, n int) error {
	return c.pagerResult(c.pager.GoTo(ctx, n))
}

func (c *Coordinator) pagerResult(_ *models.Page[models.AirportSummary], err error) error {
	return err
}

// OpenDetail opens the detail view of the airport with the given id. The
// distance is measured from the current origin.
func (c *Coordinator) OpenDetail(ctx context.Context, id uuid.UUID) error {
	origin := c.origin()
	if origin == nil {
		fallback := c.resolver.Fallback()
		origin = &Origin{Coordinates: fallback.Coordinates, Source: geolocation.SourceFallback, City: fallback.City}
	}

	return c.detail.Open(ctx, c.summary(id), origin.Coordinates)
}

// summary finds the listed summary of an airport, or a bare one carrying the id.
func (c *Coordinator) summary(id uuid.UUID) models.AirportSummary {
	if page := c.pager.State().Page; page != nil {
		for _, item := range page.Items {
			if item.ID == id {
				return item
			}
		}
	}
	for _, nearby := range c.proximity.State().Airports {
		if nearby.ID == id {
			return nearby.Summary()
		}
	}
	for _, neighbor := range c.detail.View().Neighbors {
		if neighbor.ID == id {
			return neighbor.Summary()
		}
	}

	return models.AirportSummary{ID: id}
}

// CloseDetail closes the detail view.
func (c *Coordinator) CloseDetail() {
	c.detail.Close()
}

// Login authenticates and closes the auth dialog on success.
func (c *Coordinator) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := c.session.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setModal(&c.authRequested, false)

	return identity, nil
}

// Register creates an account and closes the auth dialog on success.
func (c *Coordinator) Register(ctx context.Context, name, email, password, confirm string) (*models.Identity, error) {
	identity, err := c.session.Register(ctx, name, email, password, confirm)
	if err != nil {
		return nil, err
	}
	c.setModal(&c.authRequested, false)

	return identity, nil
}

// OAuthURL returns the consent page of a third-party sign-in provider.
func (c *Coordinator) OAuthURL(ctx context.Context, provider string) (string, error) {
	return c.session.OAuthURL(ctx, provider)
}

// CompleteOAuth finishes a third-party sign-in and closes the auth dialog on success.
func (c *Coordinator) CompleteOAuth(ctx context.Context, provider, code, state string) (*models.Identity, error) {
	identity, err := c.session.CompleteOAuth(ctx, provider, code, state)
	if err != nil {
		return nil, err
	}
	c.setModal(&c.authRequested, false)

	return identity, nil
}

// Logout ends the session and closes the user dialog.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.setModal(&c.userRequested, false)

	return c.session.Logout(ctx)
}

// ResendVerification asks for another confirmation email.
func (c *Coordinator) ResendVerification(ctx context.Context) error {
	return c.authenticated(ctx, c.session.ResendVerification(ctx))
}

// FetchProfile refreshes the profile of the signed-in user.
func (c *Coordinator) FetchProfile(ctx context.Context) (*models.Profile, error) {
	profile, err := c.session.FetchProfile(ctx)
	if err = c.authenticated(ctx, err); err != nil {
		return nil, err
	}

	return profile, nil
}

// AddReview posts a review of an airport. The session must be signed in with
// a verified account and the rating must be between 1 and 5.
func (c *Coordinator) AddReview(ctx context.Context, airportID uuid.UUID, content string, rating int) error {
	review := models.Review{AirportID: airportID, Content: strings.TrimSpace(content), Rating: rating}
	if err := c.validate.Struct(review); err != nil {
		return fmt.Errorf("%w: review needs an airport, text and a rating from 1 to 5", ErrValidation)
	}

	snap := c.session.Snapshot()
	if snap.State != session.StateAuthenticated {
		return session.ErrNotAuthenticated
	}
	profile := snap.Profile
	if profile == nil {
		var err error
		if profile, err = c.FetchProfile(ctx); err != nil {
			return err
		}
	}
	if !profile.IsVerified {
		return ErrNotVerified
	}

	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}

	if err = c.reviews.AddReview(ctx, token, review); err != nil {
		return c.authenticated(ctx, fmt.Errorf("failed to add review: %w", err))
	}
	c.log.InfoContext(ctx, "Review added", "airport_id", airportID, "rating", rating)

	return nil
}

// authenticated forces the session to anonymous when err reports an expired session.
func (c *Coordinator) authenticated(ctx context.Context, err error) error {
	if errors.Is(err, backend.ErrSessionExpired) {
		c.setModal(&c.userRequested, false)
		if expireErr := c.session.Expire(ctx); expireErr != nil {
			c.log.ErrorContext(ctx, "Failed to clear expired session", "error", expireErr)
		}
	}

	return err
}

// OpenAuthModal requests the sign-in dialog.
func (c *Coordinator) OpenAuthModal() {
	c.setModal(&c.authRequested, true)
}

// CloseAuthModal dismisses the sign-in dialog.
func (c *Coordinator) CloseAuthModal() {
	c.setModal(&c.authRequested, false)
}

// OpenUserModal requests the account dialog and refreshes the profile shown in it.
func (c *Coordinator) OpenUserModal(ctx context.Context) error {
	c.setModal(&c.userRequested, true)
	if c.session.Snapshot().State != session.StateAuthenticated {
		return nil
	}
	_, err := c.FetchProfile(ctx)

	return err
}

// CloseUserModal dismisses the account dialog.
func (c *Coordinator) CloseUserModal() {
	c.setModal(&c.userRequested, false)
}

func (c *Coordinator) setModal(flag *bool, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	*flag = open
}

// State returns a consistent snapshot. Dialog visibility is derived: the auth
// dialog only while signed out, the user dialog only while signed in, the
// detail dialog only while the detail view is visible.
func (c *Coordinator) State() Snapshot {
	sess := c.session.Snapshot()
	view := c.detail.View()

	c.mu.RLock()
	query := c.cityQuery
	snap := Snapshot{
		Origin:       c.originLocked(),
		LocationName: c.locationName,
		CityQuery:    query,
		Modals: Modals{
			Auth:    c.authRequested && sess.State != session.StateAuthenticated,
			User:    c.userRequested && sess.State == session.StateAuthenticated,
			Details: view.Visible,
		},
	}
	c.mu.RUnlock()

	snap.Cities = c.cities.Filter(query)
	snap.Directory = c.pager.State()
	snap.Nearest = c.proximity.State()
	snap.Detail = view
	snap.Session = sess

	return snap
}

func (c *Coordinator) origin() *Origin {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.originLocked()
}

// originLocked must be called with c.mu held. A selected city wins over the
// resolved location.
func (c *Coordinator) originLocked() *Origin {
	switch {
	case c.city != nil:
		return &Origin{Coordinates: c.city.coords, Source: SourceCity, City: c.city.name}
	case c.location != nil:
		return &Origin{
			Coordinates: c.location.Coordinates,
			Source:      c.location.Source,
			City:        c.location.City,
			Reason:      c.location.Reason,
		}
	default:
		return nil
	}
}

func (c *Coordinator) ignore(ctx context.Context, what string, err error) {
	if err == nil || errors.Is(err, task.ErrSuperseded) {
		return
	}
	c.log.WarnContext(ctx, "Background load failed", "source", what, "error", err)
}
