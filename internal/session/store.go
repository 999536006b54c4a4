// Package session owns the authentication token lifecycle and the identity
// derived from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/storage"
	"github.com/UnknownOlympus/aerodrome/internal/task"
	"github.com/go-playground/validator/v10"
)

// State of the session state machine.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

var (
	// ErrValidation is returned before any request when a required field is empty.
	ErrValidation = errors.New("validation error")
	// ErrPasswordMismatch is returned before any request when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrNotAuthenticated is returned by calls that need a stored token.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInProgress is returned when a login or registration is already running.
	ErrInProgress = errors.New("authentication already in progress")
	// ErrUnsupportedProvider is returned for a sign-in provider the backend does not offer.
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")
)

// ProviderGoogle is the only third-party sign-in the backend completes
// through a JSON callback.
const ProviderGoogle = "google"

// Backend is the authentication part of the airport backend.
type Backend interface {
	Login(ctx context.Context, in backend.LoginRequest) (*backend.AuthResponse, error)
	Register(ctx context.Context, in backend.RegisterRequest) (*backend.AuthResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context, token string) (*models.Profile, error)
	ResendVerification(ctx context.Context, token string) (string, error)
	OAuthURL(ctx context.Context, provider string) (string, error)
	OAuthCallback(ctx context.Context, provider string, in backend.OAuthCallbackRequest) (*backend.AuthResponse, error)
}

type loginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type oauthForm struct {
	Code  string `validate:"required"`
	State string `validate:"required"`
}

type registerForm struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	State                State            `json:"state"`
	Identity             *models.Identity `json:"identity,omitempty"`
	Profile              *models.Profile  `json:"profile,omitempty"`
	Token                *TokenHints      `json:"token,omitempty"`
	VerificationReminder bool             `json:"verification_reminder"`
	VerificationSent     bool             `json:"verification_sent"`
	Error                string           `json:"error,omitempty"`
}

// Store is the session state machine. The token itself lives only in the
// durable slot and is read from it on every authenticated call. Writes and
// deletes of the token happen under mu together with the generation check,
// and generation moves on every sign-in and sign-out, so a response to a call
// made for an earlier session is never applied.
type Store struct {
	backend      Backend
	slot         storage.Store
	validate     *validator.Validate
	noticeWindow time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics
	log          *slog.Logger

	mu         sync.RWMutex
	generation uint64
	state      State
	identity   *models.Identity
	profile    *models.Profile
	hints      *TokenHints
	reminder   bool
	sentAt     time.Time
	err        error
}

// NewStore creates an anonymous session. noticeWindow bounds how long the
// verification-sent flag stays up.
func NewStore(
	authBackend Backend,
	slot storage.Store,
	noticeWindow time.Duration,
	appMetrics *metrics.Metrics,
	log *slog.Logger,
) *Store {
	return &Store{
		backend:      authBackend,
		slot:         slot,
		validate:     validator.New(),
		noticeWindow: noticeWindow,
		now:          time.Now,
		metrics:      appMetrics,
		log:          log,
		state:        StateAnonymous,
	}
}

// Restore picks up a token persisted by a previous run. The session becomes
// authenticated with an unknown identity until the profile is fetched.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	token, err := s.Token(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.hints = readHints(token)
	s.transition(StateAuthenticated)
	s.log.InfoContext(ctx, "Session restored from persisted token")

	return true, nil
}

// Token reads the persisted token. It returns ErrNotAuthenticated when no
// token is stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, err := s.slot.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && token == "") {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	return token, nil
}

// Login authenticates with email and password. Empty fields fail with
// ErrValidation without any request. An unverified account still logs in
// but raises the verification reminder.
func (s *Store) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := s.validate.Struct(loginForm{Email: email, Password: password}); err != nil {
		return nil, validationError(err)
	}

	return s.authenticate(ctx, email, func() (*backend.AuthResponse, error) {
		return s.backend.Login(ctx, backend.LoginRequest{Username: email, Password: password})
	}, false)
}

// Register creates an account and logs in with it. A password confirmation
// mismatch fails with ErrPasswordMismatch before anything else is checked.
func (s *Store) Register(ctx context.Context, name, email, password, confirm string) (*models.Identity, error) {
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	if err := s.validate.Struct(registerForm{Name: name, Email: email, Password: password}); err != nil {
		return nil, validationError(err)
	}

	return s.authenticate(ctx, email, func() (*backend.AuthResponse, error) {
		return s.backend.Register(ctx, backend.RegisterRequest{Username: name, Email: email, Password: password})
	}, true)
}

// OAuthURL returns the consent page of provider the user is sent to.
func (s *Store) OAuthURL(ctx context.Context, provider string) (string, error) {
	if provider != ProviderGoogle {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	consent, err := s.backend.OAuthURL(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("failed to get %s sign-in address: %w", provider, err)
	}

	return consent, nil
}

// CompleteOAuth finishes a third-party sign-in with the code and state the
// provider handed back. It authenticates like Login; the identity comes from
// the account the backend found or created.
func (s *Store) CompleteOAuth(ctx context.Context, provider, code, state string) (*models.Identity, error) {
	if provider != ProviderGoogle {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if err := s.validate.Struct(oauthForm{Code: code, State: state}); err != nil {
		return nil, validationError(err)
	}

	return s.authenticate(ctx, "", func() (*backend.AuthResponse, error) {
		return s.backend.OAuthCallback(ctx, provider, backend.OAuthCallbackRequest{Code: code, State: state})
	}, false)
}

// authenticate runs call and signs in with its result. An empty email is
// taken from the returned profile.
func (s *Store) authenticate(
	ctx context.Context,
	email string,
	call func() (*backend.AuthResponse, error),
	registered bool,
) (*models.Identity, error) {
	s.mu.Lock()
	if s.state == StateAuthenticating {
		s.mu.Unlock()
		return nil, ErrInProgress
	}
	previous := s.state
	generation := s.generation
	s.err = nil
	s.transition(StateAuthenticating)
	s.mu.Unlock()

	resp, err := call()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		s.log.InfoContext(ctx, "Discarding authentication result, session was reset meanwhile")
		return nil, task.ErrSuperseded
	}
	if err == nil {
		err = s.persist(ctx, resp.AccessToken)
	}
	if err != nil {
		s.err = err
		s.transition(previous)
		s.log.WarnContext(ctx, "Authentication failed", "registered", registered, "error", err)
		return nil, err
	}

	if email == "" {
		email = resp.User.Email
	}
	s.identity = &models.Identity{Name: displayName(resp.User.FullName, email), Email: email}
	profile := resp.User
	if profile.Email == "" {
		profile.Email = email
	}
	s.profile = &profile
	s.hints = readHints(resp.AccessToken)
	s.reminder = !resp.User.IsVerified
	if registered {
		s.sentAt = s.now()
	}
	s.generation++
	s.transition(StateAuthenticated)
	s.log.InfoContext(ctx, "Authenticated", "name", s.identity.Name, "verified", resp.User.IsVerified)

	identity := *s.identity
	return &identity, nil
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, token string) error {
	if token == "" {
		return &backend.Error{Kind: backend.ErrServer, Message: "Backend returned no access token"}
	}
	if err := s.slot.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	return nil
}

// Logout forgets the session locally, then tells the backend. A failed
// backend notification does not undo the local logout.
func (s *Store) Logout(ctx context.Context) error {
	err := s.clear(ctx, nil)

	if notifyErr := s.backend.Logout(ctx); notifyErr != nil {
		s.log.WarnContext(ctx, "Backend logout failed", "error", notifyErr)
	}

	return err
}

// Expire forces the session back to anonymous after the backend rejected the
// token. The backend is not contacted.
func (s *Store) Expire(ctx context.Context) error {
	s.log.InfoContext(ctx, "Session expired")
	return s.clear(ctx, &backend.Error{Kind: backend.ErrSessionExpired})
}

func (s *Store) clear(ctx context.Context, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.identity = nil
	s.profile = nil
	s.hints = nil
	s.reminder = false
	s.sentAt = time.Time{}
	s.err = cause
	s.transition(StateAnonymous)

	if err := s.slot.Delete(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}

	return nil
}

// ResendVerification asks for another confirmation email. The refreshed
// token replaces the stored one and the verification-sent flag is raised for
// the notice window. A response arriving after the session was reset is
// dropped with task.ErrSuperseded.
func (s *Store) ResendVerification(ctx context.Context) error {
	generation, err := s.current()
	if err != nil {
		return err
	}

	token, err := s.Token(ctx)
	if err != nil {
		return err
	}

	refreshed, err := s.backend.ResendVerification(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to resend verification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation || s.state != StateAuthenticated {
		return task.ErrSuperseded
	}
	if refreshed != "" {
		stored, getErr := s.slot.Get(ctx, storage.KeyToken)
		if getErr != nil || stored != token {
			return task.ErrSuperseded
		}
		if err = s.slot.Set(ctx, storage.KeyToken, refreshed); err != nil {
			return fmt.Errorf("failed to persist token: %w", err)
		}
		s.hints = readHints(refreshed)
	}
	s.sentAt = s.now()

	return nil
}

// FetchProfile loads the profile of the stored token. A rejected token fails
// with backend.ErrSessionExpired; the caller is expected to call Expire. A
// profile arriving after the session was reset is dropped with
// task.ErrSuperseded.
func (s *Store) FetchProfile(ctx context.Context) (*models.Profile, error) {
	generation, err := s.current()
	if err != nil {
		return nil, err
	}

	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.backend.Me(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation || s.state != StateAuthenticated {
		s.log.DebugContext(ctx, "Discarding profile of a reset session")
		return nil, task.ErrSuperseded
	}
	s.profile = profile
	s.identity = &models.Identity{Name: displayName(profile.FullName, profile.Email), Email: profile.Email}
	s.reminder = !profile.IsVerified

	out := *profile
	return &out, nil
}

// current returns the generation of an authenticated session.
func (s *Store) current() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateAuthenticated {
		return 0, ErrNotAuthenticated
	}

	return s.generation, nil
}

// Snapshot returns the current session view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:                s.state,
		Identity:             s.identity,
		Profile:              s.profile,
		Token:                s.hints,
		VerificationReminder: s.reminder,
		VerificationSent:     !s.sentAt.IsZero() && s.now().Sub(s.sentAt) < s.noticeWindow,
	}
	if s.err != nil {
		snap.Error = backend.Message(s.err)
	}

	return snap
}

// transition must be called with s.mu held.
func (s *Store) transition(to State) {
	s.state = to
	s.metrics.SessionTransitions.WithLabelValues(string(to)).Inc()
}

func displayName(fullName, email string) string {
	if fullName != "" {
		return fullName
	}
	local, _, _ := strings.Cut(email, "@")

	return local
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, strings.ToLower(fe.Field())+" "+describeTag(fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	default:
		return "is invalid"
	}
}
