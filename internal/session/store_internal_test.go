package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/storage"
	"github.com/UnknownOlympus/aerodrome/internal/task"
	"github.com/UnknownOlympus/aerodrome/test/mocks"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *mocks.Backend, storage.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	slot, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"), logger)
	require.NoError(t, err)

	authBackend := mocks.NewBackend(t)
	store := NewStore(authBackend, slot, 5*time.Second, metrics.NewMetrics(prometheus.NewRegistry()), logger)

	return store, authBackend, slot
}

func signedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func TestLoginValidation(t *testing.T) {
	for _, tc := range []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: "x"},
		{name: "empty password", email: "x", password: ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store, authBackend, _ := newTestStore(t)

			_, err := store.Login(t.Context(), tc.email, tc.password)

			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, StateAnonymous, store.Snapshot().State)
			authBackend.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("success derives name from full name and persists token", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		token := signedToken(t, "7", time.Now().Add(time.Hour))
		authBackend.On("Login", mock.Anything, backend.LoginRequest{Username: "anna@example.com", Password: "secret"}).
			Return(&backend.AuthResponse{
				AccessToken: token,
				TokenType:   "bearer",
				User:        models.Profile{ID: "7", FullName: "Anna Petrova", IsVerified: true},
			}, nil).Once()

		identity, err := store.Login(t.Context(), "anna@example.com", "secret")

		require.NoError(t, err)
		assert.Equal(t, models.Identity{Name: "Anna Petrova", Email: "anna@example.com"}, *identity)

		persisted, err := slot.Get(t.Context(), storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, token, persisted)

		snap := store.Snapshot()
		assert.Equal(t, StateAuthenticated, snap.State)
		assert.False(t, snap.VerificationReminder)
		require.NotNil(t, snap.Token)
		assert.Equal(t, "7", snap.Token.Subject)
		assert.NotNil(t, snap.Token.ExpiresAt)
	})

	t.Run("name falls back to the email local part and unverified raises reminder", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)
		authBackend.On("Login", mock.Anything, mock.Anything).
			Return(&backend.AuthResponse{AccessToken: "opaque", User: models.Profile{IsVerified: false}}, nil).Once()

		identity, err := store.Login(t.Context(), "boris@example.com", "secret")

		require.NoError(t, err)
		assert.Equal(t, "boris", identity.Name)
		snap := store.Snapshot()
		assert.True(t, snap.VerificationReminder)
		assert.Nil(t, snap.Token)
	})

	t.Run("rejected credentials return to anonymous", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		authBackend.On("Login", mock.Anything, mock.Anything).
			Return(nil, &backend.Error{Kind: backend.ErrInvalidCredentials, Status: 401, Message: "Wrong password"}).Once()

		_, err := store.Login(t.Context(), "anna@example.com", "bad")

		require.ErrorIs(t, err, backend.ErrInvalidCredentials)
		snap := store.Snapshot()
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Equal(t, "Invalid credentials: Wrong password", snap.Error)
		_, err = slot.Get(t.Context(), storage.KeyToken)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("concurrent login is rejected while authenticating", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)
		release := make(chan struct{})
		started := make(chan struct{})
		authBackend.On("Login", mock.Anything, mock.Anything).
			Return(func(_ context.Context, _ backend.LoginRequest) (*backend.AuthResponse, error) {
				close(started)
				<-release
				return &backend.AuthResponse{AccessToken: "opaque", User: models.Profile{IsVerified: true}}, nil
			}).Once()

		errCh := make(chan error, 1)
		go func() {
			_, err := store.Login(t.Context(), "anna@example.com", "secret")
			errCh <- err
		}()
		<-started

		assert.Equal(t, StateAuthenticating, store.Snapshot().State)
		_, err := store.Login(t.Context(), "anna@example.com", "secret")
		require.ErrorIs(t, err, ErrInProgress)

		close(release)
		require.NoError(t, <-errCh)
		assert.Equal(t, StateAuthenticated, store.Snapshot().State)
	})
}

func TestRegister(t *testing.T) {
	t.Run("password mismatch makes no request", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)

		_, err := store.Register(t.Context(), "Anna", "anna@example.com", "a", "b")

		require.ErrorIs(t, err, ErrPasswordMismatch)
		authBackend.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("missing name is a validation error", func(t *testing.T) {
		store, _, _ := newTestStore(t)

		_, err := store.Register(t.Context(), "", "anna@example.com", "a", "a")

		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("success signals verification email sent for the notice window", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)
		now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }
		authBackend.On("Register", mock.Anything, backend.RegisterRequest{
			Username: "Anna", Email: "anna@example.com", Password: "secret",
		}).Return(&backend.AuthResponse{AccessToken: "opaque", User: models.Profile{}}, nil).Once()

		identity, err := store.Register(t.Context(), "Anna", "anna@example.com", "secret", "secret")

		require.NoError(t, err)
		assert.Equal(t, "anna", identity.Name)
		assert.True(t, store.Snapshot().VerificationSent)
		assert.Equal(t, StateAuthenticated, store.Snapshot().State)

		now = now.Add(6 * time.Second)
		assert.False(t, store.Snapshot().VerificationSent)
	})

	t.Run("field validation error from backend", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)
		authBackend.On("Register", mock.Anything, mock.Anything).
			Return(nil, &backend.Error{Kind: backend.ErrFieldValidation, Status: 422, Message: "too short, bad email"}).Once()

		_, err := store.Register(t.Context(), "Anna", "anna@example.com", "x", "x")

		require.ErrorIs(t, err, backend.ErrFieldValidation)
		assert.Equal(t, "Invalid data: too short, bad email", store.Snapshot().Error)
	})
}

func TestLogout(t *testing.T) {
	store, authBackend, slot := newTestStore(t)
	require.NoError(t, slot.Set(t.Context(), storage.KeyToken, "opaque"))
	restored, err := store.Restore(t.Context())
	require.NoError(t, err)
	require.True(t, restored)

	authBackend.On("Logout", mock.Anything).Return(assert.AnError).Once()

	require.NoError(t, store.Logout(t.Context()))

	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	assert.Empty(t, store.Snapshot().Error)
	_, err = store.Token(t.Context())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRestore(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		store, _, _ := newTestStore(t)

		restored, err := store.Restore(t.Context())

		require.NoError(t, err)
		assert.False(t, restored)
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
	})

	t.Run("token restores with unknown identity", func(t *testing.T) {
		store, _, slot := newTestStore(t)
		require.NoError(t, slot.Set(t.Context(), storage.KeyToken, signedToken(t, "anna@example.com", time.Now())))

		restored, err := store.Restore(t.Context())

		require.NoError(t, err)
		assert.True(t, restored)
		snap := store.Snapshot()
		assert.Equal(t, StateAuthenticated, snap.State)
		assert.Nil(t, snap.Identity)
		assert.Equal(t, "anna@example.com", snap.Token.Subject)
	})
}

func TestFetchProfile(t *testing.T) {
	t.Run("requires a token", func(t *testing.T) {
		store, _, _ := newTestStore(t)

		_, err := store.FetchProfile(t.Context())

		require.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("reads the token at call time", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		require.NoError(t, slot.Set(t.Context(), storage.KeyToken, "first"))
		_, err := store.Restore(t.Context())
		require.NoError(t, err)
		require.NoError(t, slot.Set(t.Context(), storage.KeyToken, "second"))

		authBackend.On("Me", mock.Anything, "second").
			Return(&models.Profile{Email: "anna@example.com", IsVerified: true}, nil).Once()

		profile, err := store.FetchProfile(t.Context())

		require.NoError(t, err)
		assert.Equal(t, "anna@example.com", profile.Email)
		assert.Equal(t, &models.Identity{Name: "anna", Email: "anna@example.com"}, store.Snapshot().Identity)
	})

	t.Run("expired session", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		require.NoError(t, slot.Set(t.Context(), storage.KeyToken, "stale"))
		_, err := store.Restore(t.Context())
		require.NoError(t, err)
		authBackend.On("Me", mock.Anything, "stale").
			Return(nil, &backend.Error{Kind: backend.ErrSessionExpired, Status: 401}).Once()

		_, err = store.FetchProfile(t.Context())
		require.ErrorIs(t, err, backend.ErrSessionExpired)

		require.NoError(t, store.Expire(t.Context()))
		snap := store.Snapshot()
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Equal(t, "Session expired, please sign in again", snap.Error)
		_, err = slot.Get(t.Context(), storage.KeyToken)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestResendVerification(t *testing.T) {
	t.Run("requires an authenticated session", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)

		err := store.ResendVerification(t.Context())

		require.ErrorIs(t, err, ErrNotAuthenticated)
		authBackend.AssertNotCalled(t, "ResendVerification", mock.Anything, mock.Anything)
	})

	t.Run("refreshes the stored token", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }
		require.NoError(t, slot.Set(t.Context(), storage.KeyToken, "old"))
		_, err := store.Restore(t.Context())
		require.NoError(t, err)
		authBackend.On("ResendVerification", mock.Anything, "old").Return("new", nil).Once()

		require.NoError(t, store.ResendVerification(t.Context()))

		token, err := store.Token(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "new", token)
		assert.True(t, store.Snapshot().VerificationSent)

		now = now.Add(5 * time.Second)
		assert.False(t, store.Snapshot().VerificationSent)
	})
}

func restoredStore(t *testing.T, token string) (*Store, *mocks.Backend, storage.Store) {
	t.Helper()

	store, authBackend, slot := newTestStore(t)
	require.NoError(t, slot.Set(t.Context(), storage.KeyToken, token))
	restored, err := store.Restore(t.Context())
	require.NoError(t, err)
	require.True(t, restored)

	return store, authBackend, slot
}

func TestLogoutDuringAuthenticatedCall(t *testing.T) {
	t.Run("profile arriving after logout is dropped", func(t *testing.T) {
		store, authBackend, _ := restoredStore(t, "opaque")
		authBackend.On("Logout", mock.Anything).Return(nil).Once()
		authBackend.On("Me", mock.Anything, "opaque").
			Return(func(ctx context.Context, _ string) (*models.Profile, error) {
				require.NoError(t, store.Logout(ctx))
				return &models.Profile{Email: "anna@example.com", IsVerified: true}, nil
			}).Once()

		_, err := store.FetchProfile(t.Context())

		require.ErrorIs(t, err, task.ErrSuperseded)
		snap := store.Snapshot()
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Nil(t, snap.Profile)
		assert.Nil(t, snap.Identity)
		_, err = store.Token(t.Context())
		require.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("refreshed token arriving after logout is not persisted", func(t *testing.T) {
		store, authBackend, slot := restoredStore(t, "old")
		authBackend.On("Logout", mock.Anything).Return(nil).Once()
		authBackend.On("ResendVerification", mock.Anything, "old").
			Return(func(ctx context.Context, _ string) (string, error) {
				require.NoError(t, store.Logout(ctx))
				return "fresh", nil
			}).Once()

		err := store.ResendVerification(t.Context())

		require.ErrorIs(t, err, task.ErrSuperseded)
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
		assert.False(t, store.Snapshot().VerificationSent)
		_, err = slot.Get(t.Context(), storage.KeyToken)
		require.ErrorIs(t, err, storage.ErrNotFound)

		restored, err := store.Restore(t.Context())
		require.NoError(t, err)
		assert.False(t, restored)
	})

	t.Run("refreshed token does not overwrite a token of a newer sign-in", func(t *testing.T) {
		store, authBackend, slot := restoredStore(t, "old")
		authBackend.On("ResendVerification", mock.Anything, "old").
			Return(func(ctx context.Context, _ string) (string, error) {
				require.NoError(t, slot.Set(ctx, storage.KeyToken, "other"))
				return "fresh", nil
			}).Once()

		err := store.ResendVerification(t.Context())

		require.ErrorIs(t, err, task.ErrSuperseded)
		persisted, err := slot.Get(t.Context(), storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "other", persisted)
	})

	t.Run("login completing after logout is dropped", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		authBackend.On("Logout", mock.Anything).Return(nil).Once()
		authBackend.On("Login", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, _ backend.LoginRequest) (*backend.AuthResponse, error) {
				require.NoError(t, store.Logout(ctx))
				return &backend.AuthResponse{AccessToken: "opaque", User: models.Profile{IsVerified: true}}, nil
			}).Once()

		_, err := store.Login(t.Context(), "anna@example.com", "secret")

		require.ErrorIs(t, err, task.ErrSuperseded)
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
		_, err = slot.Get(t.Context(), storage.KeyToken)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestOAuth(t *testing.T) {
	t.Run("consent url of a supported provider", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)
		authBackend.On("OAuthURL", mock.Anything, ProviderGoogle).Return("https://accounts.google.com/consent", nil).Once()

		consent, err := store.OAuthURL(t.Context(), ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, "https://accounts.google.com/consent", consent)
	})

	t.Run("unsupported provider makes no request", func(t *testing.T) {
		store, authBackend, _ := newTestStore(t)

		_, err := store.OAuthURL(t.Context(), "yandex")
		require.ErrorIs(t, err, ErrUnsupportedProvider)
		_, err = store.CompleteOAuth(t.Context(), "yandex", "c1", "s1")
		require.ErrorIs(t, err, ErrUnsupportedProvider)

		authBackend.AssertNotCalled(t, "OAuthURL", mock.Anything, mock.Anything)
		authBackend.AssertNotCalled(t, "OAuthCallback", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing state is a validation error", func(t *testing.T) {
		store, _, _ := newTestStore(t)

		_, err := store.CompleteOAuth(t.Context(), ProviderGoogle, "c1", "")

		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "state is required")
	})

	t.Run("callback signs in with the returned account", func(t *testing.T) {
		store, authBackend, slot := newTestStore(t)
		authBackend.On("OAuthCallback", mock.Anything, ProviderGoogle, backend.OAuthCallbackRequest{Code: "c1", State: "s1"}).
			Return(&backend.AuthResponse{
				AccessToken: "oauth-token",
				User:        models.Profile{ID: "9", Email: "ivan@gmail.com", IsVerified: true},
			}, nil).Once()

		identity, err := store.CompleteOAuth(t.Context(), ProviderGoogle, "c1", "s1")

		require.NoError(t, err)
		assert.Equal(t, models.Identity{Name: "ivan", Email: "ivan@gmail.com"}, *identity)
		assert.Equal(t, StateAuthenticated, store.Snapshot().State)
		assert.False(t, store.Snapshot().VerificationReminder)
		persisted, err := slot.Get(t.Context(), storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "oauth-token", persisted)
	})
}
