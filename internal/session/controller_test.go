package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotdash/internal/feed"
	"iotdash/internal/gateway"
	"iotdash/internal/mockapi"
	"iotdash/internal/models"
	"iotdash/internal/state"
	"iotdash/internal/tokenstore"
)

type fixture struct {
	backend    *mockapi.Server
	server     *httptest.Server
	store      tokenstore.Store
	gw         *gateway.Gateway
	views      *state.Store
	feeds      *feed.Manager
	controller *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := mockapi.NewServer()
	server := httptest.NewServer(backend.Router())
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore()
	gw := gateway.New(server.URL, 2*time.Second, store)
	views := state.NewStore(0, 0, 0)
	feeds := feed.NewManager(gw, views)

	return &fixture{
		backend:    backend,
		server:     server,
		store:      store,
		gw:         gw,
		views:      views,
		feeds:      feeds,
		controller: NewController(gw, store, feeds, views),
	}
}

func TestLoginWithValidCredentials(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.Login(context.Background(), "admin", "admin123"))
	assert.Equal(t, StateLoggedIn, f.controller.State())

	user := f.controller.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, f.controller.CanMutate())

	session, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
}

func TestLoginWithWrongPassword(t *testing.T) {
	f := newFixture(t)

	err := f.controller.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Invalid username or password", UserMessage(err))
	assert.Equal(t, StateLoggedOut, f.controller.State())

	_, err = f.store.Load()
	assert.ErrorIs(t, err, tokenstore.ErrNoSession)
}

func TestViewerRoleIsReadOnly(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.Login(context.Background(), "viewer", "viewer123"))
	assert.False(t, f.controller.CanMutate())

	// The server enforces the same gate.
	err := f.gw.CreateDevice(context.Background(), models.DeviceForm{
		DeviceID: "dev-100", Name: "New", Type: "temperature",
	})
	var apiErr models.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, models.ErrorCodeForbidden, apiErr.Code)
}

func TestBootstrapRestoresSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Login(context.Background(), "editor", "editor123"))

	// A fresh controller over the same store, like a process restart.
	restarted := NewController(f.gw, f.store, f.feeds, f.views)
	require.NoError(t, restarted.Bootstrap(context.Background()))
	assert.Equal(t, StateLoggedIn, restarted.State())

	user := restarted.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "editor", user.Username)
}

func TestBootstrapWithEmptyStoreStaysLoggedOut(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.Bootstrap(context.Background()))
	assert.Equal(t, StateLoggedOut, f.controller.State())
}

func TestBootstrapWithDeadTokensClearsSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(models.Session{
		AccessToken:     "garbage",
		RefreshToken:    "also-garbage",
		IsAuthenticated: true,
	}))

	err := f.controller.Bootstrap(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateLoggedOut, f.controller.State())

	_, err = f.store.Load()
	assert.ErrorIs(t, err, tokenstore.ErrNoSession)
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Login(context.Background(), "admin", "admin123"))

	// Corrupt the access token but keep the valid refresh token, as after
	// server-side expiry.
	session, err := f.store.Load()
	require.NoError(t, err)
	session.AccessToken = "expired"
	require.NoError(t, f.store.Save(session))

	devices, err := f.gw.Devices(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, devices)

	rotated, err := f.store.Load()
	require.NoError(t, err)
	assert.NotEqual(t, "expired", rotated.AccessToken)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, StateLoggedIn, f.controller.State())
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Login(context.Background(), "admin", "admin123"))

	session, err := f.store.Load()
	require.NoError(t, err)
	usedRefresh := session.RefreshToken

	// First refresh rotates the pair.
	session.AccessToken = "expired"
	require.NoError(t, f.store.Save(session))
	_, err = f.gw.Devices(context.Background())
	require.NoError(t, err)

	// Replaying the consumed refresh token must fail and force logout.
	rotated, err := f.store.Load()
	require.NoError(t, err)
	rotated.AccessToken = "expired"
	rotated.RefreshToken = usedRefresh
	require.NoError(t, f.store.Save(rotated))

	_, err = f.gw.Devices(context.Background())
	assert.ErrorIs(t, err, gateway.ErrAuthExpired)
	assert.Equal(t, StateLoggedOut, f.controller.State())
}

func TestLogoutAlwaysTearsDownEvenWhenServerFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Login(context.Background(), "admin", "admin123"))
	require.NoError(t, f.feeds.StartAlerts(context.Background()))
	require.NoError(t, f.feeds.StartEvents(context.Background()))
	require.Equal(t, 2, f.feeds.OpenFeeds())

	// Kill the backend so the logout notification fails. Force-close the
	// open SSE connections first; otherwise Close blocks waiting for them.
	f.server.CloseClientConnections()
	f.server.Close()

	f.controller.Logout(context.Background())

	assert.Equal(t, StateLoggedOut, f.controller.State())
	assert.Equal(t, 0, f.feeds.OpenFeeds())
	_, err := f.store.Load()
	assert.ErrorIs(t, err, tokenstore.ErrNoSession)
	assert.Empty(t, f.views.Devices())
}

func TestUserMessageMapping(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Device ID already exists!",
		UserMessage(models.NewAPIError(models.ErrorCodeDuplicateResource, "dup", nil, 409)))
	assert.Equal(t, "You do not have permission to do that",
		UserMessage(models.NewAPIError(models.ErrorCodeForbidden, "no", nil, 403)))
	assert.Equal(t, "Could not reach the server",
		UserMessage(models.NewAPIError(models.ErrorCodeNetworkFailure, "down", nil, 0)))
}
