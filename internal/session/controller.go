// Package session orchestrates login, logout, and profile bootstrap, and
// decides whether the UI shows the login form or the dashboard.
package session

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"iotdash/internal/feed"
	"iotdash/internal/gateway"
	"iotdash/internal/models"
	"iotdash/internal/state"
	"iotdash/internal/tokenstore"
)

// State is the session lifecycle state.
type State string

const (
	StateLoggedOut State = "LoggedOut"
	StateLoggingIn State = "LoggingIn"
	StateLoggedIn  State = "LoggedIn"
)

// ErrInvalidCredentials is returned by Login when the server rejects the
// username/password pair.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Controller drives the LoggedOut -> LoggingIn -> LoggedIn state machine.
type Controller struct {
	gw    *gateway.Gateway
	store tokenstore.Store
	feeds *feed.Manager
	views *state.Store

	mu    sync.Mutex
	state State
}

// NewController wires the controller and registers the forced-logout hook on
// the gateway so an unrecoverable refresh failure tears the session down.
func NewController(gw *gateway.Gateway, store tokenstore.Store, feeds *feed.Manager, views *state.Store) *Controller {
	c := &Controller{
		gw:    gw,
		store: store,
		feeds: feeds,
		views: views,
		state: StateLoggedOut,
	}
	gw.OnAuthExpired(c.forceLogout)
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Bootstrap restores the session on process start. When the store holds an
// authenticated session it transitions to LoggedIn optimistically and fetches
// the profile; a profile-fetch failure clears the session again.
func (c *Controller) Bootstrap(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil || !session.IsAuthenticated || session.AccessToken == "" {
		c.setState(StateLoggedOut)
		return nil
	}

	c.setState(StateLoggedIn)
	log.Println("Session: restored from store, fetching profile")

	user, err := c.gw.Profile(ctx)
	if err != nil {
		log.Println("Session: profile fetch failed during bootstrap:", err)
		if clearErr := c.store.Clear(); clearErr != nil {
			log.Println("Session: failed to clear token store:", clearErr)
		}
		c.setState(StateLoggedOut)
		return err
	}

	session.User = &user
	if err := c.store.Save(session); err != nil {
		log.Println("Session: failed to cache profile:", err)
	}
	return nil
}

// Login posts credentials and, on success, stores the issued tokens and the
// fetched profile. A 404-class rejection maps to ErrInvalidCredentials.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	c.setState(StateLoggingIn)

	pair, err := c.gw.Login(ctx, username, password)
	if err != nil {
		c.setState(StateLoggedOut)
		var apiErr models.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return ErrInvalidCredentials
		}
		return err
	}

	session := models.Session{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		IsAuthenticated: true,
	}
	if err := c.store.Save(session); err != nil {
		c.setState(StateLoggedOut)
		return err
	}

	user, err := c.gw.Profile(ctx)
	if err != nil {
		log.Println("Session: profile fetch failed after login:", err)
		if clearErr := c.store.Clear(); clearErr != nil {
			log.Println("Session: failed to clear token store:", clearErr)
		}
		c.setState(StateLoggedOut)
		return err
	}

	session.User = &user
	if err := c.store.Save(session); err != nil {
		log.Println("Session: failed to cache profile:", err)
	}

	c.setState(StateLoggedIn)
	log.Printf("Session: %s logged in as %s", user.Username, user.Role)
	return nil
}

// Logout notifies the server best-effort, then always stops every live feed,
// resets the view state, and clears the token store.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.gw.Logout(ctx); err != nil {
		log.Println("Session: server logout failed (ignored):", err)
	}

	c.feeds.StopAll()
	c.views.Reset()
	if err := c.store.Clear(); err != nil {
		log.Println("Session: failed to clear token store:", err)
	}
	c.setState(StateLoggedOut)
	log.Println("Session: logged out")
}

// forceLogout is the unrecoverable-401 path. The gateway has already cleared
// the token store.
func (c *Controller) forceLogout() {
	log.Println("Session: token refresh failed, forcing logout")
	c.feeds.StopAll()
	c.views.Reset()
	c.setState(StateLoggedOut)
}

// CurrentUser returns the cached profile, nil when not logged in.
func (c *Controller) CurrentUser() *models.User {
	session, err := c.store.Load()
	if err != nil {
		return nil
	}
	return session.User
}

// CanMutate reports whether the logged-in role may create, edit, or delete
// devices. Viewer is read-only.
func (c *Controller) CanMutate() bool {
	user := c.CurrentUser()
	return user != nil && user.Role.CanMutate()
}
