// Package gateway wraps all outgoing API calls, attaching the bearer token
// and performing the single refresh-and-retry allowed on a 401.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"iotdash/internal/models"
	"iotdash/internal/tokenstore"
)

// ErrAuthExpired is returned when a 401 could not be recovered by a token
// refresh. The token store has been cleared by the time callers see it.
var ErrAuthExpired = errors.New("session expired")

// Gateway issues authenticated requests against the backend API.
type Gateway struct {
	client *resty.Client
	// streams gets its own client so the request timeout does not kill
	// long-lived SSE connections.
	streams *resty.Client
	store   tokenstore.Store

	// onAuthExpired is invoked after an unrecoverable refresh failure,
	// once the store has been cleared. Used to force the UI back to the
	// login view.
	onAuthExpired func()
}

// New creates a Gateway talking to baseURL, persisting rotated tokens
// through store.
func New(baseURL string, timeout time.Duration, store tokenstore.Store) *Gateway {
	return &Gateway{
		client:  resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		streams: resty.New().SetBaseURL(baseURL),
		store:   store,
	}
}

// OnAuthExpired registers the forced-logout callback.
func (g *Gateway) OnAuthExpired(fn func()) {
	g.onAuthExpired = fn
}

// apiRequest is the wrapped request value. The retried flag is owned by the
// single call threading it, never shared state.
type apiRequest struct {
	method  string
	path    string
	query   map[string]string
	body    any
	form    map[string]string
	retried bool
}

func (g *Gateway) execute(ctx context.Context, req apiRequest) (*resty.Response, error) {
	r := g.client.R().SetContext(ctx)

	session, err := g.store.Load()
	if err == nil && session.AccessToken != "" {
		r.SetHeader("Authorization", "Bearer "+session.AccessToken)
	}

	if req.query != nil {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.body)
	}
	if req.form != nil {
		r.SetMultipartFormData(req.form)
	}

	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		return nil, models.NewAPIError(models.ErrorCodeNetworkFailure,
			fmt.Sprintf("request failed: %v", err), nil, 0)
	}

	if resp.StatusCode() == http.StatusUnauthorized && !req.retried {
		log.Printf("Gateway: 401 on %s %s, attempting token refresh", req.method, req.path)
		if err := g.refresh(ctx, session); err != nil {
			log.Println("Gateway: token refresh failed:", err)
			if clearErr := g.store.Clear(); clearErr != nil {
				log.Println("Gateway: failed to clear token store:", clearErr)
			}
			if g.onAuthExpired != nil {
				g.onAuthExpired()
			}
			return nil, ErrAuthExpired
		}
		retry := req
		retry.retried = true
		return g.execute(ctx, retry)
	}

	if resp.IsError() {
		return nil, statusError(resp)
	}
	return resp, nil
}

// refresh exchanges the current token pair for a rotated one and persists it,
// preserving the cached profile.
func (g *Gateway) refresh(ctx context.Context, session models.Session) error {
	if session.RefreshToken == "" {
		return errors.New("no refresh token available")
	}

	var pair models.TokenPair
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.RefreshRequest{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
		}).
		SetResult(&pair).
		Post("/auth/refresh")
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("refresh rejected with status %d", resp.StatusCode())
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return errors.New("refresh response missing tokens")
	}

	session.AccessToken = pair.AccessToken
	session.RefreshToken = pair.RefreshToken
	session.IsAuthenticated = true
	if err := g.store.Save(session); err != nil {
		return fmt.Errorf("failed to persist rotated tokens: %w", err)
	}
	log.Println("Gateway: token refresh succeeded")
	return nil
}

// OpenStream opens a long-lived SSE connection at path with the bearer token
// attached. The caller owns the returned body and must close it. No refresh
// retry is attempted on streams.
func (g *Gateway) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	r := g.streams.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream")

	session, err := g.store.Load()
	if err == nil && session.AccessToken != "" {
		r.SetHeader("Authorization", "Bearer "+session.AccessToken)
	}

	resp, err := r.Get(path)
	if err != nil {
		return nil, models.NewAPIError(models.ErrorCodeNetworkFailure,
			fmt.Sprintf("stream connect failed: %v", err), nil, 0)
	}
	if resp.StatusCode() != http.StatusOK {
		resp.RawBody().Close()
		return nil, models.NewAPIError(models.ErrorCodeInternalError,
			fmt.Sprintf("stream rejected with status %d", resp.StatusCode()), nil, resp.StatusCode())
	}
	return resp.RawBody(), nil
}

// statusError maps a non-2xx response to the client error taxonomy. The
// server's APIError body is used when it decodes; otherwise the status code
// decides.
func statusError(resp *resty.Response) error {
	code := models.ErrorCodeInternalError
	message := fmt.Sprintf("server returned status %d", resp.StatusCode())

	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		code = models.ErrorCodeUnauthorized
		message = "unauthorized"
	case http.StatusForbidden:
		code = models.ErrorCodeForbidden
		message = "no permission"
	case http.StatusNotFound:
		code = models.ErrorCodeNotFound
		message = "not found"
	case http.StatusConflict:
		code = models.ErrorCodeDuplicateResource
		message = "already exists"
	}

	if body := resp.Body(); len(body) > 0 {
		var apiErr models.APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
			apiErr.StatusCode = resp.StatusCode()
			return apiErr
		}
	}
	return models.NewAPIError(code, message, nil, resp.StatusCode())
}
