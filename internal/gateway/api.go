package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"iotdash/internal/models"
)

// Typed wrappers over the backend REST surface. Each call goes through the
// gateway's bearer-attach and single-refresh-retry path.

func decodeInto(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Devices fetches the full device list.
func (g *Gateway) Devices(ctx context.Context) ([]models.Device, error) {
	resp, err := g.execute(ctx, apiRequest{method: http.MethodGet, path: "/devices"})
	if err != nil {
		return nil, err
	}
	var devices []models.Device
	if err := decodeInto(resp.Body(), &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// CreateDevice registers a new device. The server answers 409 when the
// deviceId is already taken.
func (g *Gateway) CreateDevice(ctx context.Context, form models.DeviceForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	_, err := g.execute(ctx, apiRequest{
		method: http.MethodPost,
		path:   "/devices",
		form:   form.FormFields(),
	})
	return err
}

// UpdateDevice patches an existing device record.
func (g *Gateway) UpdateDevice(ctx context.Context, deviceID string, form models.DeviceForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	_, err := g.execute(ctx, apiRequest{
		method: http.MethodPatch,
		path:   "/devices/" + deviceID,
		form:   form.FormFields(),
	})
	return err
}

// DeleteDevice removes a device.
func (g *Gateway) DeleteDevice(ctx context.Context, deviceID string) error {
	_, err := g.execute(ctx, apiRequest{
		method: http.MethodDelete,
		path:   "/devices/" + deviceID,
	})
	return err
}

// LatestReadings fetches the most recent reading per sensor type for a device.
func (g *Gateway) LatestReadings(ctx context.Context, deviceID string) ([]models.SensorReading, error) {
	resp, err := g.execute(ctx, apiRequest{
		method: http.MethodGet,
		path:   "/sensor-data/" + deviceID + "/latest",
	})
	if err != nil {
		return nil, err
	}
	var readings []models.SensorReading
	if err := decodeInto(resp.Body(), &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// SensorHistory fetches the readings recorded for a device on a given date.
func (g *Gateway) SensorHistory(ctx context.Context, deviceID, date string) ([]models.SensorReading, error) {
	resp, err := g.execute(ctx, apiRequest{
		method: http.MethodGet,
		path:   "/sensor-data/" + deviceID,
		query:  map[string]string{"date": date},
	})
	if err != nil {
		return nil, err
	}
	var readings []models.SensorReading
	if err := decodeInto(resp.Body(), &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// Analytics fetches the daily aggregates for a device on a given date.
func (g *Gateway) Analytics(ctx context.Context, deviceID, date string) ([]models.Analytics, error) {
	resp, err := g.execute(ctx, apiRequest{
		method: http.MethodGet,
		path:   "/analytics/" + deviceID,
		query:  map[string]string{"date": date},
	})
	if err != nil {
		return nil, err
	}
	var analytics []models.Analytics
	if err := decodeInto(resp.Body(), &analytics); err != nil {
		return nil, err
	}
	return analytics, nil
}

// Alerts fetches the current alert snapshot.
func (g *Gateway) Alerts(ctx context.Context) ([]models.Alert, error) {
	resp, err := g.execute(ctx, apiRequest{method: http.MethodGet, path: "/alerts"})
	if err != nil {
		return nil, err
	}
	var alerts []models.Alert
	if err := decodeInto(resp.Body(), &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// DeviceEvents fetches device events in the [start, end] window.
func (g *Gateway) DeviceEvents(ctx context.Context, start, end time.Time) ([]models.DeviceEvent, error) {
	resp, err := g.execute(ctx, apiRequest{
		method: http.MethodGet,
		path:   "/device-events",
		query: map[string]string{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, err
	}
	var events []models.DeviceEvent
	if err := decodeInto(resp.Body(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Thresholds fetches the static sensor threshold reference data.
func (g *Gateway) Thresholds(ctx context.Context) ([]models.Threshold, error) {
	resp, err := g.execute(ctx, apiRequest{method: http.MethodGet, path: "/sensor-thresholds"})
	if err != nil {
		return nil, err
	}
	var thresholds []models.Threshold
	if err := decodeInto(resp.Body(), &thresholds); err != nil {
		return nil, err
	}
	return thresholds, nil
}

// Login posts credentials and returns the issued token pair. No bearer or
// refresh retry applies here; a 404 means invalid credentials.
func (g *Gateway) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	var pair models.TokenPair
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.LoginRequest{Username: username, Password: password}).
		SetResult(&pair).
		Post("/auth/login")
	if err != nil {
		return models.TokenPair{}, models.NewAPIError(models.ErrorCodeNetworkFailure,
			fmt.Sprintf("login request failed: %v", err), nil, 0)
	}
	if resp.IsError() {
		return models.TokenPair{}, statusError(resp)
	}
	return pair, nil
}

// Logout notifies the server that the session is ending. The request is
// marked already-retried so a dying token cannot trigger a refresh cycle
// during teardown.
func (g *Gateway) Logout(ctx context.Context) error {
	_, err := g.execute(ctx, apiRequest{method: http.MethodPost, path: "/auth/logout", retried: true})
	return err
}

// Profile fetches the logged-in user's profile.
func (g *Gateway) Profile(ctx context.Context) (models.User, error) {
	resp, err := g.execute(ctx, apiRequest{method: http.MethodGet, path: "/auth/profile"})
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := decodeInto(resp.Body(), &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}
