package mockapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotdash/internal/models"
)

func login(t *testing.T, url, username, password string) models.TokenPair {
	t.Helper()
	body, _ := json.Marshal(models.LoginRequest{Username: username, Password: password})
	resp, err := http.Post(url+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair models.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	return pair
}

func deviceRequest(t *testing.T, method, url, token string, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLoginRejectsBadCredentialsWith404(t *testing.T) {
	server := httptest.NewServer(NewServer().Router())
	defer server.Close()

	body, _ := json.Marshal(models.LoginRequest{Username: "admin", Password: "nope"})
	resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var apiErr models.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, models.ErrorCodeNotFound, apiErr.Code)
}

func TestProtectedEndpointsRequireBearerToken(t *testing.T) {
	server := httptest.NewServer(NewServer().Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/devices")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredAccessTokenIsRejected(t *testing.T) {
	server := httptest.NewServer(NewServer(WithAccessTTL(-time.Minute)).Router())
	defer server.Close()

	pair := login(t, server.URL, "admin", "admin123")

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/devices", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDuplicateDeviceIDGets409AndListUnchanged(t *testing.T) {
	backend := NewServer()
	server := httptest.NewServer(backend.Router())
	defer server.Close()

	pair := login(t, server.URL, "editor", "editor123")

	fields := map[string]string{
		"deviceId": "dev-001", // seeded already
		"name":     "Imposter",
		"location": "Hall Z",
		"type":     "temperature",
		"status":   "Active",
	}
	resp := deviceRequest(t, http.MethodPost, server.URL+"/devices", pair.AccessToken, fields)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var apiErr models.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, models.ErrorCodeDuplicateResource, apiErr.Code)

	// The seeded device is untouched.
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/devices", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()

	var devices []models.Device
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&devices))
	require.Len(t, devices, 2)
	assert.Equal(t, "Boiler North", devices[0].Name)
}

func TestDeviceLifecycle(t *testing.T) {
	backend := NewServer()
	server := httptest.NewServer(backend.Router())
	defer server.Close()

	pair := login(t, server.URL, "admin", "admin123")

	create := deviceRequest(t, http.MethodPost, server.URL+"/devices", pair.AccessToken, map[string]string{
		"deviceId": "dev-010", "name": "Chiller", "location": "Hall C",
		"type": "temperature", "status": "Active",
	})
	create.Body.Close()
	require.Equal(t, http.StatusCreated, create.StatusCode)

	update := deviceRequest(t, http.MethodPatch, server.URL+"/devices/dev-010", pair.AccessToken, map[string]string{
		"deviceId": "dev-010", "name": "Chiller Mk2", "type": "temperature", "status": "Maintenance",
	})
	update.Body.Close()
	require.Equal(t, http.StatusOK, update.StatusCode)

	del, _ := http.NewRequest(http.MethodDelete, server.URL+"/devices/dev-010", nil)
	del.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	delResp, err := http.DefaultClient.Do(del)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	// Every mutation left a device event behind.
	events := backendEvents(t, server.URL, pair.AccessToken)
	require.Len(t, events, 3)
	assert.Equal(t, "Registered", events[0].EventType)
	assert.Equal(t, "Updated", events[1].EventType)
	assert.Equal(t, "Deleted", events[2].EventType)
}

func backendEvents(t *testing.T, url, token string) []models.DeviceEvent {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url+"/device-events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []models.DeviceEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	return events
}

func TestThresholdViolationRaisesAlert(t *testing.T) {
	backend := NewServer()
	server := httptest.NewServer(backend.Router())
	defer server.Close()

	pair := login(t, server.URL, "viewer", "viewer123")

	backend.PublishReading(models.SensorReading{
		DeviceID:   "dev-001",
		SensorType: "temperature",
		Value:      99, // above the seeded max of 45
		Timestamp:  time.Now(),
	})

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var alerts []models.Alert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, float64(99), alerts[0].Value)
}
