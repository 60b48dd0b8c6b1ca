package feed

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotdash/internal/gateway"
	"iotdash/internal/mockapi"
	"iotdash/internal/models"
	"iotdash/internal/state"
	"iotdash/internal/tokenstore"
)

func newManager(t *testing.T) (*mockapi.Server, *Manager, *state.Store) {
	t.Helper()
	backend := mockapi.NewServer()
	server := httptest.NewServer(backend.Router())
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore()
	gw := gateway.New(server.URL, 2*time.Second, store)

	pair, err := gw.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.NoError(t, store.Save(models.Session{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		IsAuthenticated: true,
	}))

	views := state.NewStore(0, 0, 0)
	mgr := NewManager(gw, views)
	t.Cleanup(mgr.StopAll)
	return backend, mgr, views
}

func eventually(t *testing.T, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAlertsFeedPushesIntoViewState(t *testing.T) {
	backend, mgr, views := newManager(t)
	require.NoError(t, mgr.StartAlerts(context.Background()))

	backend.PublishAlert(models.Alert{
		DeviceID:   "dev-001",
		SensorType: "temperature",
		Message:    "too hot",
		Severity:   models.SeverityHigh,
		Value:      99,
		Timestamp:  time.Now(),
	})

	eventually(t, func() bool { return len(views.Alerts()) == 1 }, "alert never reached the view state")
	assert.Equal(t, "too hot", views.Alerts()[0].Message)
}

func TestEventsFeedPushesIntoViewState(t *testing.T) {
	backend, mgr, views := newManager(t)
	require.NoError(t, mgr.StartEvents(context.Background()))

	backend.PublishEvent(models.DeviceEvent{
		DeviceID:    "dev-002",
		EventType:   "Maintenance",
		Description: "filter swap",
		EventTime:   time.Now(),
	})

	eventually(t, func() bool { return len(views.Events()) == 1 }, "event never reached the view state")
	assert.Equal(t, "Maintenance", views.Events()[0].EventType)
}

func TestSensorFeedScopedToSelectedDevice(t *testing.T) {
	backend, mgr, views := newManager(t)
	views.SelectDevice("dev-002")
	views.SelectSensor("humidity")
	require.NoError(t, mgr.WatchDevice(context.Background(), "dev-002"))

	// A reading for another device goes to a hub nobody watches.
	backend.PublishReading(models.SensorReading{
		DeviceID: "dev-001", SensorType: "temperature", Value: 21, Timestamp: time.Now(),
	})
	backend.PublishReading(models.SensorReading{
		DeviceID: "dev-002", SensorType: "humidity", Value: 61, Timestamp: time.Now(),
	})

	eventually(t, func() bool {
		return views.Latest()["humidity"].Value == 61
	}, "reading never reached the view state")
	assert.Len(t, views.History(), 1)
	assert.NotContains(t, views.Latest(), "temperature")
}

func TestSwitchingDevicesLeavesOneSensorFeed(t *testing.T) {
	_, mgr, _ := newManager(t)

	require.NoError(t, mgr.WatchDevice(context.Background(), "dev-001"))
	assert.Equal(t, "dev-001", mgr.WatchedDevice())
	assert.Equal(t, 1, mgr.OpenFeeds())

	require.NoError(t, mgr.WatchDevice(context.Background(), "dev-002"))
	assert.Equal(t, "dev-002", mgr.WatchedDevice())
	assert.Equal(t, 1, mgr.OpenFeeds())

	// Re-selecting the same device keeps the existing feed.
	require.NoError(t, mgr.WatchDevice(context.Background(), "dev-002"))
	assert.Equal(t, 1, mgr.OpenFeeds())

	// Empty selection closes the sensor feed.
	require.NoError(t, mgr.WatchDevice(context.Background(), ""))
	assert.Equal(t, "", mgr.WatchedDevice())
	assert.Equal(t, 0, mgr.OpenFeeds())
}

func TestStartIsIdempotent(t *testing.T) {
	_, mgr, _ := newManager(t)

	require.NoError(t, mgr.StartAlerts(context.Background()))
	require.NoError(t, mgr.StartAlerts(context.Background()))
	assert.Equal(t, 1, mgr.OpenFeeds())
}

func TestStopAllClosesEveryFeed(t *testing.T) {
	_, mgr, _ := newManager(t)

	require.NoError(t, mgr.StartAlerts(context.Background()))
	require.NoError(t, mgr.StartEvents(context.Background()))
	require.NoError(t, mgr.WatchDevice(context.Background(), "dev-001"))
	require.Equal(t, 3, mgr.OpenFeeds())

	mgr.StopAll()
	assert.Equal(t, 0, mgr.OpenFeeds())
	assert.Equal(t, "", mgr.WatchedDevice())
}

func TestLiveAlertsRespectBufferBound(t *testing.T) {
	backend, mgr, views := newManager(t)
	require.NoError(t, mgr.StartAlerts(context.Background()))

	for i := 0; i < 60; i++ {
		backend.PublishAlert(models.Alert{
			DeviceID: "dev-001",
			Message:  "spam",
			Severity: models.SeverityLow,
		})
		// Pace the publishes so none are dropped by the broadcast hub.
		time.Sleep(time.Millisecond)
	}

	eventually(t, func() bool { return len(views.Alerts()) == state.DefaultAlertMax },
		"alert buffer never filled to its bound")
	// It must not grow past the bound no matter the volume.
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(views.Alerts()), state.DefaultAlertMax)
}
