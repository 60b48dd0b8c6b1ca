// Package feed owns the three live SSE subscriptions and their lifecycle.
package feed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"

	"iotdash/internal/models"
	"iotdash/internal/sse"
	"iotdash/internal/state"
)

// StreamOpener opens an authenticated SSE connection. Implemented by the
// request gateway.
type StreamOpener interface {
	OpenStream(ctx context.Context, path string) (io.ReadCloser, error)
}

// Manager opens and closes the alert, device-event, and per-device sensor
// feeds. At most one sensor feed is open at a time; all feeds must be stopped
// on logout or teardown.
type Manager struct {
	opener StreamOpener
	views  *state.Store

	mu           sync.Mutex
	alerts       *sse.Subscription
	events       *sse.Subscription
	sensor       *sse.Subscription
	sensorDevice string

	wg sync.WaitGroup
}

// NewManager creates a feed manager pushing into views.
func NewManager(opener StreamOpener, views *state.Store) *Manager {
	return &Manager{opener: opener, views: views}
}

// StartAlerts opens the alerts feed. A feed already running is left alone.
func (m *Manager) StartAlerts(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alerts != nil {
		return nil
	}

	body, err := m.opener.OpenStream(ctx, "/alerts/sse")
	if err != nil {
		return err
	}
	sub := sse.Subscribe("alerts", body)
	m.alerts = sub

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range sub.Events() {
			var alert models.Alert
			if err := json.Unmarshal(ev.Data, &alert); err != nil {
				log.Println("Feed: dropping malformed alert event:", err)
				continue
			}
			m.views.PushAlert(alert)
		}
	}()
	return nil
}

// StartEvents opens the device-events feed.
func (m *Manager) StartEvents(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events != nil {
		return nil
	}

	body, err := m.opener.OpenStream(ctx, "/device-events/sse")
	if err != nil {
		return err
	}
	sub := sse.Subscribe("device-events", body)
	m.events = sub

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range sub.Events() {
			var event models.DeviceEvent
			if err := json.Unmarshal(ev.Data, &event); err != nil {
				log.Println("Feed: dropping malformed device event:", err)
				continue
			}
			m.views.PushEvent(event)
		}
	}()
	return nil
}

// WatchDevice scopes the sensor feed to deviceID. Any previously open sensor
// feed is closed before the new one is opened, so two sensor feeds are never
// open at once. An empty deviceID just closes the current feed.
func (m *Manager) WatchDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sensor != nil {
		if m.sensorDevice == deviceID {
			return nil
		}
		m.sensor.Stop()
		m.sensor = nil
		m.sensorDevice = ""
	}
	if deviceID == "" {
		return nil
	}

	body, err := m.opener.OpenStream(ctx, "/sensor-data/"+deviceID+"/sse")
	if err != nil {
		return err
	}
	sub := sse.Subscribe("sensor:"+deviceID, body)
	m.sensor = sub
	m.sensorDevice = deviceID

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range sub.Events() {
			var reading models.SensorReading
			if err := json.Unmarshal(ev.Data, &reading); err != nil {
				log.Println("Feed: dropping malformed sensor reading:", err)
				continue
			}
			m.views.PushReading(reading)
		}
	}()
	return nil
}

// StopAll closes every open feed and waits for their consumers to drain.
func (m *Manager) StopAll() {
	m.mu.Lock()
	if m.alerts != nil {
		m.alerts.Stop()
		m.alerts = nil
	}
	if m.events != nil {
		m.events.Stop()
		m.events = nil
	}
	if m.sensor != nil {
		m.sensor.Stop()
		m.sensor = nil
		m.sensorDevice = ""
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// OpenFeeds reports how many feeds are currently held open.
func (m *Manager) OpenFeeds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	if m.alerts != nil {
		n++
	}
	if m.events != nil {
		n++
	}
	if m.sensor != nil {
		n++
	}
	return n
}

// WatchedDevice returns the device the sensor feed is scoped to, empty when
// no sensor feed is open.
func (m *Manager) WatchedDevice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensorDevice
}
