// Package state holds the in-memory UI state shared between gateway
// responses and live feed events.
package state

import (
	"sync"

	"iotdash/internal/models"
)

// Bounds for the client-side ring buffers.
const (
	DefaultAlertMax   = 50
	DefaultEventMax   = 50
	DefaultHistoryMax = 100
)

// Store is the view state container. All access is mutex-guarded; snapshot
// accessors copy out slices so callers never see internal storage.
type Store struct {
	mu sync.RWMutex

	alertMax   int
	eventMax   int
	historyMax int

	devices    []models.Device
	alerts     []models.Alert
	events     []models.DeviceEvent
	analytics  []models.Analytics
	thresholds []models.Threshold

	selectedDevice string
	selectedSensor string
	sensorTypes    []string
	activeTab      string

	latest  map[string]models.SensorReading
	history []models.SensorReading
}

// NewStore creates a store with the given buffer bounds. Non-positive bounds
// fall back to the defaults.
func NewStore(alertMax, eventMax, historyMax int) *Store {
	if alertMax <= 0 {
		alertMax = DefaultAlertMax
	}
	if eventMax <= 0 {
		eventMax = DefaultEventMax
	}
	if historyMax <= 0 {
		historyMax = DefaultHistoryMax
	}
	return &Store{
		alertMax:   alertMax,
		eventMax:   eventMax,
		historyMax: historyMax,
		latest:     make(map[string]models.SensorReading),
	}
}

// SetDevices replaces the device read replica.
func (s *Store) SetDevices(devices []models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
}

// Devices returns a copy of the device list.
func (s *Store) Devices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// SetAlerts replaces the alert buffer with a snapshot, truncated to the bound.
func (s *Store) SetAlerts(alerts []models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(alerts) > s.alertMax {
		alerts = alerts[:s.alertMax]
	}
	s.alerts = alerts
}

// PushAlert prepends a live alert, truncating to the bound.
func (s *Store) PushAlert(alert models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = prepend(s.alerts, alert, s.alertMax)
}

// Alerts returns a copy of the alert buffer.
func (s *Store) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// SetEvents replaces the device event buffer, truncated to the bound.
func (s *Store) SetEvents(events []models.DeviceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(events) > s.eventMax {
		events = events[:s.eventMax]
	}
	s.events = events
}

// PushEvent prepends a live device event, truncating to the bound.
func (s *Store) PushEvent(event models.DeviceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = prepend(s.events, event, s.eventMax)
}

// Events returns a copy of the device event buffer.
func (s *Store) Events() []models.DeviceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DeviceEvent, len(s.events))
	copy(out, s.events)
	return out
}

// SetAnalytics replaces the latest analytics fetch.
func (s *Store) SetAnalytics(analytics []models.Analytics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = analytics
}

// Analytics returns a copy of the latest analytics fetch.
func (s *Store) Analytics() []models.Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Analytics, len(s.analytics))
	copy(out, s.analytics)
	return out
}

// SetThresholds replaces the threshold reference data.
func (s *Store) SetThresholds(thresholds []models.Threshold) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = thresholds
}

// Thresholds returns a copy of the threshold reference data.
func (s *Store) Thresholds() []models.Threshold {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Threshold, len(s.thresholds))
	copy(out, s.thresholds)
	return out
}

// SelectDevice changes the selected device. The dependent sensor selection,
// sensor type list, latest readings, and history must be refetched, so they
// are cleared here.
func (s *Store) SelectDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedDevice = deviceID
	s.selectedSensor = ""
	s.sensorTypes = nil
	s.latest = make(map[string]models.SensorReading)
	s.history = nil
}

// SelectedDevice returns the selected device ID, empty when none.
func (s *Store) SelectedDevice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedDevice
}

// SelectSensor changes the selected sensor type and resets the history
// window. The caller refetches analytics and history for the new selection.
func (s *Store) SelectSensor(sensorType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedSensor = sensorType
	s.history = nil
}

// SelectedSensor returns the selected sensor type, empty when none.
func (s *Store) SelectedSensor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedSensor
}

// SetSensorTypes replaces the sensor type list for the selected device.
func (s *Store) SetSensorTypes(types []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensorTypes = types
}

// SensorTypes returns a copy of the sensor type list.
func (s *Store) SensorTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.sensorTypes))
	copy(out, s.sensorTypes)
	return out
}

// SetActiveTab records the dashboard tab in view.
func (s *Store) SetActiveTab(tab string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTab = tab
}

// ActiveTab returns the dashboard tab in view.
func (s *Store) ActiveTab() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTab
}

// SetHistory replaces the sensor history window, keeping only the most
// recent entries within the bound.
func (s *Store) SetHistory(readings []models.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(readings) > s.historyMax {
		readings = readings[len(readings)-s.historyMax:]
	}
	s.history = readings
}

// PushReading applies a live sensor reading: it replaces the latest reading
// for its sensor type and, when the type matches the current selection,
// appends to the bounded history window.
func (s *Store) PushReading(reading models.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[reading.SensorType] = reading

	if reading.SensorType == s.selectedSensor && s.selectedSensor != "" {
		s.history = append(s.history, reading)
		if len(s.history) > s.historyMax {
			s.history = s.history[len(s.history)-s.historyMax:]
		}
	}
}

// Latest returns the most recent reading per sensor type.
func (s *Store) Latest() map[string]models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.SensorReading, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// History returns a copy of the sensor history window.
func (s *Store) History() []models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SensorReading, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears everything, used on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = nil
	s.alerts = nil
	s.events = nil
	s.analytics = nil
	s.thresholds = nil
	s.selectedDevice = ""
	s.selectedSensor = ""
	s.sensorTypes = nil
	s.activeTab = ""
	s.latest = make(map[string]models.SensorReading)
	s.history = nil
}

func prepend[T any](buf []T, item T, max int) []T {
	out := make([]T, 0, len(buf)+1)
	out = append(out, item)
	out = append(out, buf...)
	if len(out) > max {
		out = out[:max]
	}
	return out
}
