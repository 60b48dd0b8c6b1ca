package models

import "time"

// AlertSeverity classifies how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Alert is a threshold violation or anomaly raised for a device sensor.
type Alert struct {
	DeviceID   string        `json:"deviceId"`
	SensorType string        `json:"sensorType"`
	Message    string        `json:"message"`
	Severity   AlertSeverity `json:"severity"`
	Value      float64       `json:"value"`
	Timestamp  time.Time     `json:"timestamp"`
}

// DeviceEvent records a lifecycle or operational event for a device.
type DeviceEvent struct {
	DeviceID    string    `json:"deviceId"`
	EventType   string    `json:"eventType"`
	Description string    `json:"description"`
	EventTime   time.Time `json:"eventTime"`
}
