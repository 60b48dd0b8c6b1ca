package models

import "time"

// SensorReading is one point in the append-only stream for a device sensor.
type SensorReading struct {
	DeviceID   string    `json:"deviceId"`
	SensorType string    `json:"sensorType"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Analytics is the server-computed daily aggregate for one device sensor.
type Analytics struct {
	DeviceID       string    `json:"deviceId"`
	SensorType     string    `json:"sensorType"`
	Date           string    `json:"date"`
	AvgValue       float64   `json:"avgValue"`
	MinValue       float64   `json:"minValue"`
	MaxValue       float64   `json:"maxValue"`
	DataPoints     int       `json:"dataPoints"`
	PredictedValue *float64  `json:"predictedValue,omitempty"`
	ProcessedAt    time.Time `json:"processedAt"`
}

// Threshold is static reference data bounding a sensor type.
type Threshold struct {
	SensorType string  `json:"sensorType"`
	MinValue   float64 `json:"minValue"`
	MaxValue   float64 `json:"maxValue"`
}
