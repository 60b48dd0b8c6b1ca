package models

import "time"

// DeviceStatus is the lifecycle state of a registered device.
type DeviceStatus string

const (
	StatusActive         DeviceStatus = "Active"
	StatusInactive       DeviceStatus = "Inactive"
	StatusOffline        DeviceStatus = "Offline"
	StatusFaulty         DeviceStatus = "Faulty"
	StatusMaintenance    DeviceStatus = "Maintenance"
	StatusDecommissioned DeviceStatus = "Decommissioned"
)

// Device represents a registered IoT device. The server owns the record;
// the client holds a read replica refreshed after every mutation.
type Device struct {
	DeviceID     string       `json:"deviceId"`
	Name         string       `json:"name"`
	Location     string       `json:"location"`
	Status       DeviceStatus `json:"status"`
	Type         string       `json:"type"`
	RegisteredAt *time.Time   `json:"registeredAt,omitempty"`
}

// DeviceForm carries the multipart form fields for device create/update.
type DeviceForm struct {
	DeviceID string
	Name     string
	Location string
	Type     string
	Status   DeviceStatus
}

// FormFields flattens the form for a multipart request.
func (f DeviceForm) FormFields() map[string]string {
	return map[string]string{
		"deviceId": f.DeviceID,
		"name":     f.Name,
		"location": f.Location,
		"type":     f.Type,
		"status":   string(f.Status),
	}
}

// Validate checks the fields required before a create/update is sent.
func (f DeviceForm) Validate() error {
	if f.DeviceID == "" {
		return NewAPIError(ErrorCodeValidationFailed, "deviceId is required", nil, 0)
	}
	if f.Name == "" {
		return NewAPIError(ErrorCodeValidationFailed, "name is required", nil, 0)
	}
	if f.Type == "" {
		return NewAPIError(ErrorCodeValidationFailed, "type is required", nil, 0)
	}
	return nil
}
