package session

import (
	"errors"

	"iotdash/internal/models"
)

// UserMessage maps an error to the message shown in the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return "Invalid username or password"
	}

	var apiErr models.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case models.ErrorCodeDuplicateResource:
			return "Device ID already exists!"
		case models.ErrorCodeForbidden:
			return "You do not have permission to do that"
		case models.ErrorCodeNotFound:
			return "Not found"
		case models.ErrorCodeValidationFailed:
			return apiErr.Message
		case models.ErrorCodeNetworkFailure:
			return "Could not reach the server"
		}
	}
	return "Something went wrong, please try again"
}
