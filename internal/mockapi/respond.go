package mockapi

import (
	"encoding/json"
	"log"
	"net/http"

	"iotdash/internal/models"
)

// respondWithError sends a JSON error response using the APIError model.
func respondWithError(w http.ResponseWriter, apiErr models.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// respondWithJSON sends a JSON success response.
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Failed to encode JSON response: %v", err)
		}
	}
}
