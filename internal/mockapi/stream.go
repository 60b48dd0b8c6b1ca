package mockapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"iotdash/internal/models"
)

// hub fans one topic out to all connected SSE clients.
type hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan []byte]struct{})}
}

func (h *hub) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) publish(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			// Slow consumer, drop rather than block the publisher.
		}
	}
}

// serveSSE streams hub messages to one client until it disconnects.
func serveSSE(w http.ResponseWriter, r *http.Request, h *hub) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, models.NewAPIError(models.ErrorCodeInternalError,
			"Streaming unsupported", nil, http.StatusInternalServerError))
		return
	}

	// Register before the client sees the 200 so nothing published right
	// after connect is missed.
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleAlertsSSE(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.alertsHub)
}

func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.eventsHub)
}

func (s *Server) handleSensorSSE(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]
	serveSSE(w, r, s.sensorHub(deviceID))
}

func (s *Server) sensorHub(deviceID string) *hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sensorHubs[deviceID]
	if !ok {
		h = newHub()
		s.sensorHubs[deviceID] = h
	}
	return h
}

// PublishReading stores a reading, streams it to sensor subscribers, and
// raises an alert when it violates the configured threshold.
func (s *Server) PublishReading(reading models.SensorReading) {
	s.mu.Lock()
	s.readings[reading.DeviceID] = append(s.readings[reading.DeviceID], reading)
	if len(s.readings[reading.DeviceID]) > 1000 {
		s.readings[reading.DeviceID] = s.readings[reading.DeviceID][1:]
	}
	var violated *models.Threshold
	for i := range s.thresholds {
		t := s.thresholds[i]
		if t.SensorType == reading.SensorType && (reading.Value < t.MinValue || reading.Value > t.MaxValue) {
			violated = &t
			break
		}
	}
	s.mu.Unlock()

	payload, err := json.Marshal(reading)
	if err != nil {
		log.Println("MockAPI: failed to encode reading:", err)
		return
	}
	s.sensorHub(reading.DeviceID).publish(payload)

	if violated != nil {
		s.PublishAlert(models.Alert{
			DeviceID:   reading.DeviceID,
			SensorType: reading.SensorType,
			Message: fmt.Sprintf("%s out of range [%.1f, %.1f]",
				reading.SensorType, violated.MinValue, violated.MaxValue),
			Severity:  models.SeverityHigh,
			Value:     reading.Value,
			Timestamp: reading.Timestamp,
		})
	}
}

// PublishAlert stores an alert and streams it to alert subscribers.
func (s *Server) PublishAlert(alert models.Alert) {
	s.mu.Lock()
	s.alerts = append([]models.Alert{alert}, s.alerts...)
	if len(s.alerts) > 50 {
		s.alerts = s.alerts[:50]
	}
	s.mu.Unlock()

	payload, err := json.Marshal(alert)
	if err != nil {
		log.Println("MockAPI: failed to encode alert:", err)
		return
	}
	s.alertsHub.publish(payload)
}

// PublishEvent stores a device event and streams it to event subscribers.
func (s *Server) PublishEvent(event models.DeviceEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("MockAPI: failed to encode device event:", err)
		return
	}
	s.eventsHub.publish(payload)
}
