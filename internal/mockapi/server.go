// Package mockapi is an in-memory stand-in for the backend REST/SSE API,
// used for local development and for exercising the client end to end.
package mockapi

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"iotdash/internal/models"
)

// Server holds the in-memory backend state.
type Server struct {
	jwtSecret []byte
	accessTTL time.Duration

	mu            sync.RWMutex
	accounts      map[string]account
	refreshTokens map[string]string // refresh token -> username
	devices       map[string]models.Device
	readings      map[string][]models.SensorReading
	alerts        []models.Alert
	events        []models.DeviceEvent
	thresholds    []models.Threshold

	alertsHub  *hub
	eventsHub  *hub
	sensorHubs map[string]*hub
}

// Option tweaks server construction.
type Option func(*Server)

// WithAccessTTL overrides how long minted access tokens stay valid. Short
// TTLs make the 401/refresh path easy to exercise.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) { s.accessTTL = ttl }
}

// WithJWTSecret overrides the token signing secret.
func WithJWTSecret(secret []byte) Option {
	return func(s *Server) { s.jwtSecret = secret }
}

// NewServer creates a stub backend seeded with demo accounts, devices, and
// thresholds.
func NewServer(opts ...Option) *Server {
	s := &Server{
		jwtSecret: []byte("mockapi-dev-secret"),
		accessTTL: 15 * time.Minute,
		accounts: map[string]account{
			"admin":  {Password: "admin123", DisplayName: "Administrator", Role: models.RoleAdmin},
			"editor": {Password: "editor123", DisplayName: "Plant Editor", Role: models.RoleEditor},
			"viewer": {Password: "viewer123", DisplayName: "Floor Viewer", Role: models.RoleViewer},
		},
		refreshTokens: make(map[string]string),
		devices:       make(map[string]models.Device),
		readings:      make(map[string][]models.SensorReading),
		thresholds: []models.Threshold{
			{SensorType: "temperature", MinValue: -10, MaxValue: 45},
			{SensorType: "humidity", MinValue: 20, MaxValue: 90},
			{SensorType: "pressure", MinValue: 950, MaxValue: 1050},
		},
		alertsHub:  newHub(),
		eventsHub:  newHub(),
		sensorHubs: make(map[string]*hub),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := time.Now()
	for _, d := range []models.Device{
		{DeviceID: "dev-001", Name: "Boiler North", Location: "Hall A", Status: models.StatusActive, Type: "temperature", RegisteredAt: &now},
		{DeviceID: "dev-002", Name: "Humidor", Location: "Hall B", Status: models.StatusActive, Type: "humidity", RegisteredAt: &now},
	} {
		s.devices[d.DeviceID] = d
	}
	return s
}

// Router builds the route table for the full API surface.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	router.HandleFunc("/auth/refresh", s.handleRefresh).Methods("POST")
	router.Handle("/auth/logout", s.requireAuth(s.handleLogout)).Methods("POST")
	router.Handle("/auth/profile", s.requireAuth(s.handleProfile)).Methods("GET")

	router.Handle("/devices", s.requireAuth(s.handleListDevices)).Methods("GET")
	router.Handle("/devices", s.requireAuth(s.handleCreateDevice)).Methods("POST")
	router.Handle("/devices/{deviceID}", s.requireAuth(s.handleUpdateDevice)).Methods("PATCH")
	router.Handle("/devices/{deviceID}", s.requireAuth(s.handleDeleteDevice)).Methods("DELETE")

	router.Handle("/sensor-data/{deviceID}/latest", s.requireAuth(s.handleLatestReadings)).Methods("GET")
	router.Handle("/sensor-data/{deviceID}/sse", s.requireAuth(s.handleSensorSSE)).Methods("GET")
	router.Handle("/sensor-data/{deviceID}", s.requireAuth(s.handleSensorHistory)).Methods("GET")
	router.Handle("/analytics/{deviceID}", s.requireAuth(s.handleAnalytics)).Methods("GET")

	router.Handle("/alerts", s.requireAuth(s.handleListAlerts)).Methods("GET")
	router.Handle("/alerts/sse", s.requireAuth(s.handleAlertsSSE)).Methods("GET")
	router.Handle("/device-events", s.requireAuth(s.handleListEvents)).Methods("GET")
	router.Handle("/device-events/sse", s.requireAuth(s.handleEventsSSE)).Methods("GET")
	router.Handle("/sensor-thresholds", s.requireAuth(s.handleThresholds)).Methods("GET")

	return router
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	devices := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	s.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })
	respondWithJSON(w, http.StatusOK, devices)
}

func deviceFormFromRequest(r *http.Request) (models.DeviceForm, error) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return models.DeviceForm{}, err
	}
	return models.DeviceForm{
		DeviceID: r.FormValue("deviceId"),
		Name:     r.FormValue("name"),
		Location: r.FormValue("location"),
		Type:     r.FormValue("type"),
		Status:   models.DeviceStatus(r.FormValue("status")),
	}, nil
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireMutate(w, r) {
		return
	}

	form, err := deviceFormFromRequest(r)
	if err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest,
			"Invalid multipart form", nil, http.StatusBadRequest))
		return
	}
	if err := form.Validate(); err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeValidationFailed,
			err.Error(), nil, http.StatusBadRequest))
		return
	}

	now := time.Now()
	device := models.Device{
		DeviceID:     form.DeviceID,
		Name:         form.Name,
		Location:     form.Location,
		Status:       form.Status,
		Type:         form.Type,
		RegisteredAt: &now,
	}
	if device.Status == "" {
		device.Status = models.StatusActive
	}

	s.mu.Lock()
	if _, exists := s.devices[device.DeviceID]; exists {
		s.mu.Unlock()
		respondWithError(w, models.NewAPIError(models.ErrorCodeDuplicateResource,
			"Device ID already exists", nil, http.StatusConflict))
		return
	}
	s.devices[device.DeviceID] = device
	s.mu.Unlock()

	s.PublishEvent(models.DeviceEvent{
		DeviceID:    device.DeviceID,
		EventType:   "Registered",
		Description: "Device registered by " + requestUser(r).Username,
		EventTime:   now,
	})
	respondWithJSON(w, http.StatusCreated, device)
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireMutate(w, r) {
		return
	}

	deviceID := mux.Vars(r)["deviceID"]
	form, err := deviceFormFromRequest(r)
	if err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest,
			"Invalid multipart form", nil, http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	device, exists := s.devices[deviceID]
	if !exists {
		s.mu.Unlock()
		respondWithError(w, models.NewAPIError(models.ErrorCodeNotFound,
			"Device not found", nil, http.StatusNotFound))
		return
	}
	if form.Name != "" {
		device.Name = form.Name
	}
	if form.Location != "" {
		device.Location = form.Location
	}
	if form.Type != "" {
		device.Type = form.Type
	}
	if form.Status != "" {
		device.Status = form.Status
	}
	s.devices[deviceID] = device
	s.mu.Unlock()

	s.PublishEvent(models.DeviceEvent{
		DeviceID:    deviceID,
		EventType:   "Updated",
		Description: "Device updated by " + requestUser(r).Username,
		EventTime:   time.Now(),
	})
	respondWithJSON(w, http.StatusOK, device)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireMutate(w, r) {
		return
	}

	deviceID := mux.Vars(r)["deviceID"]

	s.mu.Lock()
	_, exists := s.devices[deviceID]
	if !exists {
		s.mu.Unlock()
		respondWithError(w, models.NewAPIError(models.ErrorCodeNotFound,
			"Device not found", nil, http.StatusNotFound))
		return
	}
	delete(s.devices, deviceID)
	delete(s.readings, deviceID)
	s.mu.Unlock()

	s.PublishEvent(models.DeviceEvent{
		DeviceID:    deviceID,
		EventType:   "Deleted",
		Description: "Device removed by " + requestUser(r).Username,
		EventTime:   time.Now(),
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device deleted"})
}

// requireMutate enforces the Editor/Admin gate on device mutations.
func (s *Server) requireMutate(w http.ResponseWriter, r *http.Request) bool {
	if !requestUser(r).Role.CanMutate() {
		respondWithError(w, models.NewAPIError(models.ErrorCodeForbidden,
			"Viewer role may not modify devices", nil, http.StatusForbidden))
		return false
	}
	return true
}

func (s *Server) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]

	s.mu.RLock()
	latest := make(map[string]models.SensorReading)
	for _, reading := range s.readings[deviceID] {
		latest[reading.SensorType] = reading
	}
	s.mu.RUnlock()

	out := make([]models.SensorReading, 0, len(latest))
	for _, reading := range latest {
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorType < out[j].SensorType })
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleSensorHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]
	date := r.URL.Query().Get("date")

	s.mu.RLock()
	var out []models.SensorReading
	for _, reading := range s.readings[deviceID] {
		if date == "" || reading.Timestamp.Format("2006-01-02") == date {
			out = append(out, reading)
		}
	}
	s.mu.RUnlock()

	if out == nil {
		out = []models.SensorReading{}
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	s.mu.RLock()
	_, exists := s.devices[deviceID]
	byType := make(map[string][]float64)
	for _, reading := range s.readings[deviceID] {
		if reading.Timestamp.Format("2006-01-02") == date {
			byType[reading.SensorType] = append(byType[reading.SensorType], reading.Value)
		}
	}
	s.mu.RUnlock()

	if !exists {
		respondWithError(w, models.NewAPIError(models.ErrorCodeNotFound,
			"Device not found", nil, http.StatusNotFound))
		return
	}

	out := make([]models.Analytics, 0, len(byType))
	for sensorType, values := range byType {
		agg := models.Analytics{
			DeviceID:    deviceID,
			SensorType:  sensorType,
			Date:        date,
			MinValue:    values[0],
			MaxValue:    values[0],
			DataPoints:  len(values),
			ProcessedAt: time.Now(),
		}
		var sum float64
		for _, v := range values {
			sum += v
			if v < agg.MinValue {
				agg.MinValue = v
			}
			if v > agg.MaxValue {
				agg.MaxValue = v
			}
		}
		agg.AvgValue = sum / float64(len(values))
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorType < out[j].SensorType })
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	s.mu.RUnlock()
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, _ := time.Parse(time.RFC3339, query.Get("start"))
	end, _ := time.Parse(time.RFC3339, query.Get("end"))

	s.mu.RLock()
	var out []models.DeviceEvent
	for _, event := range s.events {
		if !start.IsZero() && event.EventTime.Before(start) {
			continue
		}
		if !end.IsZero() && event.EventTime.After(end) {
			continue
		}
		out = append(out, event)
	}
	s.mu.RUnlock()

	if out == nil {
		out = []models.DeviceEvent{}
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]models.Threshold, len(s.thresholds))
	copy(out, s.thresholds)
	s.mu.RUnlock()
	respondWithJSON(w, http.StatusOK, out)
}
