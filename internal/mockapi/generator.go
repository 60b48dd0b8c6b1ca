package mockapi

import (
	"context"
	"log"
	"math/rand"
	"time"

	"iotdash/internal/models"
)

// RunGenerator emits synthetic sensor readings for every registered device
// until ctx is canceled. Occasional out-of-range values exercise the alert
// path.
func (s *Server) RunGenerator(ctx context.Context, interval time.Duration) {
	baselines := map[string]float64{
		"temperature": 22,
		"humidity":    55,
		"pressure":    1005,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("MockAPI: reading generator started")
	for {
		select {
		case <-ctx.Done():
			log.Println("MockAPI: reading generator stopped")
			return
		case <-ticker.C:
			s.mu.RLock()
			devices := make([]models.Device, 0, len(s.devices))
			for _, d := range s.devices {
				devices = append(devices, d)
			}
			s.mu.RUnlock()

			for _, device := range devices {
				base, ok := baselines[device.Type]
				if !ok {
					base = 50
				}
				value := base + rand.Float64()*4 - 2
				if rand.Intn(20) == 0 {
					// Spike past the threshold now and then.
					value = base * 3
				}
				s.PublishReading(models.SensorReading{
					DeviceID:   device.DeviceID,
					SensorType: device.Type,
					Value:      value,
					Timestamp:  time.Now(),
				})
			}
		}
	}
}
