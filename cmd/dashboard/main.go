package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iotdash/internal/config"
	"iotdash/internal/feed"
	"iotdash/internal/gateway"
	"iotdash/internal/session"
	"iotdash/internal/state"
	"iotdash/internal/tokenstore"
)

func main() {
	username := flag.String("username", os.Getenv("DASH_USERNAME"), "Login username")
	password := flag.String("password", os.Getenv("DASH_PASSWORD"), "Login password")
	flag.Parse()

	cfg := config.Load()

	store := tokenstore.NewFileStore(cfg.SessionFile)
	gw := gateway.New(cfg.APIBaseURL, cfg.RequestTimeout, store)
	views := state.NewStore(cfg.AlertBufferMax, cfg.EventBufferMax, cfg.HistoryMax)
	feeds := feed.NewManager(gw, views)
	controller := session.NewController(gw, store, feeds, views)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := controller.Bootstrap(ctx); err != nil {
		log.Println("Dashboard: stored session was not usable:", err)
	}

	if controller.State() != session.StateLoggedIn {
		if *username == "" || *password == "" {
			fmt.Println("Not logged in. Provide --username and --password (or DASH_USERNAME/DASH_PASSWORD).")
			os.Exit(1)
		}
		if err := controller.Login(ctx, *username, *password); err != nil {
			fmt.Println(session.UserMessage(err))
			os.Exit(1)
		}
	}

	user := controller.CurrentUser()
	fmt.Printf("Logged in as %s (%s)\n", user.DisplayName, user.Role)

	if err := refreshSnapshots(ctx, gw, views, cfg); err != nil {
		log.Println("Dashboard: initial fetch failed:", err)
	}

	if cfg.UseSSE {
		if err := feeds.StartAlerts(ctx); err != nil {
			log.Println("Dashboard: alerts feed unavailable:", err)
		}
		if err := feeds.StartEvents(ctx); err != nil {
			log.Println("Dashboard: device-events feed unavailable:", err)
		}
	}

	selectFirstDevice(ctx, gw, views, feeds, cfg)

	// Polling fallback refetches the alert/event snapshots; it never runs
	// alongside the live feeds for the same resource.
	if !cfg.UseSSE {
		go pollLoop(ctx, gw, views, cfg)
	}

	go renderLoop(ctx, views)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	controller.Logout(shutdownCtx)
}

func refreshSnapshots(ctx context.Context, gw *gateway.Gateway, views *state.Store, cfg config.Config) error {
	devices, err := gw.Devices(ctx)
	if err != nil {
		return err
	}
	views.SetDevices(devices)

	// Non-critical lists fall back to empty on failure.
	if alerts, err := gw.Alerts(ctx); err == nil {
		views.SetAlerts(alerts)
	} else {
		log.Println("Dashboard: alerts fetch failed:", err)
	}
	end := time.Now()
	start := end.AddDate(0, 0, -cfg.EventWindowDays)
	if events, err := gw.DeviceEvents(ctx, start, end); err == nil {
		views.SetEvents(events)
	} else {
		log.Println("Dashboard: device-events fetch failed:", err)
	}
	if thresholds, err := gw.Thresholds(ctx); err == nil {
		views.SetThresholds(thresholds)
	} else {
		log.Println("Dashboard: thresholds fetch failed:", err)
	}
	return nil
}

// selectFirstDevice mirrors the initial UI selection: first device, first
// sensor type, analytics and history for today.
func selectFirstDevice(ctx context.Context, gw *gateway.Gateway, views *state.Store, feeds *feed.Manager, cfg config.Config) {
	devices := views.Devices()
	if len(devices) == 0 {
		return
	}
	deviceID := devices[0].DeviceID
	views.SelectDevice(deviceID)

	if cfg.UseSSE {
		if err := feeds.WatchDevice(ctx, deviceID); err != nil {
			log.Println("Dashboard: sensor feed unavailable:", err)
		}
	}

	latest, err := gw.LatestReadings(ctx, deviceID)
	if err != nil {
		log.Println("Dashboard: latest readings fetch failed:", err)
		return
	}
	types := make([]string, 0, len(latest))
	for _, reading := range latest {
		types = append(types, reading.SensorType)
	}
	views.SetSensorTypes(types)
	if len(types) == 0 {
		return
	}

	views.SelectSensor(types[0])
	today := time.Now().Format("2006-01-02")
	if analytics, err := gw.Analytics(ctx, deviceID, today); err == nil {
		views.SetAnalytics(analytics)
	} else {
		log.Println("Dashboard: analytics fetch failed:", err)
	}
	if history, err := gw.SensorHistory(ctx, deviceID, today); err == nil {
		views.SetHistory(history)
	} else {
		log.Println("Dashboard: history fetch failed:", err)
	}
}

func pollLoop(ctx context.Context, gw *gateway.Gateway, views *state.Store, cfg config.Config) {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if alerts, err := gw.Alerts(ctx); err == nil {
				views.SetAlerts(alerts)
			}
			end := time.Now()
			start := end.AddDate(0, 0, -cfg.EventWindowDays)
			if events, err := gw.DeviceEvents(ctx, start, end); err == nil {
				views.SetEvents(events)
			}
		}
	}
}

func renderLoop(ctx context.Context, views *state.Store) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("[%s] devices=%d alerts=%d events=%d",
				time.Now().Format("15:04:05"),
				len(views.Devices()), len(views.Alerts()), len(views.Events()))
			if device := views.SelectedDevice(); device != "" {
				fmt.Printf(" watching=%s", device)
				for sensorType, reading := range views.Latest() {
					fmt.Printf(" %s=%.1f", sensorType, reading.Value)
				}
			}
			fmt.Println()
		}
	}
}
