package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/voice2txt/internal/transcribe"
)

// Pinger reports backend reachability. *database.DB satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports broker connectivity. *mqttclient.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Run           string            `json:"run"`
}

type HealthHandler struct {
	db        Pinger
	mqtt      ConnectionStatus
	tracker   *transcribe.Tracker
	version   string
	startTime time.Time
}

// NewHealthHandler builds the health endpoint. db and mqtt may be nil when
// the postgres backend or MQTT publishing is not configured.
func NewHealthHandler(db Pinger, mqtt ConnectionStatus, tracker *transcribe.Tracker, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		tracker:   tracker,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	run := "idle"
	if h.tracker != nil {
		run = h.tracker.Snapshot().State
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Run:           run,
	})
}
