package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"bidding-system/internal/services"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness plus the store monitor's view.
type HealthHandler struct {
	service  string
	monitor  *services.StoreMonitor
	sessions func() int
}

type HealthResponse struct {
	Status              string `json:"status"`
	Service             string `json:"service"`
	Timestamp           string `json:"timestamp"`
	Degraded            bool   `json:"degraded"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	Sessions            *int   `json:"sessions,omitempty"`
}

// NewHealthHandler accepts a nil monitor and a nil session counter.
func NewHealthHandler(service string, monitor *services.StoreMonitor, sessions func() int) *HealthHandler {
	return &HealthHandler{
		service:  service,
		monitor:  monitor,
		sessions: sessions,
	}
}

func (h *HealthHandler) report() HealthResponse {
	resp := HealthResponse{
		Status:    "ok",
		Service:   h.service,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if h.monitor != nil {
		status := h.monitor.Status()
		resp.Degraded = status.Degraded
		resp.ConsecutiveFailures = status.ConsecutiveFailures
		resp.LastError = status.LastError
		if status.Degraded {
			resp.Status = "degraded"
		}
	}
	if h.sessions != nil {
		n := h.sessions()
		resp.Sessions = &n
	}
	return resp
}

// ServeHTTP serves gorilla/mux routes. A degraded instance still answers 200:
// it keeps broadcasting even while it rejects proposals.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.report())
}

func (h *HealthHandler) Echo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.report())
}
