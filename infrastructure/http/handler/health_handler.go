package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/infrastructure/http/response"
)

const (
	ServiceName    = "CloudCommerce User Service"
	ServiceVersion = "1.0.0"
)

// UserCounter is satisfied by stores that can report their size.
type UserCounter interface {
	Count() int
}

type HealthHandler struct {
	clock       outbound.Clock
	startedAt   time.Time
	environment string
	users       UserCounter
}

func NewHealthHandler(clock outbound.Clock, environment string, users UserCounter) *HealthHandler {
	return &HealthHandler{
		clock:       clock,
		startedAt:   clock.Now(),
		environment: environment,
		users:       users,
	}
}

func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/", h.Root).Methods(http.MethodGet)
}

type healthStatus struct {
	Status        string    `json:"status"`
	Service       string    `json:"service"`
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptime"`
	Environment   string    `json:"environment"`
	Users         *int      `json:"users,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	status := healthStatus{
		Status:        "healthy",
		Service:       ServiceName,
		Version:       ServiceVersion,
		Timestamp:     now.UTC(),
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		Environment:   h.environment,
	}
	if h.users != nil {
		count := h.users.Count()
		status.Users = &count
	}
	response.Success(w, http.StatusOK, "healthy", status)
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "running", map[string]interface{}{
		"service":   ServiceName,
		"version":   ServiceVersion,
		"timestamp": h.clock.Now().UTC(),
		"endpoints": map[string]string{
			"health": "/health",
			"auth":   "/api/auth",
		},
	})
}

// NotFound renders the envelope for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusNotFound, response.Envelope{
		Status:  false,
		Message: "Route not found",
		Data: map[string]string{
			"path":   r.URL.Path,
			"method": r.Method,
		},
	})
}

// MethodNotAllowed renders the envelope for a known path with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}
