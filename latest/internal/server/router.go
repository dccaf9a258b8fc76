package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/powerhawk/common/middleware"
	"github.com/telhawk-systems/powerhawk/latest/internal/handlers"
)

// NewRouter constructs the latest-state HTTP surface.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/latest", h.List)
	mux.HandleFunc("GET /v1/latest/{plantId}/{machineId}", h.Get)

	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
