package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/powerhawk/archive/internal/handlers"
	"github.com/telhawk-systems/powerhawk/common/middleware"
)

// NewRouter constructs the archive HTTP surface.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/transform", h.Transform)

	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
