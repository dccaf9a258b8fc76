package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/powerhawk/common/middleware"
	"github.com/telhawk-systems/powerhawk/enrich/internal/handlers"
)

// NewRouter constructs a ServeMux with the enrich API routes registered.
// The registry routes are only mounted when rh is non-nil.
func NewRouter(ph *handlers.PacketHandler, rh *handlers.RegistryHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/packets", ph.HandlePackets)

	if rh != nil {
		mux.HandleFunc("GET /v1/registry/{macId}", rh.Get)
		mux.HandleFunc("PUT /v1/registry/{macId}", rh.Put)
	}

	// Health endpoints
	mux.HandleFunc("/healthz", ph.Health)
	mux.HandleFunc("/readyz", ph.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
