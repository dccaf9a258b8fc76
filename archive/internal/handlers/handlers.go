package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/telhawk-systems/powerhawk/archive/internal/metrics"
	"github.com/telhawk-systems/powerhawk/archive/internal/sanitizer"
	"github.com/telhawk-systems/powerhawk/common/httputil"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
)

const maxTransformBody = 6 << 20

// Pinger reports bulk store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TransformRequest is the delivery-stream transformation envelope.
type TransformRequest struct {
	Records []sanitizer.Record `json:"records"`
}

// TransformResponse carries one result per request record.
type TransformResponse struct {
	Records []sanitizer.Result `json:"records"`
}

// Handler serves the record transformation endpoint and health checks.
type Handler struct {
	sanitizer *sanitizer.Sanitizer
	sink      Pinger
	stream    messaging.Client
	logger    *logging.Logger
}

// New creates a Handler. sink and stream may be nil.
func New(s *sanitizer.Sanitizer, sink Pinger, stream messaging.Client, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sanitizer: s, sink: sink, stream: stream, logger: logger}
}

// Transform handles POST /v1/transform.
func (h *Handler) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTransformBody)).Decode(&req); err != nil {
		httputil.WriteJSONAPIValidationError(w, "body must be a JSON object with a records array")
		return
	}

	results := h.sanitizer.Transform(req.Records)

	ok := 0
	for _, res := range results {
		if res.Result == sanitizer.ResultOk {
			ok++
		}
	}
	metrics.RecordsTotal.WithLabelValues("http", "ok").Add(float64(ok))
	metrics.RecordsTotal.WithLabelValues("http", "dropped").Add(float64(len(results) - ok))
	h.logger.DebugContext(r.Context(), "transformed records", logging.Count(len(results)))

	httputil.WriteJSON(w, http.StatusOK, TransformResponse{Records: results})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready checks the bulk store and stream connections.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if h.sink != nil {
		if err := h.sink.Ping(r.Context()); err != nil {
			checks["opensearch"] = err.Error()
			ready = false
		} else {
			checks["opensearch"] = "ok"
		}
	}
	if h.stream != nil {
		if status := messaging.CheckClientHealth(r.Context(), h.stream); status.Healthy() {
			checks["nats"] = "ok"
		} else {
			checks["nats"] = "disconnected"
			ready = false
		}
	}

	if !ready {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "checks": checks})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}
