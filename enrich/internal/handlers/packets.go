package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/telhawk-systems/powerhawk/common/httputil"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/enrich/internal/enricher"
	"github.com/telhawk-systems/powerhawk/enrich/internal/metrics"
	"github.com/telhawk-systems/powerhawk/enrich/pkg/tokens"
)

const maxBodyBytes = 4 << 20

// Processor enriches and publishes one packet.
type Processor interface {
	Process(ctx context.Context, p models.RawPacket) (enricher.Result, error)
}

// TokenVerifier validates device bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*tokens.DeviceClaims, error)
}

// PacketHandler serves the HTTP packet ingress.
type PacketHandler struct {
	processor Processor
	verifier  TokenVerifier
	health    messaging.Client
	logger    *logging.Logger
}

// NewPacketHandler creates a PacketHandler. A nil verifier disables device
// authentication; a nil health client reports ready unconditionally.
func NewPacketHandler(processor Processor, verifier TokenVerifier, health messaging.Client, logger *logging.Logger) *PacketHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PacketHandler{processor: processor, verifier: verifier, health: health, logger: logger}
}

// IngestResponse reports the outcome of a packet upload.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// HandlePackets accepts a single JSON object, a JSON string wrapping an
// object, or newline-delimited objects. Malformed lines are dropped
// individually; a publish failure aborts with 503 so the device retries.
func (h *PacketHandler) HandlePackets(w http.ResponseWriter, r *http.Request) {
	var claims *tokens.DeviceClaims
	if h.verifier != nil {
		token := httputil.BearerToken(r)
		if token == "" {
			metrics.PacketsTotal.WithLabelValues("http", "unauthorized").Inc()
			httputil.WriteJSONAPIUnauthorizedError(w, "missing device token")
			return
		}
		var err error
		if claims, err = h.verifier.Verify(token); err != nil {
			metrics.PacketsTotal.WithLabelValues("http", "unauthorized").Inc()
			httputil.WriteJSONAPIUnauthorizedError(w, err.Error())
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSONAPIValidationError(w, "unable to read request body")
		return
	}
	defer r.Body.Close()

	packets, dropped := splitPackets(body)
	if len(packets) == 0 {
		metrics.PacketsTotal.WithLabelValues("http", "malformed").Add(float64(dropped))
		httputil.WriteJSONAPIValidationError(w, "no decodable packets in request body")
		return
	}
	metrics.PacketsTotal.WithLabelValues("http", "malformed").Add(float64(dropped))

	resp := IngestResponse{Dropped: dropped}
	for _, p := range packets {
		if claims != nil && claims.MacID != "" && !p.FirstString("macId", "MACID").IsPresent() {
			p["macId"] = claims.MacID
		}

		if _, err := h.processor.Process(r.Context(), p); err != nil {
			metrics.PacketsTotal.WithLabelValues("http", "publish_error").Inc()
			h.logger.ErrorContext(r.Context(), "failed to publish packet", logging.Error(err))
			if errors.Is(err, enricher.ErrPublish) {
				httputil.WriteJSONAPIUnavailableError(w, "telemetry stream unavailable")
			} else {
				httputil.WriteJSONAPIInternalError(w, "failed to process packet")
			}
			return
		}
		metrics.PacketsTotal.WithLabelValues("http", "accepted").Inc()
		resp.Accepted++
	}

	httputil.WriteJSON(w, http.StatusAccepted, resp)
}

// Health reports liveness.
func (h *PacketHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports whether the stream connection is usable.
func (h *PacketHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	status := messaging.CheckClientHealth(r.Context(), h.health)
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]any{"status": readiness(status.Healthy()), "nats": status})
}

func readiness(ok bool) string {
	if ok {
		return "ready"
	}
	return "not_ready"
}

// splitPackets decodes body as one packet, falling back to NDJSON.
func splitPackets(body []byte) ([]models.RawPacket, int) {
	if p, err := models.ParsePacket(body); err == nil {
		return []models.RawPacket{p}, 0
	}

	var packets []models.RawPacket
	dropped := 0
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		p, err := models.ParsePacket(line)
		if err != nil {
			dropped++
			continue
		}
		packets = append(packets, p)
	}
	return packets, dropped
}
