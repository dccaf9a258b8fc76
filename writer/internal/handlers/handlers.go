package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/telhawk-systems/powerhawk/common/httputil"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/writer/internal/repository"
)

const resourceTelemetry = "telemetry"

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves time-series reads and health checks.
type Handler struct {
	reader     repository.SeriesReader
	numBuckets int
	db         Pinger
	stream     messaging.Client
	logger     *logging.Logger
}

// New creates a Handler. db and stream may be nil.
func New(reader repository.SeriesReader, numBuckets int, db Pinger, stream messaging.Client, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{reader: reader, numBuckets: numBuckets, db: db, stream: stream, logger: logger}
}

// ListSeries handles GET /v1/series?plant=&machine=&from=&to=&limit=.
// Without machine, all buckets of the plant are read.
func (h *Handler) ListSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	plantID := q.Get("plant")
	if plantID == "" {
		httputil.WriteJSONAPIValidationError(w, "plant query parameter is required")
		return
	}

	query := repository.SeriesQuery{
		From:  httputil.ParseInt64Param(q.Get("from"), 0),
		To:    httputil.ParseInt64Param(q.Get("to"), 0),
		Limit: httputil.ParseIntParam(q.Get("limit"), repository.DefaultLimit),
	}

	var (
		rows []models.TimeSeriesRow
		err  error
	)
	if machineID := q.Get("machine"); machineID != "" {
		query.PlantMachineID = models.PlantMachineID(plantID, machineID)
		rows, err = h.reader.ListDevice(r.Context(), query)
	} else {
		rows, err = h.reader.ListPlant(r.Context(), plantID, h.numBuckets, query)
	}
	if err != nil {
		if errors.Is(err, repository.ErrInvalidQuery) {
			httputil.WriteJSONAPIValidationError(w, "from/to must be non-negative and from <= to")
			return
		}
		h.logger.ErrorContext(r.Context(), "series query failed", logging.PlantID(plantID), logging.Error(err))
		httputil.WriteJSONAPIUnavailableError(w, "time-series store unavailable")
		return
	}

	resources := make([]httputil.Resource, 0, len(rows))
	for _, row := range rows {
		res, err := httputil.NewResource(resourceTelemetry, fmt.Sprintf("%s@%d", row.PlantMachineID, row.Timestamp), row)
		if err != nil {
			httputil.WriteJSONAPIInternalError(w, "failed to encode series")
			return
		}
		resources = append(resources, res)
	}
	httputil.WriteJSONAPI(w, http.StatusOK, httputil.CollectionDocument(resources))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready checks the database and stream connections.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = err.Error()
			ready = false
		} else {
			checks["database"] = "ok"
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
