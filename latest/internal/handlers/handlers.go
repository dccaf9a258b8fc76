package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/telhawk-systems/powerhawk/common/httputil"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/latest/internal/repository"
)

const resourceLatest = "latest-state"

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves latest-state reads.
type Handler struct {
	store  repository.LatestStore
	ping   Pinger
	logger *logging.Logger
}

// New creates a Handler. ping may be nil.
func New(store repository.LatestStore, ping Pinger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, ping: ping, logger: logger}
}

// Get handles GET /v1/latest/{plantId}/{machineId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := models.PlantMachineID(r.PathValue("plantId"), r.PathValue("machineId"))

	row, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httputil.WriteJSONAPINotFoundError(w, resourceLatest, id)
			return
		}
		h.logger.ErrorContext(r.Context(), "latest-state read failed", logging.Error(err))
		httputil.WriteJSONAPIUnavailableError(w, "latest-state store unavailable")
		return
	}

	res, err := httputil.NewResource(resourceLatest, row.PlantMachineID, row)
	if err != nil {
		httputil.WriteJSONAPIInternalError(w, "failed to encode latest state")
		return
	}
	httputil.WriteJSONAPI(w, http.StatusOK, httputil.ResourceDocument(res))
}

// List handles GET /v1/latest?plant=<plantId>.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plantID := r.URL.Query().Get("plant")
	if plantID == "" {
		httputil.WriteJSONAPIValidationError(w, "plant query parameter is required")
		return
	}

	rows, err := h.store.ListByPlant(r.Context(), plantID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "latest-state list failed", logging.PlantID(plantID), logging.Error(err))
		httputil.WriteJSONAPIUnavailableError(w, "latest-state store unavailable")
		return
	}

	resources := make([]httputil.Resource, 0, len(rows))
	for _, row := range rows {
		res, err := httputil.NewResource(resourceLatest, row.PlantMachineID, row)
		if err != nil {
			httputil.WriteJSONAPIInternalError(w, "failed to encode latest state")
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

// Ready checks the backing store.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
