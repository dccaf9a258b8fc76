package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/telhawk-systems/powerhawk/common/httputil"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/enrich/internal/registry"
)

const resourceDevice = "device"

// RegistryStore reads and writes registry entries.
type RegistryStore interface {
	registry.Store
	registry.Writer
}

// RegistryHandler exposes the device registry for operators.
type RegistryHandler struct {
	store  RegistryStore
	logger *logging.Logger
}

// NewRegistryHandler creates a RegistryHandler.
func NewRegistryHandler(store RegistryStore, logger *logging.Logger) *RegistryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RegistryHandler{store: store, logger: logger}
}

type deviceRequest struct {
	Data struct {
		Type       string         `json:"type"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
}

// Get handles GET /v1/registry/{macId}.
func (h *RegistryHandler) Get(w http.ResponseWriter, r *http.Request) {
	macID := r.PathValue("macId")

	attrs, found, err := h.store.Get(r.Context(), macID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "registry read failed", logging.MacID(macID), logging.Error(err))
		httputil.WriteJSONAPIUnavailableError(w, "device registry unavailable")
		return
	}
	if !found {
		httputil.WriteJSONAPINotFoundError(w, resourceDevice, macID)
		return
	}
	h.writeDevice(w, http.StatusOK, macID, attrs)
}

// Put handles PUT /v1/registry/{macId}.
func (h *RegistryHandler) Put(w http.ResponseWriter, r *http.Request) {
	macID := r.PathValue("macId")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		httputil.WriteJSONAPIValidationError(w, "unable to read request body")
		return
	}
	var req deviceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONAPIValidationError(w, "body must be a JSON:API device document")
		return
	}
	if req.Data.Type != "" && req.Data.Type != resourceDevice {
		httputil.WriteJSONAPIValidationError(w, "data.type must be \"device\"")
		return
	}
	entry, err := registry.ParseEntry(req.Data.Attributes)
	if err != nil {
		httputil.WriteJSONAPIValidationError(w, err.Error())
		return
	}

	attrs := entry.Attributes()
	if err := h.store.Put(r.Context(), macID, attrs); err != nil {
		h.logger.ErrorContext(r.Context(), "registry write failed", logging.MacID(macID), logging.Error(err))
		httputil.WriteJSONAPIUnavailableError(w, "device registry unavailable")
		return
	}
	h.logger.InfoContext(r.Context(), "registry entry updated", logging.MacID(macID))
	h.writeDevice(w, http.StatusOK, macID, attrs)
}

func (h *RegistryHandler) writeDevice(w http.ResponseWriter, status int, macID string, attrs map[string]any) {
	res, err := httputil.NewResource(resourceDevice, macID, attrs)
	if err != nil {
		httputil.WriteJSONAPIInternalError(w, "failed to encode device")
		return
	}
	httputil.WriteJSONAPI(w, status, httputil.ResourceDocument(res))
}

var (
	_ RegistryStore = (*registry.CachedStore)(nil)
	_ RegistryStore = (*registry.PostgresStore)(nil)
)
