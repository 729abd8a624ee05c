package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"otboard/internal/hub"
	"otboard/internal/meta"
)

type HealthHandler struct {
	meta *meta.Store
	hub  *hub.Hub
}

func NewHealthHandler(metaStore *meta.Store, wsHub *hub.Hub) *HealthHandler {
	return &HealthHandler{meta: metaStore, hub: wsHub}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready            bool      `json:"ready"`
	ConnectedClients int       `json:"connectedClients"`
	MetadataLoadedAt time.Time `json:"metadataLoadedAt"`
	ServerTime       time.Time `json:"serverTime"`
}

// Readyz reports ready once dashboard metadata has been loaded at least
// once; until then sessions cannot seed their date range.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.meta.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:            ready,
		ConnectedClients: h.hub.ClientCount(),
		MetadataLoadedAt: h.meta.LoadedAt(),
		ServerTime:       time.Now(),
	})
}
