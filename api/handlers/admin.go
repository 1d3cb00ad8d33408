package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
	"github.com/inkwell-ai/mediaflow/media/budget"
	"github.com/inkwell-ai/mediaflow/media/health"
)

// AdminHandler serves the operational projections: providers, health
// statistics, quarantine state, budget usage and content approvals.
type AdminHandler struct {
	registry *media.Registry
	monitor  *health.Monitor
	gate     *budget.Gate
	logger   *zap.Logger
	started  time.Time
	version  string
}

// NewAdminHandler creates the handler.
func NewAdminHandler(registry *media.Registry, monitor *health.Monitor, gate *budget.Gate, version string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		monitor:  monitor,
		gate:     gate,
		logger:   logger.With(zap.String("handler", "admin")),
		started:  time.Now(),
		version:  version,
	}
}

// ProviderInfo is one row of the provider listing.
type ProviderInfo struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Capability  media.Capability  `json:"capability"`
	Configured  bool              `json:"configured"`
	Quarantined bool              `json:"quarantined"`
	Constraints media.Constraints `json:"constraints"`
}

// Healthz handles GET /healthz.
func (h *AdminHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).String(),
	})
}

// Providers handles GET /api/providers.
func (h *AdminHandler) Providers(w http.ResponseWriter, r *http.Request) {
	ids := h.registry.List()
	infos := make([]ProviderInfo, 0, len(ids))
	for _, id := range ids {
		p, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		infos = append(infos, ProviderInfo{
			ID:          p.ID(),
			DisplayName: p.DisplayName(),
			Capability:  p.Capability(),
			Configured:  p.IsConfigured(),
			Quarantined: h.monitor.IsProviderQuarantined(p.ID()),
			Constraints: p.Constraints(),
		})
	}
	WriteSuccess(w, infos)
}

// ProviderHealth handles GET /api/providers/health.
func (h *AdminHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.monitor.Stats())
}

// Quarantine handles GET /api/quarantine.
func (h *AdminHandler) Quarantine(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.monitor.QuarantineEntries())
}

// ReleaseQuarantine handles DELETE /api/quarantine/{id}.
func (h *AdminHandler) ReleaseQuarantine(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.registry.Get(id); !ok {
		WriteErrorMessage(w, http.StatusNotFound, media.ErrCodeTaskNotFound,
			"unknown provider: "+id, h.logger)
		return
	}
	h.monitor.ReleaseProvider(id)
	WriteSuccess(w, map[string]string{"provider_id": id, "status": "released"})
}

// Budget handles GET /api/budget.
func (h *AdminHandler) Budget(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"usage":     h.gate.Usage(),
		"approvals": h.gate.Approvals(),
	})
}

// ApproveContent handles POST /api/content/{id}/approve.
func (h *AdminHandler) ApproveContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.gate.Approve(id)
	WriteSuccess(w, map[string]string{"content_id": id, "status": string(budget.ApprovalApproved)})
}

// RejectContent handles POST /api/content/{id}/reject.
func (h *AdminHandler) RejectContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.gate.Reject(id)
	WriteSuccess(w, map[string]string{"content_id": id, "status": string(budget.ApprovalRejected)})
}

// Records handles GET /api/records?limit=N.
func (h *AdminHandler) Records(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, media.ErrCodeInvalidRequest,
				"limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}
	WriteSuccess(w, h.monitor.RecentRecords(limit))
}
