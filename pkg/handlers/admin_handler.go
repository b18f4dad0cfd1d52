package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/services"
)

// AdminHandler exposes operator-triggered maintenance for the NANP replica.
// Both operations are idempotent and safe to call at any time: a sync
// already in flight coalesces, and clearing an empty replica is a no-op.
type AdminHandler struct {
	syncService services.SyncService
	logger      *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(syncService services.SyncService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// RegisterRoutes registers the admin handler's routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/admin/nanp/sync", h.ForceSync)
	mux.HandleFunc("DELETE /api/v1/admin/nanp/data", h.ClearData)
}

// ForceSync handles POST /api/v1/admin/nanp/sync
func (h *AdminHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	status, err := h.syncService.ForceSync(r.Context())
	if err != nil {
		h.logger.Error("Forced sync failed", zap.Error(err))
		// Status carries last_error; the replica itself is untouched.
		if err := WriteJSON(w, http.StatusBadGateway, ApiResponse{
			Success: false,
			Data:    status,
			Error:   "sync_failed",
			Message: err.Error(),
		}); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: status}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ClearData handles DELETE /api/v1/admin/nanp/data
func (h *AdminHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.syncService.ClearLocalData(r.Context()); err != nil {
		h.logger.Error("Failed to clear local data", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "clear_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]string{"status": "cleared"}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
