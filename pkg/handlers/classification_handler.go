package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/models"
	"github.com/clearrate/clearrate-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// BatchClassifyRequest for POST /api/v1/nanp/classifications/batch
type BatchClassifyRequest struct {
	NPAs           []string `json:"npas"`
	IncludeSummary bool     `json:"include_summary,omitempty"`
}

// BatchClassifyResponse wraps the batch result with an optional summary.
type BatchClassifyResponse struct {
	Result  *models.BatchResult  `json:"result"`
	Summary *models.BatchSummary `json:"summary,omitempty"`
}

// ============================================================================
// Handler
// ============================================================================

// ClassificationHandler handles NANP classification HTTP requests.
type ClassificationHandler struct {
	classificationService services.ClassificationService
	lookupService         services.LookupService
	syncService           services.SyncService
	logger                *zap.Logger
}

// NewClassificationHandler creates a new classification handler.
func NewClassificationHandler(
	classificationService services.ClassificationService,
	lookupService services.LookupService,
	syncService services.SyncService,
	logger *zap.Logger,
) *ClassificationHandler {
	return &ClassificationHandler{
		classificationService: classificationService,
		lookupService:         lookupService,
		syncService:           syncService,
		logger:                logger,
	}
}

// RegisterRoutes registers the classification handler's routes on the given mux.
func (h *ClassificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/nanp/classifications/{npa}", h.Classify)
	mux.HandleFunc("POST /api/v1/nanp/classifications/batch", h.ClassifyBatch)
	mux.HandleFunc("GET /api/v1/nanp/locations/{npa}", h.Location)
	mux.HandleFunc("GET /api/v1/nanp/health", h.Health)
	mux.HandleFunc("GET /api/v1/nanp/stats", h.Stats)
}

// Classify handles GET /api/v1/nanp/classifications/{npa}
func (h *ClassificationHandler) Classify(w http.ResponseWriter, r *http.Request) {
	npa, ok := ParseNPA(w, r, h.logger)
	if !ok {
		return
	}

	classification, err := h.classificationService.CategorizeNPA(r.Context(), npa)
	if err != nil {
		h.logger.Error("Failed to classify NPA",
			zap.String("npa", npa),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "classify_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: classification}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ClassifyBatch handles POST /api/v1/nanp/classifications/batch
func (h *ClassificationHandler) ClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if len(req.NPAs) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_batch", "npas must not be empty"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.classificationService.CategorizeNPAsBatch(r.Context(), req.NPAs)
	if err != nil {
		h.logger.Error("Failed to classify NPA batch",
			zap.Int("size", len(req.NPAs)),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "classify_batch_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := BatchClassifyResponse{Result: result}
	if req.IncludeSummary {
		response.Summary = h.classificationService.GenerateSummary(result.Classifications)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Location handles GET /api/v1/nanp/locations/{npa}
func (h *ClassificationHandler) Location(w http.ResponseWriter, r *http.Request) {
	npa, ok := ParseNPA(w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.lookupService.GetNPALocation(r.Context(), npa)
	if err != nil {
		h.logger.Error("Failed to look up NPA location",
			zap.String("npa", npa),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "lookup_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if record == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "npa_not_found", "No location data for NPA"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: record}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Health handles GET /api/v1/nanp/health
func (h *ClassificationHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.syncService.HealthStatus(r.Context())
	if err != nil {
		h.logger.Error("Failed to read sync health", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "health_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: health}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/v1/nanp/stats
func (h *ClassificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.syncService.LocalStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to read local stats", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "stats_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: stats}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
