package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

// ParseNPA extracts and validates the NPA from the request path.
// Returns the NPA and true on success, or an empty string and false on error
// (after writing an error response).
// Expects path parameter: npa
func ParseNPA(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	npa := r.PathValue("npa")
	if !models.IsValidNPA(npa) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_npa", "NPA must be exactly 3 digits"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return npa, true
}
