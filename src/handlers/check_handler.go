// backend/src/handlers/check_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/services"
	"github.com/username/isincheck/backend/src/utils"
)

type CheckHandler struct {
	checkService services.CheckService
}

func NewCheckHandler(checkService services.CheckService) *CheckHandler {
	return &CheckHandler{checkService: checkService}
}

func (h *CheckHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.checkService.RunBatch(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoRows), errors.Is(err, services.ErrMissingJobID):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			ctxLogger.Error("Check batch failed", "jobId", req.JobID, "batch", req.BatchIndex, "error", err)
			utils.SendJSONError(w, "check failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	ctxLogger.Info("Check batch complete",
		"jobId", req.JobID, "batch", req.BatchIndex, "rows", len(resp.Rows), "hasMore", resp.HasMore)
	utils.SendJSON(w, resp, http.StatusOK)
}
