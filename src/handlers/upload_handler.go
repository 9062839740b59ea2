// backend/src/handlers/upload_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/username/isincheck/backend/src/config"
	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/parsers/csvfile"
	"github.com/username/isincheck/backend/src/services"
	"github.com/username/isincheck/backend/src/utils"
)

type UploadHandler struct {
	parser *csvfile.Parser
	jobs   *services.JobStore
}

func NewUploadHandler(parser *csvfile.Parser, jobs *services.JobStore) *UploadHandler {
	return &UploadHandler{parser: parser, jobs: jobs}
}

func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("failed to process upload or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "no file uploaded; use the 'file' form field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		utils.SendJSONError(w, "only CSV files (.csv) are supported", http.StatusBadRequest)
		return
	}

	result, err := h.parser.Parse(file)
	if err != nil {
		ctxLogger.Warn("Failed to parse uploaded file", "file", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "failed to parse CSV file: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(result.Errors) > 0 && len(result.Rows) == 0 {
		utils.SendJSONError(w, strings.Join(result.Errors, "; "), http.StatusBadRequest)
		return
	}

	jobID := h.jobs.Create(result.Rows, result.Headers)
	ctxLogger.Info("Upload parsed", "jobId", jobID, "file", fileHeader.Filename, "rows", len(result.Rows), "errors", len(result.Errors))

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	utils.SendJSON(w, models.UploadResponse{
		JobID:   jobID,
		Rows:    result.Rows,
		Headers: result.Headers,
		Errors:  errs,
	}, http.StatusOK)
}
