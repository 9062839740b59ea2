// backend/src/handlers/download_handler.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/parsers/csvfile"
	"github.com/username/isincheck/backend/src/services"
	"github.com/username/isincheck/backend/src/utils"
)

type DownloadHandler struct {
	jobs   *services.JobStore
	writer *csvfile.Writer
}

func NewDownloadHandler(jobs *services.JobStore, writer *csvfile.Writer) *DownloadHandler {
	return &DownloadHandler{jobs: jobs, writer: writer}
}

// HandleDownload exports a job's checked rows as CSV.
// Query parameters: jobId (required), mode (single|byCategory, default
// single), category (optional "Category[_Sub[_direction]]" filter).
func (h *DownloadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	jobID := r.URL.Query().Get("jobId")
	mode := r.URL.Query().Get("mode")
	categoryFilter := r.URL.Query().Get("category")

	if jobID == "" {
		utils.SendJSONError(w, "jobId parameter is required", http.StatusBadRequest)
		return
	}

	job, ok := h.jobs.Get(jobID)
	if !ok {
		utils.SendJSONError(w, "job not found", http.StatusNotFound)
		return
	}
	if len(job.CheckedRows) == 0 {
		utils.SendJSONError(w, "no checked data available; run a check first", http.StatusBadRequest)
		return
	}

	rows := job.CheckedRows
	if categoryFilter != "" {
		rows = csvfile.FilterByCategory(rows, categoryFilter)
	}

	var buf bytes.Buffer
	var err error
	filename := "all.csv"
	switch {
	case categoryFilter != "":
		filename = filenameForFilter(categoryFilter)
		err = h.writer.WriteSingle(&buf, rows, job.OriginalHeaders)
	case mode == "byCategory":
		filename = "categories.csv"
		err = h.writer.WriteByCategory(&buf, rows, job.OriginalHeaders)
	default:
		err = h.writer.WriteSingle(&buf, rows, job.OriginalHeaders)
	}
	if err != nil {
		ctxLogger.Error("Failed to render CSV export", "jobId", jobID, "error", err)
		utils.SendJSONError(w, "failed to generate export", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("Export generated", "jobId", jobID, "rows", len(rows), "file", filename)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// filenameForFilter names the export after the most specific filter part.
func filenameForFilter(filter string) string {
	parts := strings.SplitN(filter, "_", 3)
	if len(parts) > 1 && parts[1] != "" {
		return sanitizeFilename(parts[1]) + ".csv"
	}
	return sanitizeFilename(parts[0]) + ".csv"
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "")
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		return "export"
	}
	return cleaned
}
