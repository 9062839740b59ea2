// backend/src/services/check_service.go
package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/model"
	"github.com/username/isincheck/backend/src/models"
)

// BatchSize is the number of unique ISINs resolved via the API per call.
const BatchSize = 40

// storedEntry pairs a pending ISIN with the result recovered from the
// persistent store.
type storedEntry struct {
	PendingISIN
	Result models.ResolveResult
}

type checkServiceImpl struct {
	db          *sql.DB
	resolver    ISINResolver
	jobs        *JobStore
	persist     *PersistService
	concurrency int
}

func NewCheckService(db *sql.DB, resolver ISINResolver, jobs *JobStore, persist *PersistService, concurrency int) CheckService {
	return &checkServiceImpl{
		db:          db,
		resolver:    resolver,
		jobs:        jobs,
		persist:     persist,
		concurrency: concurrency,
	}
}

// RunBatch executes one batch of the check pipeline.
//
// Batch 0 looks every unique ISIN up in the persistent store, re-checks
// previously rate-limited ISINs there too, and resolves the first BatchSize
// unresolved ones via the API; the rest are reported as pending. Later
// batches consume the pending list by offset. Results are merged into the
// job state and the summary is always recomputed from the full merged set.
func (s *checkServiceImpl) RunBatch(ctx context.Context, req models.CheckRequest) (*models.CheckResponse, error) {
	rows := req.Rows
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	var validRows []models.ParsedRow
	for _, row := range rows {
		if row.ValidISIN {
			validRows = append(validRows, row)
		}
	}
	if len(validRows) == 0 {
		checked := make([]models.CheckedRow, 0, len(rows))
		for _, row := range rows {
			checked = append(checked, invalidCheckedRow(row))
		}
		return &models.CheckResponse{
			Summary: models.CheckSummary{},
			Rows:    checked,
			Errors:  []string{"no valid ISINs to check"},
		}, nil
	}

	unique := collectUniqueISINs(validRows)

	var (
		existing   []storedEntry
		newISINs   []PendingISIN
		notChecked []PendingISIN
		startIndex int
	)

	if req.BatchIndex == 0 {
		existingMap := s.lookupStore(pendingISINValues(unique))

		var newToCheck []PendingISIN
		for _, item := range unique {
			if asset := existingMap[item.ISIN]; asset != nil {
				existing = append(existing, storedEntry{PendingISIN: item, Result: asset.ToResolveResult()})
			} else {
				newToCheck = append(newToCheck, item)
			}
		}
		logger.L.Info("Store lookup complete",
			"jobId", req.JobID, "unique", len(unique), "found", len(existing), "toResolve", len(newToCheck))

		if req.JobID != "" && len(newToCheck) > 0 {
			s.jobs.Update(req.JobID, func(j *JobData) {
				j.ParsedRows = rows
				j.PendingISINs = newToCheck
			})
		}

		// ISINs that hit a 429 in an earlier run come back as "Not checked"
		// rows in the job state. Check the store first, then resolve the
		// rest ahead of this batch's regular ISINs.
		var retryISINs []PendingISIN
		if req.JobID != "" {
			if job, ok := s.jobs.Get(req.JobID); ok {
				retryISINs = collectRateLimited(job.CheckedRows)
			}
		}
		if len(retryISINs) > 0 {
			retryMap := s.lookupStore(pendingISINValues(retryISINs))
			alreadyStored := make(map[string]bool, len(existing))
			for _, entry := range existing {
				alreadyStored[entry.ISIN] = true
			}
			var stillUnresolved []PendingISIN
			for _, item := range retryISINs {
				if asset := retryMap[item.ISIN]; asset != nil {
					if !alreadyStored[item.ISIN] {
						existing = append(existing, storedEntry{PendingISIN: item, Result: asset.ToResolveResult()})
					}
				} else {
					stillUnresolved = append(stillUnresolved, item)
				}
			}
			logger.L.Info("Re-checking rate-limited ISINs",
				"jobId", req.JobID, "fromStore", len(retryISINs)-len(stillUnresolved), "viaAPI", len(stillUnresolved))
			retryISINs = stillUnresolved

			// A retried ISIN resolves with priority; drop it from the regular
			// queue so it is fanned out exactly once per response.
			if len(retryISINs) > 0 {
				retrySet := make(map[string]bool, len(retryISINs))
				for _, item := range retryISINs {
					retrySet[item.ISIN] = true
				}
				var rest []PendingISIN
				for _, item := range newToCheck {
					if !retrySet[item.ISIN] {
						rest = append(rest, item)
					}
				}
				newToCheck = rest
			}
		}

		if len(newToCheck) > BatchSize {
			notChecked = newToCheck[BatchSize:]
			newToCheck = newToCheck[:BatchSize]
		}
		newISINs = append(append([]PendingISIN{}, retryISINs...), newToCheck...)
	} else {
		if req.JobID == "" {
			return nil, ErrMissingJobID
		}
		job, _ := s.jobs.Get(req.JobID)
		if len(job.PendingISINs) == 0 {
			return &models.CheckResponse{
				Summary: models.CheckSummary{},
				Rows:    []models.CheckedRow{},
				Errors:  []string{"no more ISINs to check"},
			}, nil
		}

		startIndex = (req.BatchIndex - 1) * BatchSize
		if req.Offset != nil {
			startIndex = *req.Offset
		}
		startIndex = min(startIndex, len(job.PendingISINs))
		end := min(startIndex+BatchSize, len(job.PendingISINs))
		newISINs = job.PendingISINs[startIndex:end]
		logger.L.Info("Resolving pending ISINs",
			"jobId", req.JobID, "batch", req.BatchIndex, "from", startIndex, "to", end, "pending", len(job.PendingISINs))
	}

	requests := make([]func(context.Context) models.ResolveResult, len(newISINs))
	for i, item := range newISINs {
		item := item
		requests[i] = func(ctx context.Context) models.ResolveResult {
			return s.resolver.Resolve(ctx, item.ISIN, item.Name, item.OriginalRowData)
		}
	}
	results, avgMs := RequestBatch(ctx, s.concurrency, requests)

	remaining := 0
	if req.JobID != "" {
		job, _ := s.jobs.Get(req.JobID)
		if req.BatchIndex == 0 {
			remaining = max(0, len(job.PendingISINs)-len(newISINs))
		} else {
			remaining = max(0, len(job.PendingISINs)-(startIndex+BatchSize))
		}
	}

	rowByIndex := make(map[int]models.ParsedRow, len(rows))
	for _, row := range rows {
		rowByIndex[row.RowIndex] = row
	}

	var checked []models.CheckedRow
	appendRows := func(item PendingISIN, res models.ResolveResult) {
		for _, idx := range item.RowIndices {
			row, ok := rowByIndex[idx]
			if !ok {
				continue
			}
			checked = append(checked, models.CheckedRow{
				ParsedRow:   row,
				Category:    res.Category,
				SubCategory: res.SubCategory,
				Direction:   res.Direction,
				Leverage:    res.Leverage,
				Status:      res.Status,
				Notes:       res.Notes,
			})
		}
	}

	for _, entry := range existing {
		appendRows(entry.PendingISIN, entry.Result)
	}
	for i, item := range newISINs {
		if results[i].IsRateLimit {
			appendRows(item, pendingResult("Rate limited (429), will be rechecked in the next batch"))
			continue
		}
		appendRows(item, results[i])
	}
	for _, item := range notChecked {
		appendRows(item, pendingResult("Queued for a later batch"))
	}
	// Invalid rows are finalized in the first batch only; later batches merge
	// into the accumulated set, which already carries them.
	if req.BatchIndex == 0 {
		for _, row := range rows {
			if !row.ValidISIN {
				checked = append(checked, invalidCheckedRow(row))
			}
		}
	}
	sortCheckedRows(checked)

	merged := checked
	if req.JobID != "" {
		if job, ok := s.jobs.Get(req.JobID); ok && req.BatchIndex > 0 && len(job.CheckedRows) > 0 {
			// Replace the pending placeholders of ISINs resolved in this
			// batch, keep everything else.
			resolvedNow := make(map[string]bool, len(checked))
			for _, row := range checked {
				resolvedNow[row.ISIN] = true
			}
			kept := make([]models.CheckedRow, 0, len(job.CheckedRows)+len(checked))
			for _, row := range job.CheckedRows {
				if row.Category == models.CategoryNotChecked && resolvedNow[row.ISIN] {
					continue
				}
				kept = append(kept, row)
			}
			merged = append(kept, checked...)
			sortCheckedRows(merged)
		}
		s.jobs.Update(req.JobID, func(j *JobData) {
			j.ParsedRows = rows
			j.CheckedRows = merged
		})
	}

	// The summary always reflects the full merged set, not just this batch.
	summary := make(models.CheckSummary, len(merged))
	for _, row := range merged {
		summary[row.SummaryKey()]++
	}

	fromStore := make(map[string]bool, len(existing))
	for _, entry := range existing {
		fromStore[entry.ISIN] = true
	}
	var toSave []models.CheckedRow
	for _, row := range merged {
		if row.Status == models.StatusSuccess &&
			row.Category != models.CategoryUnknown &&
			row.Category != models.CategoryNotChecked &&
			!fromStore[row.ISIN] {
			toSave = append(toSave, row)
		}
	}
	s.persist.SaveCategorizedAsync(toSave)

	estimated := 0.0
	if s.concurrency > 0 {
		estimated = float64(remaining) / float64(s.concurrency) * avgMs
	}

	respRows := checked
	nextOffset := BatchSize
	if req.BatchIndex > 0 {
		respRows = merged
		nextOffset = startIndex + BatchSize
	}

	resp := &models.CheckResponse{
		Summary: summary,
		Rows:    respRows,
		Errors:  []string{},
		Timing: &models.BatchTiming{
			AverageTimePerRequestMs: avgMs,
			TotalISINs:              len(newISINs),
			EstimatedTotalTimeMs:    estimated,
		},
		HasMore:    remaining > 0,
		NextOffset: nextOffset,
	}
	if req.BatchIndex == 0 {
		resp.CheckInfo = &models.CheckInfo{
			TotalChecked:       len(unique),
			FoundInDatabase:    len(existing),
			NotFoundInDatabase: len(newISINs),
			CheckedViaAPI:      len(results),
		}
	}
	return resp, nil
}

// lookupStore wraps the chunked store lookup; a full failure degrades to
// "nothing found" so the ISINs are resolved via the API instead.
func (s *checkServiceImpl) lookupStore(isins []string) map[string]*model.CategorizedAsset {
	found, err := model.GetAssetsByISINs(s.db, isins)
	if err != nil {
		logger.L.Error("Store lookup failed, treating all ISINs as new", "count", len(isins), "error", err)
		return map[string]*model.CategorizedAsset{}
	}
	return found
}

// collectUniqueISINs groups valid rows by ISIN, preserving first-seen order.
// Name and original row data come from the first row of each ISIN.
func collectUniqueISINs(rows []models.ParsedRow) []PendingISIN {
	index := make(map[string]int, len(rows))
	var unique []PendingISIN
	for _, row := range rows {
		i, seen := index[row.ISIN]
		if !seen {
			i = len(unique)
			index[row.ISIN] = i
			unique = append(unique, PendingISIN{
				ISIN:            row.ISIN,
				Name:            row.Name,
				OriginalRowData: row.OriginalRowData,
			})
		}
		unique[i].RowIndices = append(unique[i].RowIndices, row.RowIndex)
	}
	return unique
}

// collectRateLimited extracts the unique ISINs of rows parked as
// "Not checked" due to an upstream 429.
func collectRateLimited(rows []models.CheckedRow) []PendingISIN {
	index := make(map[string]int)
	var pending []PendingISIN
	for _, row := range rows {
		if row.Category != models.CategoryNotChecked {
			continue
		}
		notes := strings.ToLower(row.Notes)
		if !strings.Contains(notes, "429") && !strings.Contains(notes, "rate limit") {
			continue
		}
		i, seen := index[row.ISIN]
		if !seen {
			i = len(pending)
			index[row.ISIN] = i
			pending = append(pending, PendingISIN{
				ISIN:            row.ISIN,
				Name:            row.Name,
				OriginalRowData: row.OriginalRowData,
			})
		}
		pending[i].RowIndices = append(pending[i].RowIndices, row.RowIndex)
	}
	return pending
}

func pendingISINValues(items []PendingISIN) []string {
	isins := make([]string, len(items))
	for i, item := range items {
		isins[i] = item.ISIN
	}
	return isins
}

func pendingResult(notes string) models.ResolveResult {
	return models.ResolveResult{
		Categorization: models.Categorization{Category: models.CategoryNotChecked},
		Status:         models.StatusPending,
		Notes:          notes,
	}
}

func invalidCheckedRow(row models.ParsedRow) models.CheckedRow {
	return models.CheckedRow{
		ParsedRow: row,
		Category:  models.CategoryUnknown,
		Status:    models.StatusError,
		Notes:     "Invalid ISIN",
	}
}

// sortCheckedRows orders pending rows first, then by row index.
func sortCheckedRows(rows []models.CheckedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		iPending := rows[i].Category == models.CategoryNotChecked
		jPending := rows[j].Category == models.CategoryNotChecked
		if iPending != jPending {
			return iPending
		}
		return rows[i].RowIndex < rows[j].RowIndex
	})
}
