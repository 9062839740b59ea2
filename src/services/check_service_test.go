package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/username/isincheck/backend/src/model"
	"github.com/username/isincheck/backend/src/models"
)

const assetSchema = `
CREATE TABLE categorized_assets (
    isin TEXT PRIMARY KEY,
    name TEXT,
    wkn TEXT,
    category TEXT NOT NULL,
    subcategory_type TEXT,
    commodity_type TEXT,
    commodity_kind TEXT,
    direction TEXT,
    leverage TEXT,
    sub_category TEXT,
    status TEXT NOT NULL,
    notes TEXT,
    original_row_data TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

func newCheckTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(assetSchema)
	require.NoError(t, err)
	return db
}

// stubResolver resolves every ISIN to a plain equity unless marked as
// rate-limited. Safe for concurrent use.
type stubResolver struct {
	mu          sync.Mutex
	calls       map[string]int
	rateLimited map[string]bool
}

func newStubResolver() *stubResolver {
	return &stubResolver{calls: make(map[string]int), rateLimited: make(map[string]bool)}
}

func (r *stubResolver) Resolve(_ context.Context, isin, name string, _ map[string]string) models.ResolveResult {
	r.mu.Lock()
	r.calls[isin]++
	limited := r.rateLimited[isin]
	r.mu.Unlock()

	if limited {
		return models.ResolveResult{
			Categorization: models.Categorization{Category: models.CategoryUnknown},
			Status:         models.StatusError,
			Notes:          "ISIN " + isin + " could not be resolved | Rate limit (429), will be retried",
			IsRateLimit:    true,
		}
	}
	return models.ResolveResult{
		Categorization: models.Categorization{
			Category:    models.CategoryEquity,
			SubCategory: models.SubCategoryPlain,
			Direction:   models.DirectionLong,
		},
		Status: models.StatusSuccess,
		Notes:  "Found via profile (ISIN): " + name,
	}
}

func (r *stubResolver) callCount(isin string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[isin]
}

func (r *stubResolver) setRateLimited(isin string, limited bool) {
	r.mu.Lock()
	r.rateLimited[isin] = limited
	r.mu.Unlock()
}

func newCheckServiceForTest(t *testing.T) (CheckService, *stubResolver, *JobStore, *sql.DB) {
	t.Helper()
	db := newCheckTestDB(t)
	resolver := newStubResolver()
	jobs := NewJobStore()
	service := NewCheckService(db, resolver, jobs, NewPersistService(db), 4)
	return service, resolver, jobs, db
}

func validRow(i int) models.ParsedRow {
	return models.ParsedRow{
		RowIndex:  i + 2,
		ISIN:      fmt.Sprintf("US%010d", i),
		Name:      fmt.Sprintf("Asset %d", i),
		ValidISIN: true,
	}
}

func TestRunBatchNoRows(t *testing.T) {
	service, _, _, _ := newCheckServiceForTest(t)

	_, err := service.RunBatch(context.Background(), models.CheckRequest{})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestRunBatchAllInvalid(t *testing.T) {
	service, resolver, _, _ := newCheckServiceForTest(t)

	resp, err := service.RunBatch(context.Background(), models.CheckRequest{
		Rows: []models.ParsedRow{
			{RowIndex: 2, ISIN: "NOT-AN-ISIN", ValidISIN: false},
			{RowIndex: 3, ISIN: "", ValidISIN: false},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"no valid ISINs to check"}, resp.Errors)
	require.Len(t, resp.Rows, 2)
	for _, row := range resp.Rows {
		assert.Equal(t, models.CategoryUnknown, row.Category)
		assert.Equal(t, models.StatusError, row.Status)
		assert.Equal(t, "Invalid ISIN", row.Notes)
	}
	assert.Empty(t, resp.Summary)
	assert.Equal(t, 0, resolver.callCount("NOT-AN-ISIN"))
}

func TestRunBatchEndToEnd(t *testing.T) {
	service, resolver, jobs, _ := newCheckServiceForTest(t)

	// 45 valid rows plus 5 invalid ones mixed in at the end.
	rows := make([]models.ParsedRow, 0, 50)
	for i := 0; i < 45; i++ {
		rows = append(rows, validRow(i))
	}
	for i := 45; i < 50; i++ {
		rows = append(rows, models.ParsedRow{
			RowIndex:  i + 2,
			ISIN:      fmt.Sprintf("BAD-%d", i),
			ValidISIN: false,
		})
	}
	jobID := jobs.Create(rows, []string{"ISIN", "Name"})

	// Batch 0: the first BatchSize unique ISINs go to the API, the rest are
	// queued; invalid rows are finalized immediately.
	resp, err := service.RunBatch(context.Background(), models.CheckRequest{JobID: jobID, Rows: rows})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 50)

	var pending, resolved, invalid int
	for _, row := range resp.Rows {
		switch {
		case row.Category == models.CategoryNotChecked:
			pending++
			assert.Equal(t, models.StatusPending, row.Status)
		case row.Notes == "Invalid ISIN":
			invalid++
			assert.Equal(t, models.CategoryUnknown, row.Category)
			assert.Equal(t, models.StatusError, row.Status)
		default:
			resolved++
			assert.Equal(t, models.StatusSuccess, row.Status)
		}
	}
	assert.Equal(t, BatchSize, resolved)
	assert.Equal(t, 5, pending)
	assert.Equal(t, 5, invalid)

	// Pending rows sort before resolved ones.
	assert.Equal(t, models.CategoryNotChecked, resp.Rows[0].Category)
	assert.Equal(t, models.CategoryEquity, resp.Rows[5].Category)

	assert.True(t, resp.HasMore)
	assert.Equal(t, BatchSize, resp.NextOffset)
	require.NotNil(t, resp.CheckInfo)
	assert.Equal(t, 45, resp.CheckInfo.TotalChecked)
	assert.Equal(t, 0, resp.CheckInfo.FoundInDatabase)
	assert.Equal(t, BatchSize, resp.CheckInfo.CheckedViaAPI)

	total := 0
	for _, count := range resp.Summary {
		total += count
	}
	assert.Equal(t, 50, total)

	// Batch 1 consumes the queued tail via the returned offset.
	offset := resp.NextOffset
	resp, err = service.RunBatch(context.Background(), models.CheckRequest{
		JobID:      jobID,
		Rows:       rows,
		BatchIndex: 1,
		Offset:     &offset,
	})
	require.NoError(t, err)

	// The merged set holds exactly one classification per input row; the
	// invalid rows from batch 0 must not be duplicated by the merge.
	require.Len(t, resp.Rows, 50)
	perRowIndex := make(map[int]int, len(resp.Rows))
	for _, row := range resp.Rows {
		perRowIndex[row.RowIndex]++
	}
	for idx, n := range perRowIndex {
		assert.Equal(t, 1, n, "rowIndex %d appears %d times", idx, n)
	}

	resolved, invalid = 0, 0
	for _, row := range resp.Rows {
		switch {
		case row.Notes == "Invalid ISIN":
			invalid++
		default:
			assert.Equal(t, models.CategoryEquity, row.Category)
			assert.Equal(t, models.StatusSuccess, row.Status)
			resolved++
		}
	}
	assert.Equal(t, 45, resolved)
	assert.Equal(t, 5, invalid)
	assert.False(t, resp.HasMore)
	assert.Nil(t, resp.CheckInfo)

	total = 0
	for _, count := range resp.Summary {
		total += count
	}
	assert.Equal(t, 50, total)

	// Every valid unique ISIN was resolved exactly once across both batches.
	for i := 0; i < 45; i++ {
		assert.Equal(t, 1, resolver.callCount(rows[i].ISIN), "isin %s", rows[i].ISIN)
	}
}

func TestRunBatchFansOutDuplicateISINs(t *testing.T) {
	service, resolver, _, _ := newCheckServiceForTest(t)

	shared := "US0000000001"
	rows := []models.ParsedRow{
		{RowIndex: 2, ISIN: shared, Name: "Asset A", ValidISIN: true},
		{RowIndex: 3, ISIN: shared, Name: "Asset A", ValidISIN: true},
		{RowIndex: 4, ISIN: shared, Name: "Asset A", ValidISIN: true},
	}

	resp, err := service.RunBatch(context.Background(), models.CheckRequest{Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.callCount(shared))
	require.Len(t, resp.Rows, 3)
	for _, row := range resp.Rows {
		assert.Equal(t, models.CategoryEquity, row.Category)
	}
	assert.Equal(t, 3, resp.Summary["Equity_Plain_NonCommodity_long"])
}

func TestRunBatchStoreHitSkipsAPI(t *testing.T) {
	service, resolver, _, db := newCheckServiceForTest(t)

	stored := model.CategorizedAsset{
		ISIN:            "US0000000001",
		Category:        "Equity",
		SubCategoryType: sql.NullString{String: "Plain", Valid: true},
		CommodityType:   sql.NullString{String: "NonCommodity", Valid: true},
		Direction:       sql.NullString{String: "long", Valid: true},
		Status:          "success",
		Notes:           sql.NullString{String: "Found via profile", Valid: true},
	}
	require.NoError(t, model.UpsertAssets(db, []model.CategorizedAsset{stored}))

	rows := []models.ParsedRow{
		{RowIndex: 2, ISIN: "US0000000001", ValidISIN: true},
		{RowIndex: 3, ISIN: "US0000000002", ValidISIN: true},
	}
	resp, err := service.RunBatch(context.Background(), models.CheckRequest{Rows: rows})
	require.NoError(t, err)

	assert.Equal(t, 0, resolver.callCount("US0000000001"))
	assert.Equal(t, 1, resolver.callCount("US0000000002"))
	require.NotNil(t, resp.CheckInfo)
	assert.Equal(t, 1, resp.CheckInfo.FoundInDatabase)
	assert.Equal(t, 1, resp.CheckInfo.CheckedViaAPI)

	for _, row := range resp.Rows {
		if row.ISIN == "US0000000001" {
			assert.Contains(t, row.Notes, "(from database)")
		}
	}
}

func TestRunBatchDefersRateLimitedISINs(t *testing.T) {
	service, resolver, jobs, db := newCheckServiceForTest(t)

	limited := "US0000000002"
	resolver.setRateLimited(limited, true)

	rows := []models.ParsedRow{
		{RowIndex: 2, ISIN: "US0000000001", ValidISIN: true},
		{RowIndex: 3, ISIN: limited, ValidISIN: true},
	}
	jobID := jobs.Create(rows, nil)

	resp, err := service.RunBatch(context.Background(), models.CheckRequest{JobID: jobID, Rows: rows})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)

	// The rate-limited ISIN is parked, not finalized as an error.
	assert.Equal(t, models.CategoryNotChecked, resp.Rows[0].Category)
	assert.Equal(t, limited, resp.Rows[0].ISIN)
	assert.Equal(t, models.StatusPending, resp.Rows[0].Status)
	assert.Contains(t, resp.Rows[0].Notes, "429")
	assert.Equal(t, models.CategoryEquity, resp.Rows[1].Category)

	// Another process resolves the ISIN into the store; the next batch-0 call
	// re-checks it there instead of hitting the API again.
	require.NoError(t, model.UpsertAssets(db, []model.CategorizedAsset{
		{
			ISIN:            limited,
			Category:        "Equity",
			SubCategoryType: sql.NullString{String: "Plain", Valid: true},
			Status:          "success",
		},
		{
			ISIN:            "US0000000001",
			Category:        "Equity",
			SubCategoryType: sql.NullString{String: "Plain", Valid: true},
			Status:          "success",
		},
	}))

	resp, err = service.RunBatch(context.Background(), models.CheckRequest{JobID: jobID, Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.callCount(limited))

	// The re-checked ISIN shows up exactly once; it must not be counted both
	// as a store hit and as a priority retry.
	require.Len(t, resp.Rows, 2)
	seen := make(map[int]int, len(resp.Rows))
	for _, row := range resp.Rows {
		seen[row.RowIndex]++
		assert.NotEqual(t, models.CategoryNotChecked, row.Category)
		assert.Equal(t, models.StatusSuccess, row.Status)
	}
	assert.Equal(t, map[int]int{2: 1, 3: 1}, seen)
	assert.NotContains(t, resp.Summary, "Not checked_Plain_NonCommodity")
}

func TestRunBatchRetriesRateLimitedISINViaAPI(t *testing.T) {
	service, resolver, jobs, _ := newCheckServiceForTest(t)

	limited := "US0000000009"
	resolver.setRateLimited(limited, true)

	rows := []models.ParsedRow{{RowIndex: 2, ISIN: limited, ValidISIN: true}}
	jobID := jobs.Create(rows, nil)

	resp, err := service.RunBatch(context.Background(), models.CheckRequest{JobID: jobID, Rows: rows})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, models.StatusPending, resp.Rows[0].Status)

	// The provider recovers; the next batch-0 call fans the ISIN out once
	// with priority, not once as a retry plus once from the regular queue.
	resolver.setRateLimited(limited, false)

	resp, err = service.RunBatch(context.Background(), models.CheckRequest{JobID: jobID, Rows: rows})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, models.CategoryEquity, resp.Rows[0].Category)
	assert.Equal(t, models.StatusSuccess, resp.Rows[0].Status)
	assert.Equal(t, 2, resolver.callCount(limited))
	assert.NotContains(t, resp.Summary, "Not checked_Plain_NonCommodity")
}

func TestRunBatchLaterBatchRequiresJobID(t *testing.T) {
	service, _, _, _ := newCheckServiceForTest(t)

	_, err := service.RunBatch(context.Background(), models.CheckRequest{
		Rows:       []models.ParsedRow{validRow(0)},
		BatchIndex: 1,
	})
	assert.ErrorIs(t, err, ErrMissingJobID)
}

func TestRunBatchLaterBatchWithoutPendingISINs(t *testing.T) {
	service, _, jobs, _ := newCheckServiceForTest(t)
	jobID := jobs.Create(nil, nil)

	resp, err := service.RunBatch(context.Background(), models.CheckRequest{
		JobID:      jobID,
		Rows:       []models.ParsedRow{validRow(0)},
		BatchIndex: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"no more ISINs to check"}, resp.Errors)
	assert.Empty(t, resp.Rows)
	assert.False(t, resp.HasMore)
}
