// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/username/isincheck/backend/src/models"
)

// Define common service errors
var (
	ErrNoRows       = errors.New("no rows to check")
	ErrMissingJobID = errors.New("jobId is required for batches after the first")
)

// ISINResolver resolves a single ISIN to a classification result. It never
// returns an error: failures surface as a result with Status "error".
type ISINResolver interface {
	Resolve(ctx context.Context, isin, name string, originalRow map[string]string) models.ResolveResult
}

// CheckService runs one batch of the resolution pipeline.
type CheckService interface {
	RunBatch(ctx context.Context, req models.CheckRequest) (*models.CheckResponse, error)
}
