// backend/src/services/job_store.go
package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/username/isincheck/backend/src/models"
)

// PendingISIN is one unique ISIN awaiting API resolution, with the input
// rows it maps back to.
type PendingISIN struct {
	ISIN            string
	Name            string
	RowIndices      []int
	OriginalRowData map[string]string
}

// JobData is the server-side state of one upload/check session.
type JobData struct {
	ParsedRows      []models.ParsedRow
	CheckedRows     []models.CheckedRow
	OriginalHeaders []string
	// PendingISINs holds the unique ISINs not found in the store during
	// batch 0; later batches consume slices of it by offset.
	PendingISINs []PendingISIN
	CreatedAt    time.Time
}

// JobStore keeps job state in memory. Jobs live as long as the process; the
// frontend drives a job to completion within one session.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobData
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*JobData)}
}

// Create registers a new job and returns its ID.
func (s *JobStore) Create(rows []models.ParsedRow, headers []string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.jobs[id] = &JobData{
		ParsedRows:      rows,
		OriginalHeaders: headers,
		CreatedAt:       time.Now(),
	}
	s.mu.Unlock()
	return id
}

// Get returns a snapshot of the job's state. The contained slices are shared
// with the store and must be treated as read-only.
func (s *JobStore) Get(jobID string) (JobData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return JobData{}, false
	}
	return *job, true
}

// Update applies fn to the job's state under the store lock, creating the
// job if it does not exist yet.
func (s *JobStore) Update(jobID string, fn func(*JobData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		job = &JobData{CreatedAt: time.Now()}
		s.jobs[jobID] = job
	}
	fn(job)
}

func (s *JobStore) Delete(jobID string) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
}

func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
