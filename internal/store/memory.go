package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/demandcast/optimizer/pkg/models"
)

// MemStore is an in-memory Store used by tests in the packages above the
// store layer. It mirrors the Postgres implementation's semantics: selection
// ordering, the job state machine, and forward-only progress.
type MemStore struct {
	mu       sync.Mutex
	datasets map[uuid.UUID]*models.Dataset
	series   map[uuid.UUID]map[string][]models.SeriesPoint
	jobs     map[uuid.UUID]*models.Job
}

func NewMemStore() *MemStore {
	return &MemStore{
		datasets: make(map[uuid.UUID]*models.Dataset),
		series:   make(map[uuid.UUID]map[string][]models.SeriesPoint),
		jobs:     make(map[uuid.UUID]*models.Job),
	}
}

func (s *MemStore) Ping(ctx context.Context) error {
	return nil
}

// --- Datasets ---

func (s *MemStore) CreateDataset(ctx context.Context, d *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.datasets {
		if existing.ID == d.ID || existing.Identifier == d.Identifier {
			return ErrDuplicateKey
		}
	}
	copied := *d
	s.datasets[d.ID] = &copied
	return nil
}

func (s *MemStore) GetDatasetByIdentifier(ctx context.Context, identifier string) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.datasets {
		if d.Identifier == identifier {
			copied := *d
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) InsertSeriesPoints(ctx context.Context, datasetID uuid.UUID, sku string, points []models.SeriesPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series[datasetID] == nil {
		s.series[datasetID] = make(map[string][]models.SeriesPoint)
	}
	merged := s.series[datasetID][sku]
	for _, p := range points {
		replaced := false
		for i := range merged {
			if merged[i].Bucket == p.Bucket {
				merged[i].Quantity = p.Quantity
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, p)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Bucket < merged[j].Bucket })
	s.series[datasetID][sku] = merged
	return nil
}

func (s *MemStore) SKUExists(ctx context.Context, datasetID uuid.UUID, sku string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.series[datasetID][sku]) > 0, nil
}

func (s *MemStore) ListSKUs(ctx context.Context, datasetID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var skus []string
	for sku := range s.series[datasetID] {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus, nil
}

func (s *MemStore) GetSeries(ctx context.Context, datasetID uuid.UUID, sku string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.series[datasetID][sku]
	if len(points) == 0 {
		return nil, ErrNotFound
	}
	series := make([]float64, len(points))
	for i, p := range points {
		series[i] = p.Quantity
	}
	return series, nil
}

// --- Jobs ---

func (s *MemStore) CreateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrDuplicateKey
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *MemStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *MemStore) GetLatestJobByHash(ctx context.Context, hash string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Job
	for _, job := range s.jobs {
		if job.OptimizationHash != hash {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *MemStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*models.Job
	for _, job := range s.jobs {
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, job.Status) {
			continue
		}
		if filter.Method != "" && job.Method != filter.Method {
			continue
		}
		if filter.DatasetIdentifier != "" && job.DatasetIdentifier != filter.DatasetIdentifier {
			continue
		}
		if filter.SKU != "" && job.SKU != filter.SKU {
			continue
		}
		copied := *job
		jobs = append(jobs, &copied)
	}
	sortBySelectionOrder(jobs)
	return jobs, nil
}

func (s *MemStore) FetchPendingJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	jobs, err := s.ListJobs(ctx, JobFilter{Statuses: []string{models.JobStatusPending}})
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !containsString(validTransitions[job.Status], status) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	job.Status = status
	job.UpdatedAt = now
	if status == models.JobStatusRunning {
		job.StartedAt = &now
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed || status == models.JobStatusCancelled {
		job.CompletedAt = &now
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.Result != nil {
		job.Result = params.Result
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (s *MemStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return nil
	}
	if progress > job.Progress {
		job.Progress = progress
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemStore) DeleteAllJobs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.jobs)
	s.jobs = make(map[uuid.UUID]*models.Job)
	return n, nil
}

func (s *MemStore) DeleteCompletedJobs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.Status == models.JobStatusCompleted {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemStore) CancelPendingByOptimizationID(ctx context.Context, optimizationID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, job := range s.jobs {
		if job.OptimizationID == optimizationID && job.Status == models.JobStatusPending {
			job.Status = models.JobStatusCancelled
			job.CompletedAt = &now
			job.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// sortBySelectionOrder applies the scheduler selection contract:
// method DESC, priority ASC, sku ASC, created_at ASC.
func sortBySelectionOrder(jobs []*models.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if a.Method != b.Method {
			return a.Method > b.Method
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
