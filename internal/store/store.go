package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/demandcast/optimizer/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
// The job store is the single source of truth between the factory, the
// scheduler, and the runner — they never share in-memory job state.
type Store interface {
	Ping(ctx context.Context) error

	CreateDataset(ctx context.Context, d *models.Dataset) error
	GetDatasetByIdentifier(ctx context.Context, identifier string) (*models.Dataset, error)
	InsertSeriesPoints(ctx context.Context, datasetID uuid.UUID, sku string, points []models.SeriesPoint) error
	SKUExists(ctx context.Context, datasetID uuid.UUID, sku string) (bool, error)
	ListSKUs(ctx context.Context, datasetID uuid.UUID) ([]string, error)
	GetSeries(ctx context.Context, datasetID uuid.UUID, sku string) ([]float64, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetLatestJobByHash(ctx context.Context, hash string) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	FetchPendingJobs(ctx context.Context, limit int) ([]*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	DeleteAllJobs(ctx context.Context) (int, error)
	DeleteCompletedJobs(ctx context.Context) (int, error)
	CancelPendingByOptimizationID(ctx context.Context, optimizationID uuid.UUID) (int, error)
}

// JobFilter narrows ListJobs. Zero-value fields are ignored. Results always
// come back in scheduler selection order: method DESC, priority ASC, sku ASC,
// created_at ASC.
type JobFilter struct {
	Statuses          []string
	Method            string
	DatasetIdentifier string
	SKU               string
}

type jobUpdateParams struct {
	Progress     *int
	Result       *models.OptimizationResult
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithProgress(progress int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Progress = &progress
	}
}

func WithResult(result *models.OptimizationResult) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Result = result
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}
