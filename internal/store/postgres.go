package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/demandcast/optimizer/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Datasets ---

func (s *PostgresStore) CreateDataset(ctx context.Context, d *models.Dataset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (id, identifier, name, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Identifier, d.Name, d.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDatasetByIdentifier(ctx context.Context, identifier string) (*models.Dataset, error) {
	var d models.Dataset
	err := s.pool.QueryRow(ctx,
		`SELECT id, identifier, name, created_at FROM datasets WHERE identifier = $1`, identifier,
	).Scan(&d.ID, &d.Identifier, &d.Name, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset by identifier: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) InsertSeriesPoints(ctx context.Context, datasetID uuid.UUID, sku string, points []models.SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(
			`INSERT INTO series_points (dataset_id, sku, bucket, quantity) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (dataset_id, sku, bucket) DO UPDATE SET quantity = EXCLUDED.quantity`,
			datasetID, sku, p.Bucket, p.Quantity)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert series point: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SKUExists(ctx context.Context, datasetID uuid.UUID, sku string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM series_points WHERE dataset_id = $1 AND sku = $2)`,
		datasetID, sku,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sku exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListSKUs(ctx context.Context, datasetID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT sku FROM series_points WHERE dataset_id = $1 ORDER BY sku`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, fmt.Errorf("scan sku: %w", err)
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}

func (s *PostgresStore) GetSeries(ctx context.Context, datasetID uuid.UUID, sku string) ([]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT quantity FROM series_points WHERE dataset_id = $1 AND sku = $2 ORDER BY bucket ASC`,
		datasetID, sku)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	var series []float64
	for rows.Next() {
		var q float64
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		series = append(series, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrNotFound
	}
	return series, nil
}

// --- Jobs ---

// selectionOrder is the scheduler's selection contract. Two schedulers reading
// the same pending set must select the same next batch, so every tie is broken
// by a later key.
const selectionOrder = "method DESC, priority ASC, sku ASC, created_at ASC"

const jobColumns = `id, optimization_id, batch_id, optimization_hash, sku, model_id, method,
	dataset_id, dataset_identifier, priority, reason, status, progress, result, error_message,
	payload, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	var result []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, optimization_id, batch_id, optimization_hash, sku, model_id, method,
		   dataset_id, dataset_identifier, priority, reason, status, progress, result, error_message,
		   payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		job.ID, job.OptimizationID, job.BatchID, job.OptimizationHash, job.SKU, job.ModelID, job.Method,
		job.DatasetID, job.DatasetIdentifier, job.Priority, job.Reason, job.Status, job.Progress,
		result, job.ErrorMessage, payload, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var result, payload []byte
	err := row.Scan(&j.ID, &j.OptimizationID, &j.BatchID, &j.OptimizationHash, &j.SKU, &j.ModelID,
		&j.Method, &j.DatasetID, &j.DatasetIdentifier, &j.Priority, &j.Reason, &j.Status, &j.Progress,
		&result, &j.ErrorMessage, &payload, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		j.Result = &models.OptimizationResult{}
		if err := json.Unmarshal(result, j.Result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal job payload: %w", err)
		}
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) GetLatestJobByHash(ctx context.Context, hash string) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE optimization_hash = $1 ORDER BY created_at DESC LIMIT 1`,
		hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest job by hash: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argIdx))
		args = append(args, filter.Statuses)
		argIdx++
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("method = $%d", argIdx))
		args = append(args, filter.Method)
		argIdx++
	}
	if filter.DatasetIdentifier != "" {
		conditions = append(conditions, fmt.Sprintf("dataset_identifier = $%d", argIdx))
		args = append(args, filter.DatasetIdentifier)
		argIdx++
	}
	if filter.SKU != "" {
		conditions = append(conditions, fmt.Sprintf("sku = $%d", argIdx))
		args = append(args, filter.SKU)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY %s`,
		jobColumns, strings.Join(conditions, " AND "), selectionOrder)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) FetchPendingJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY `+selectionOrder+` LIMIT $2`,
		models.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// validTransitions is the job state machine. Merged rows are inserted already
// terminal by the factory and never transition again.
var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusCancelled},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed || status == models.JobStatusCancelled {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.Progress != nil {
		query += fmt.Sprintf(", progress = $%d", argIdx)
		args = append(args, *params.Progress)
		argIdx++
	}
	if params.Result != nil {
		result, err := json.Marshal(params.Result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
		query += fmt.Sprintf(", result = $%d", argIdx)
		args = append(args, result)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	// Progress only moves forward, and only while the job is running.
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = GREATEST(progress, $2), updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, progress, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAllJobs(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("delete all jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteCompletedJobs(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE status = $1`, models.JobStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("delete completed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CancelPendingByOptimizationID(ctx context.Context, optimizationID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE optimization_id = $1 AND status = $3`,
		optimizationID, models.JobStatusCancelled, models.JobStatusPending)
	if err != nil {
		return 0, fmt.Errorf("cancel pending jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
