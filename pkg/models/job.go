// Package models contains shared data models used across the optimizer codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
	JobStatusMerged    = "merged"
)

const (
	MethodGrid = "grid"
	MethodAI   = "ai"
)

// TerminalStatuses are the statuses a job can never leave.
var TerminalStatuses = []string{JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusMerged}

// Job is the unit of schedulable optimization work: one (SKU, model, method)
// combination against one dataset. OptimizationID groups all jobs spawned for
// a single SKU's optimization request; BatchID groups every job created by one
// API call. OptimizationHash is the content fingerprint used for dedup —
// at most one job per hash may be pending or running at a time.
type Job struct {
	ID                uuid.UUID           `db:"id"                 json:"id"`
	OptimizationID    uuid.UUID           `db:"optimization_id"    json:"optimization_id"`
	BatchID           uuid.UUID           `db:"batch_id"           json:"batch_id"`
	OptimizationHash  string              `db:"optimization_hash"  json:"optimization_hash"`
	SKU               string              `db:"sku"                json:"sku"`
	ModelID           string              `db:"model_id"           json:"model_id"`
	Method            string              `db:"method"             json:"method"`
	DatasetID         uuid.UUID           `db:"dataset_id"         json:"dataset_id"`
	DatasetIdentifier string              `db:"dataset_identifier" json:"dataset_identifier"`
	Priority          int                 `db:"priority"           json:"priority"`
	Reason            string              `db:"reason"             json:"reason"`
	Status            string              `db:"status"             json:"status"`
	Progress          int                 `db:"progress"           json:"progress"`
	Result            *OptimizationResult `db:"result"             json:"result,omitempty"`
	ErrorMessage      *string             `db:"error_message"      json:"error_message,omitempty"`
	Payload           JobPayload          `db:"payload"            json:"payload"`
	StartedAt         *time.Time          `db:"started_at"         json:"started_at,omitempty"`
	CompletedAt       *time.Time          `db:"completed_at"       json:"completed_at,omitempty"`
	CreatedAt         time.Time           `db:"created_at"         json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at"         json:"updated_at"`
}

// IsTerminal reports whether the job's status admits no further transitions.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusMerged:
		return true
	}
	return false
}

// OptimizationResult is the output of a completed job: the chosen parameter
// set plus the accuracy metrics it achieved on the validation slice.
type OptimizationResult struct {
	Parameters map[string]float64 `json:"parameters"`
	MAPE       float64            `json:"mape"`
	RMSE       float64            `json:"rmse"`
	MAE        float64            `json:"mae"`
	Accuracy   float64            `json:"accuracy"`
	Reasoning  string             `json:"reasoning,omitempty"`
	Provider   string             `json:"provider,omitempty"`
	Model      string             `json:"model,omitempty"`
}
