package store

import (
	"context"
	"time"

	"github.com/botflowhq/botflow/pkg/schema"
)

// RunRecord is the persisted form of a terminal run: enough to audit what
// happened after the in-memory state has been evicted.
type RunRecord struct {
	ID          string                 `json:"id"`
	FlowID      string                 `json:"flow_id"`
	Status      schema.ExecutionStatus `json:"status"`
	Variables   map[string]any         `json:"variables,omitempty"`
	History     []schema.StepRecord    `json:"history,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StepCount   int                    `json:"step_count"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	CancelledAt *time.Time             `json:"cancelled_at,omitempty"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	FlowID string
	Status *schema.ExecutionStatus
	Since  *time.Time
	Limit  int
}

// Archive persists terminal run records. The engine writes best-effort;
// the in-memory run table stays authoritative for live runs.
type Archive interface {
	SaveRun(ctx context.Context, record *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
