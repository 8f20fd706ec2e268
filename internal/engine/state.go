package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/botflowhq/botflow/pkg/schema"
)

// ExecutionState is the per-run state owned by the engine. It is mutated
// only by the engine's step loop (and the cancel path) under mu; external
// readers get defensive copies via Snapshot.
type ExecutionState struct {
	mu sync.Mutex

	ID          string                  `json:"id"`
	FlowID      string                  `json:"flow_id"`
	Status      schema.ExecutionStatus  `json:"status"`
	Variables   map[string]any          `json:"variables"`
	Context     map[string]any          `json:"context"`
	History     []schema.StepRecord     `json:"history"`
	CurrentNode string                  `json:"current_node"`
	StepCount   int                     `json:"step_count"`
	Error       string                  `json:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	CancelledAt *time.Time              `json:"cancelled_at,omitempty"`

	// flow is retained so resume can re-enter the same definition without
	// the caller re-supplying it.
	flow *schema.FlowDefinition
}

// newExecutionID generates a run identifier of the form
// exec_<unix-millis>_<random>.
func newExecutionID() string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("exec_%d_%s", time.Now().UnixMilli(), random)
}

// newExecutionState seeds variables from flow declarations, overridden by
// the caller's initial context, and copies the initial context into the
// run's context map.
func newExecutionState(flow *schema.FlowDefinition, initialContext map[string]any) *ExecutionState {
	now := time.Now().UTC()

	variables := make(map[string]any, len(flow.Variables)+len(initialContext))
	for _, decl := range flow.Variables {
		variables[decl.Name] = decl.Default
	}
	context := make(map[string]any, len(initialContext))
	for k, v := range initialContext {
		variables[k] = v
		context[k] = v
	}

	return &ExecutionState{
		ID:        newExecutionID(),
		FlowID:    flow.ID,
		Status:    schema.ExecutionStatusRunning,
		Variables: variables,
		Context:   context,
		StartedAt: now,
		UpdatedAt: now,
		flow:      flow,
	}
}

// Snapshot returns a defensive copy safe to hand outside the engine.
func (st *ExecutionState) Snapshot() *ExecutionState {
	st.mu.Lock()
	defer st.mu.Unlock()

	copyState := &ExecutionState{
		ID:          st.ID,
		FlowID:      st.FlowID,
		Status:      st.Status,
		Variables:   copyMap(st.Variables),
		Context:     copyMap(st.Context),
		History:     make([]schema.StepRecord, len(st.History)),
		CurrentNode: st.CurrentNode,
		StepCount:   st.StepCount,
		Error:       st.Error,
		StartedAt:   st.StartedAt,
		UpdatedAt:   st.UpdatedAt,
	}
	copy(copyState.History, st.History)
	if st.CancelledAt != nil {
		t := *st.CancelledAt
		copyState.CancelledAt = &t
	}
	return copyState
}

// touch updates the last-modified timestamp; callers hold mu.
func (st *ExecutionState) touch() {
	st.UpdatedAt = time.Now().UTC()
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
