package schema

import "time"

// ExecutionStatus is the lifecycle state of a flow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning      ExecutionStatus = "running"
	ExecutionStatusWaitingInput ExecutionStatus = "waiting_input"
	ExecutionStatusCompleted    ExecutionStatus = "completed"
	ExecutionStatusError        ExecutionStatus = "error"
	ExecutionStatusCancelled    ExecutionStatus = "cancelled"
)

// Terminal reports whether the status can never be left again.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusError || s == ExecutionStatusCancelled
}

// ValidExecutionTransitions defines the allowed status transitions for runs.
// waiting_input is the only non-terminal state reachable from running.
var ValidExecutionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusRunning:      {ExecutionStatusWaitingInput, ExecutionStatusCompleted, ExecutionStatusError, ExecutionStatusCancelled},
	ExecutionStatusWaitingInput: {ExecutionStatusRunning, ExecutionStatusCancelled},
	ExecutionStatusCompleted:    {},
	ExecutionStatusError:        {},
	ExecutionStatusCancelled:    {},
}

// StepRecord is one entry of a run's ordered history log.
type StepRecord struct {
	NodeID    string         `json:"node_id"`
	NodeType  NodeType       `json:"node_type"`
	Timestamp time.Time      `json:"timestamp"`
	Output    map[string]any `json:"output,omitempty"`
}

// Event types published to the streaming hub during a run.
const (
	EventFlowStarted   = "flow_started"
	EventFlowSuspended = "flow_suspended"
	EventFlowResumed   = "flow_resumed"
	EventFlowCompleted = "flow_completed"
	EventFlowFailed    = "flow_failed"
	EventFlowCancelled = "flow_cancelled"
	EventNodeExecuted  = "node_executed"
)
