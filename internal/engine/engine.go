package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/botflowhq/botflow/internal/executor"
	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/internal/logging"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/internal/validation"
	"github.com/botflowhq/botflow/pkg/schema"
)

// maxStepsPerRun is the iteration guard: the hard ceiling on executed nodes
// per run. It is the runtime defense against the cycles the validator only
// warns about.
const maxStepsPerRun = 1000

// Result is returned by ExecuteFlow and ResumeFlow with the run outcome.
// A run that suspends returns Status waiting_input with the prompt in
// Output; that is the only way a call returns without reaching a terminal
// state.
type Result struct {
	Success     bool                   `json:"success"`
	ExecutionID string                 `json:"execution_id,omitempty"`
	Status      schema.ExecutionStatus `json:"status,omitempty"`
	Output      map[string]any         `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Errors      []string               `json:"errors,omitempty"`
	FinalState  *ExecutionState        `json:"final_state,omitempty"`
}

// Deps holds the collaborators an Engine is constructed with. Archive and
// Hub are optional; Logger defaults to slog.Default().
type Deps struct {
	Validator *validation.FlowValidator
	Executor  *executor.Executor
	CEL       *expressions.CELEngine
	Archive   store.Archive
	Hub       streaming.EventHub
	Logger    *slog.Logger
}

// Engine drives flow runs node by node: it validates definitions, maintains
// per-run state in its run table, resolves next nodes through edges, and
// implements the suspend/resume protocol for human-in-the-loop nodes.
type Engine struct {
	validator *validation.FlowValidator
	executor  *executor.Executor
	cel       *expressions.CELEngine
	archive   store.Archive
	hub       streaming.EventHub
	logger    *slog.Logger
	runs      *runTable
}

// New creates an Engine with its own empty run table.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.NewFlowValidator()
	}
	return &Engine{
		validator: validator,
		executor:  deps.Executor,
		cel:       deps.CEL,
		archive:   deps.Archive,
		hub:       deps.Hub,
		logger:    logger,
		runs:      newRunTable(),
	}
}

// ExecuteFlow validates the flow, creates a run, and steps it to completion
// or its first suspension point. Invalid flows fail fast: no run state is
// created.
func (e *Engine) ExecuteFlow(ctx context.Context, flow *schema.FlowDefinition, initialContext map[string]any) *Result {
	vr := e.validator.Validate(flow)
	if !vr.Valid() {
		return &Result{
			Success: false,
			Error:   "Flow validation failed",
			Errors:  vr.ErrorMessages(),
		}
	}

	start := firstStartNode(flow)
	if start == "" {
		// Unreachable after validation; kept as a defect guard.
		return &Result{Success: false, Error: "Flow validation failed", Errors: []string{"flow has no start node"}}
	}

	st := newExecutionState(flow, initialContext)
	st.CurrentNode = start
	e.runs.put(st)

	ctx = logging.WithExecutionID(logging.WithFlowID(ctx, flow.ID), st.ID)
	e.publish(ctx, st, schema.EventFlowStarted, nil)
	logging.LogWith(ctx, e.logger).Info("flow execution started")

	return e.stepLoop(ctx, st)
}

// ResumeFlow re-enters a suspended run with external input. The input map
// is merged into the run's context so the node that suspended sees its
// answer on the next executor call.
func (e *Engine) ResumeFlow(ctx context.Context, executionID string, externalInput map[string]any) *Result {
	st, ok := e.runs.get(executionID)
	if !ok {
		return &Result{Success: false, Error: "Execution not found"}
	}

	st.mu.Lock()
	if st.Status != schema.ExecutionStatusWaitingInput {
		status := st.Status
		st.mu.Unlock()
		return &Result{
			Success:     false,
			ExecutionID: executionID,
			Status:      status,
			Error:       fmt.Sprintf("cannot resume execution in status %s", status),
		}
	}
	for k, v := range externalInput {
		st.Context[k] = v
	}
	st.Status = schema.ExecutionStatusRunning
	st.touch()
	st.mu.Unlock()

	ctx = logging.WithExecutionID(logging.WithFlowID(ctx, st.FlowID), st.ID)
	e.publish(ctx, st, schema.EventFlowResumed, nil)
	logging.LogWith(ctx, e.logger).Info("flow execution resumed")

	return e.stepLoop(ctx, st)
}

// GetExecutionState returns a snapshot of the run, or nil when unknown.
// It never constructs a placeholder.
func (e *Engine) GetExecutionState(executionID string) *ExecutionState {
	st, ok := e.runs.get(executionID)
	if !ok {
		return nil
	}
	return st.Snapshot()
}

// CancelExecution transitions a non-terminal run to cancelled and stamps
// the cancellation time. Cancelling an unknown or already-terminal run
// returns false; terminal states are never re-entered or restamped.
func (e *Engine) CancelExecution(executionID string) bool {
	st, ok := e.runs.get(executionID)
	if !ok {
		return false
	}

	st.mu.Lock()
	if st.Status.Terminal() {
		st.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	st.Status = schema.ExecutionStatusCancelled
	st.CancelledAt = &now
	st.touch()
	st.mu.Unlock()

	ctx := logging.WithExecutionID(logging.WithFlowID(context.Background(), st.FlowID), st.ID)
	e.publish(ctx, st, schema.EventFlowCancelled, nil)
	e.archiveRun(ctx, st)
	logging.LogWith(ctx, e.logger).Info("flow execution cancelled")
	return true
}

// CleanupExecutions evicts runs whose last-touched timestamp is older than
// maxAge. An age of zero evicts everything. This sweep is the only way
// run-state memory is reclaimed.
func (e *Engine) CleanupExecutions(maxAge time.Duration) {
	evicted := e.runs.sweep(maxAge)
	if len(evicted) > 0 {
		e.logger.Info("cleaned up executions",
			slog.Int("evicted", len(evicted)),
			slog.Duration("max_age", maxAge))
	}
}

// ActiveRuns reports the number of entries currently in the run table.
func (e *Engine) ActiveRuns() int {
	return e.runs.len()
}

// --- step loop ---

// stepLoop executes nodes from the run's cursor until the run terminates or
// suspends. Each iteration appends a history record, applies the executor's
// deltas, and resolves the next node through the edge set.
func (e *Engine) stepLoop(ctx context.Context, st *ExecutionState) *Result {
	for {
		st.mu.Lock()
		// Cooperative cancellation: honor an out-of-band cancel between steps.
		if st.Status == schema.ExecutionStatusCancelled {
			st.mu.Unlock()
			return e.finish(ctx, st, nil)
		}

		st.StepCount++
		if st.StepCount > maxStepsPerRun {
			st.Status = schema.ExecutionStatusError
			st.Error = fmt.Sprintf("iteration limit exceeded: flow ran more than %d steps", maxStepsPerRun)
			st.touch()
			st.mu.Unlock()
			return e.finish(ctx, st, nil)
		}

		node := findNode(st.flow, st.CurrentNode)
		if node == nil {
			st.Status = schema.ExecutionStatusError
			st.Error = fmt.Sprintf("node %q not found in flow", st.CurrentNode)
			st.touch()
			st.mu.Unlock()
			return e.finish(ctx, st, nil)
		}

		view := &executor.RunView{
			ExecutionID: st.ID,
			FlowID:      st.FlowID,
			Variables:   copyMap(st.Variables),
			Context:     copyMap(st.Context),
		}
		st.mu.Unlock()

		nodeCtx := logging.WithNodeID(ctx, node.ID)
		res := e.safeExecute(nodeCtx, node, view)

		st.mu.Lock()
		st.History = append(st.History, schema.StepRecord{
			NodeID:    node.ID,
			NodeType:  node.Type,
			Timestamp: time.Now().UTC(),
			Output:    res.Output,
		})
		for k, v := range res.Variables {
			st.Variables[k] = v
		}
		if res.ConsumeInput {
			delete(st.Context, "userInput")
			delete(st.Context, "userResponse")
		}

		if !res.Success {
			st.Status = schema.ExecutionStatusError
			st.Error = res.Err
			st.touch()
			st.mu.Unlock()
			logging.LogWith(nodeCtx, e.logger).Error("node execution failed", slog.String("error", res.Err))
			return e.finish(ctx, st, res.Output)
		}

		e.publishLocked(nodeCtx, st, schema.EventNodeExecuted, res.Output)

		if res.WaitForInput {
			st.Status = schema.ExecutionStatusWaitingInput
			st.touch()
			st.mu.Unlock()
			e.publish(ctx, st, schema.EventFlowSuspended, res.Output)
			logging.LogWith(nodeCtx, e.logger).Info("flow suspended awaiting input")
			return e.suspendResult(st, res.Output)
		}

		if node.Type == schema.NodeTypeEnd {
			st.Status = schema.ExecutionStatusCompleted
			st.touch()
			st.mu.Unlock()
			return e.finish(ctx, st, res.Output)
		}

		next := e.nextNode(nodeCtx, st, node, res)
		if next == "" {
			st.Status = schema.ExecutionStatusCompleted
			st.touch()
			st.mu.Unlock()
			return e.finish(ctx, st, res.Output)
		}
		st.CurrentNode = next
		st.touch()
		st.mu.Unlock()
	}
}

// safeExecute invokes the executor, converting a panicking node handler
// into a failed result so one run's defect cannot take down its neighbors.
func (e *Engine) safeExecute(ctx context.Context, node *schema.Node, view *executor.RunView) (res *executor.NodeResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogWith(ctx, e.logger).Error("node handler panicked", slog.Any("panic", r))
			res = &executor.NodeResult{Success: false, Err: fmt.Sprintf("node handler panicked: %v", r)}
		}
	}()
	return e.executor.Execute(ctx, node, view)
}

// nextNode resolves the run's next cursor. A goto node's explicit target
// wins outright; otherwise resolution walks the current node's outgoing
// edges: a condition node's selected label first (falling back to the
// "default" label), then guarded/conditioned edges, then the default-labeled
// edge, then a single unconditioned edge. No outgoing edges means the run
// is complete. Callers hold no locks; variables are read under st.mu.
func (e *Engine) nextNode(ctx context.Context, st *ExecutionState, node *schema.Node, res *executor.NodeResult) string {
	if res.NextNodeID != "" {
		return res.NextNodeID
	}

	var outgoing []*schema.Edge
	for i := range st.flow.Edges {
		if st.flow.Edges[i].Source == node.ID {
			outgoing = append(outgoing, &st.flow.Edges[i])
		}
	}
	if len(outgoing) == 0 {
		return ""
	}

	// Branch label reported by a condition node.
	if res.SelectedOption != "" {
		for _, edge := range outgoing {
			if edge.Label == res.SelectedOption {
				return edge.Target
			}
		}
		for _, edge := range outgoing {
			if edge.Label == schema.DefaultRouteLabel {
				return edge.Target
			}
		}
		return ""
	}

	st.mu.Lock()
	variables := copyMap(st.Variables)
	runContext := copyMap(st.Context)
	st.mu.Unlock()

	var fallback *schema.Edge
	var unconditioned *schema.Edge
	for _, edge := range outgoing {
		switch {
		case edge.Guard != "":
			if e.cel == nil {
				continue
			}
			ok, err := e.cel.EvaluateBool(ctx, edge.Guard, map[string]any{
				"variables": variables,
				"context":   runContext,
			})
			if err != nil {
				logging.LogWith(ctx, e.logger).Warn("edge guard failed",
					slog.String("edge_id", edge.ID), slog.String("error", err.Error()))
				continue
			}
			if ok {
				return edge.Target
			}
		case edge.Condition != nil:
			if expressions.EvalCondition(edge.Condition.Operator, variables[edge.Condition.Variable], edge.Condition.Value) {
				return edge.Target
			}
		case edge.Label == schema.DefaultRouteLabel:
			if fallback == nil {
				fallback = edge
			}
		default:
			if unconditioned == nil {
				unconditioned = edge
			}
		}
	}

	if fallback != nil {
		return fallback.Target
	}
	if unconditioned != nil {
		return unconditioned.Target
	}
	return ""
}

// finish builds the terminal (or cancelled) result, publishes the matching
// event, and archives the run best-effort.
func (e *Engine) finish(ctx context.Context, st *ExecutionState, output map[string]any) *Result {
	snapshot := st.Snapshot()

	switch snapshot.Status {
	case schema.ExecutionStatusCompleted:
		e.publish(ctx, st, schema.EventFlowCompleted, output)
		logging.LogWith(ctx, e.logger).Info("flow execution completed",
			slog.Int("steps", snapshot.StepCount))
	case schema.ExecutionStatusError:
		e.publish(ctx, st, schema.EventFlowFailed, map[string]any{"error": snapshot.Error})
		logging.LogWith(ctx, e.logger).Error("flow execution failed",
			slog.String("error", snapshot.Error))
	}
	e.archiveRun(ctx, st)

	result := &Result{
		Success:     snapshot.Status == schema.ExecutionStatusCompleted,
		ExecutionID: snapshot.ID,
		Status:      snapshot.Status,
		Output:      output,
		FinalState:  snapshot,
	}
	if snapshot.Status != schema.ExecutionStatusCompleted {
		result.Error = snapshot.Error
		if result.Error == "" && snapshot.Status == schema.ExecutionStatusCancelled {
			result.Error = "execution cancelled"
		}
	}
	return result
}

// suspendResult reports a successful pause: the caller gets the run id and
// prompt output and re-enters later via ResumeFlow.
func (e *Engine) suspendResult(st *ExecutionState, output map[string]any) *Result {
	snapshot := st.Snapshot()
	return &Result{
		Success:     true,
		ExecutionID: snapshot.ID,
		Status:      snapshot.Status,
		Output:      output,
		FinalState:  snapshot,
	}
}

// archiveRun persists a terminal run snapshot best-effort; the in-memory
// table remains authoritative until cleanup evicts the entry.
func (e *Engine) archiveRun(ctx context.Context, st *ExecutionState) {
	if e.archive == nil {
		return
	}
	snapshot := st.Snapshot()
	if !snapshot.Status.Terminal() {
		return
	}
	record := &store.RunRecord{
		ID:          snapshot.ID,
		FlowID:      snapshot.FlowID,
		Status:      snapshot.Status,
		Variables:   snapshot.Variables,
		History:     snapshot.History,
		Error:       snapshot.Error,
		StepCount:   snapshot.StepCount,
		StartedAt:   snapshot.StartedAt,
		FinishedAt:  snapshot.UpdatedAt,
		CancelledAt: snapshot.CancelledAt,
	}
	if err := e.archive.SaveRun(ctx, record); err != nil {
		logging.LogWith(ctx, e.logger).Warn("archive run failed", slog.String("error", err.Error()))
	}
}

// publish emits a run lifecycle event to the hub best-effort.
func (e *Engine) publish(ctx context.Context, st *ExecutionState, eventType string, payload map[string]any) {
	if e.hub == nil {
		return
	}
	_ = e.hub.Publish(ctx, streaming.StreamEvent{
		ExecutionID: st.ID,
		FlowID:      st.FlowID,
		EventType:   eventType,
		Payload:     payload,
	})
}

// publishLocked is publish for callers already holding st.mu; it reads only
// immutable fields so no copy is needed.
func (e *Engine) publishLocked(ctx context.Context, st *ExecutionState, eventType string, payload map[string]any) {
	if e.hub == nil {
		return
	}
	_ = e.hub.Publish(ctx, streaming.StreamEvent{
		ExecutionID: st.ID,
		FlowID:      st.FlowID,
		EventType:   eventType,
		NodeID:      st.CurrentNode,
		Payload:     payload,
	})
}

// firstStartNode returns the id of the first start-typed node in authoring
// order.
func firstStartNode(flow *schema.FlowDefinition) string {
	for _, n := range flow.Nodes {
		if n.Type == schema.NodeTypeStart {
			return n.ID
		}
	}
	return ""
}

func findNode(flow *schema.FlowDefinition, id string) *schema.Node {
	for i := range flow.Nodes {
		if flow.Nodes[i].ID == id {
			return &flow.Nodes[i]
		}
	}
	return nil
}
