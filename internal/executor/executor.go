package executor

import (
	"context"

	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/pkg/schema"
)

// RunView is the read-only snapshot of run state a node executes against.
// The executor never mutates it; all changes come back as NodeResult deltas
// for the engine to apply.
type RunView struct {
	ExecutionID string
	FlowID      string
	Variables   map[string]any
	Context     map[string]any
}

// NodeResult carries the outcome of executing one node.
type NodeResult struct {
	Success        bool
	Output         map[string]any
	Variables      map[string]any // variable deltas to apply
	WaitForInput   bool
	NextNodeID     string // set only by goto nodes
	SelectedOption string // branch label reported by condition nodes
	ConsumeInput   bool   // external input was consumed; engine clears it
	Err            string
}

// Executor dispatches node execution by type. It owns the shared
// substitution, condition, and expression primitives; side-effecting node
// types (api_call, webhook, email, ai_response) are simulated; a real
// deployment injects concrete transports behind the same per-type contract.
type Executor struct {
	expr *expressions.ExprEngine
	jq   *expressions.JQEngine
}

// New creates an Executor. Both engines are optional; the corresponding
// escape hatches (expression conditions, response_path extraction) degrade
// to failures when nil.
func New(exprEngine *expressions.ExprEngine, jqEngine *expressions.JQEngine) *Executor {
	return &Executor{expr: exprEngine, jq: jqEngine}
}

// Execute runs a single node against the run view. A nil node or unknown
// type is a hard failure: it signals a defect in the caller, not a
// suspension point.
func (x *Executor) Execute(ctx context.Context, node *schema.Node, view *RunView) *NodeResult {
	if node == nil {
		return failure("node is nil")
	}

	switch node.Type {
	case schema.NodeTypeStart:
		return x.execStart(node)
	case schema.NodeTypeMessage:
		return x.execMessage(node, view)
	case schema.NodeTypeQuestion, schema.NodeTypeMenu:
		return x.execQuestion(node, view)
	case schema.NodeTypeInput:
		return x.execInput(node, view)
	case schema.NodeTypeCondition:
		return x.execCondition(ctx, node, view)
	case schema.NodeTypeSetVariable:
		return x.execSetVariable(ctx, node, view)
	case schema.NodeTypeAction:
		return x.execAction(node, view)
	case schema.NodeTypeAPICall:
		return x.execAPICall(ctx, node, view)
	case schema.NodeTypeDelay:
		return x.execDelay(node)
	case schema.NodeTypeEmail:
		return x.execEmail(node, view)
	case schema.NodeTypeWebhook:
		return x.execWebhook(node, view)
	case schema.NodeTypeAIResponse:
		return x.execAIResponse(node, view)
	case schema.NodeTypeGoto:
		return x.execGoto(node)
	case schema.NodeTypeEnd:
		return x.execEnd(node)
	default:
		return failure("unknown node type: " + string(node.Type))
	}
}

// failure builds a failed result with an error message.
func failure(msg string) *NodeResult {
	return &NodeResult{Success: false, Err: msg}
}

// success builds a successful result with a type-tagged output record.
func success(output map[string]any) *NodeResult {
	return &NodeResult{Success: true, Output: output}
}

// pendingInput returns the external input delivered by a resume call, if
// any. Callers accept both userInput and userResponse keys.
func pendingInput(view *RunView) (any, bool) {
	if view.Context == nil {
		return nil, false
	}
	if v, ok := view.Context["userInput"]; ok {
		return v, true
	}
	if v, ok := view.Context["userResponse"]; ok {
		return v, true
	}
	return nil, false
}

// dataString fetches a string field from node data, substituted against the
// run's variables.
func dataString(node *schema.Node, view *RunView, key string) (string, bool) {
	v, ok := node.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return expressions.Substitute(s, view.Variables), true
}
