package executor

import (
	"context"
	"fmt"

	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/pkg/schema"
)

func (x *Executor) execStart(node *schema.Node) *NodeResult {
	return success(map[string]any{"type": "start", "node_id": node.ID})
}

func (x *Executor) execMessage(node *schema.Node, view *RunView) *NodeResult {
	text, ok := dataString(node, view, "content")
	if !ok {
		text, ok = dataString(node, view, "label")
	}
	if !ok {
		return failure("message node has no content")
	}
	return success(map[string]any{"type": "message", "content": text})
}

// execQuestion covers both question and menu nodes: present a prompt plus a
// fixed option list, suspend on first visit, and store the external answer
// into the target variable once it arrives.
func (x *Executor) execQuestion(node *schema.Node, view *RunView) *NodeResult {
	varName, _ := node.Data["variable"].(string)
	if varName == "" {
		return failure(string(node.Type) + " node has no target variable")
	}

	if answer, ok := pendingInput(view); ok {
		return &NodeResult{
			Success:      true,
			Output:       map[string]any{"type": string(node.Type), "variable": varName, "answered": true},
			Variables:    map[string]any{varName: answer},
			ConsumeInput: true,
		}
	}

	prompt, ok := dataString(node, view, "content")
	if !ok {
		prompt, _ = dataString(node, view, "label")
	}
	output := map[string]any{
		"type":     string(node.Type),
		"content":  prompt,
		"variable": varName,
	}
	if options, ok := node.Data["options"]; ok {
		output["options"] = options
	}
	return &NodeResult{Success: true, Output: output, WaitForInput: true}
}

// execInput suspends awaiting free-form input, optionally checking it
// against a declared validation kind. Invalid input keeps the node
// suspended with an error for the caller to re-prompt.
func (x *Executor) execInput(node *schema.Node, view *RunView) *NodeResult {
	varName, _ := node.Data["variable"].(string)
	if varName == "" {
		return failure("input node has no target variable")
	}

	raw, ok := pendingInput(view)
	if !ok {
		prompt, _ := dataString(node, view, "content")
		output := map[string]any{
			"type":     "input",
			"content":  prompt,
			"variable": varName,
		}
		if kind, ok := node.Data["validation"].(string); ok && kind != "" {
			output["validation"] = kind
		}
		return &NodeResult{Success: true, Output: output, WaitForInput: true}
	}

	if kind, ok := node.Data["validation"].(string); ok && kind != "" {
		pattern, _ := node.Data["pattern"].(string)
		if err := checkInput(kind, raw, pattern); err != nil {
			// Stay suspended; the bad input is consumed so the next resume
			// delivers a fresh value.
			return &NodeResult{
				Success:      true,
				WaitForInput: true,
				ConsumeInput: true,
				Output: map[string]any{
					"type":     "input",
					"variable": varName,
					"error":    err.Error(),
				},
			}
		}
	}

	return &NodeResult{
		Success:      true,
		Output:       map[string]any{"type": "input", "variable": varName, "received": true},
		Variables:    map[string]any{varName: raw},
		ConsumeInput: true,
	}
}

// execCondition evaluates the node's ordered case list and reports the label
// of the first match, or "default". It never picks the next node itself;
// the engine's edge-resolution step consumes the selected label.
func (x *Executor) execCondition(ctx context.Context, node *schema.Node, view *RunView) *NodeResult {
	cases, err := parseConditionCases(node.Data["conditions"])
	if err != nil {
		return failure(err.Error())
	}

	selected := schema.DefaultRouteLabel
	for _, c := range cases {
		matched := false
		if c.Expression != "" {
			matched = x.evalExpressionCase(ctx, c.Expression, view)
		} else {
			matched = expressions.EvalCondition(c.Operator, view.Variables[c.Variable], c.Value)
		}
		if matched {
			selected = c.Label
			break
		}
	}

	return &NodeResult{
		Success:        true,
		Output:         map[string]any{"type": "condition", "selected": selected},
		SelectedOption: selected,
	}
}

// evalExpressionCase runs an expr-lang predicate with the run's variables as
// top-level identifiers. Evaluation errors count as non-matches.
func (x *Executor) evalExpressionCase(ctx context.Context, expression string, view *RunView) bool {
	if x.expr == nil {
		return false
	}
	out, err := x.expr.Evaluate(ctx, expression, view.Variables)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// execSetVariable sets a named variable from a literal value or a restricted
// expression. Expression parse failures return the substituted expression
// string unevaluated rather than failing the run.
func (x *Executor) execSetVariable(ctx context.Context, node *schema.Node, view *RunView) *NodeResult {
	varName, _ := node.Data["variable"].(string)
	if varName == "" {
		return failure("set_variable node has no target variable")
	}

	var value any
	switch {
	case node.Data["expression"] != nil:
		exprText, _ := node.Data["expression"].(string)
		substituted := expressions.Substitute(exprText, view.Variables)
		if mode, _ := node.Data["mode"].(string); mode == "expr" {
			value = x.evalExprMode(ctx, substituted, view)
		} else if expressions.LooksArithmetic(substituted) {
			if result, ok := expressions.EvalArith(substituted); ok {
				value = result
			} else {
				value = substituted
			}
		} else {
			value = substituted
		}
	case hasKey(node.Data, "value"):
		value = expressions.SubstituteAny(node.Data["value"], view.Variables)
	default:
		return failure("set_variable node has neither value nor expression")
	}

	return &NodeResult{
		Success:   true,
		Output:    map[string]any{"type": "set_variable", "variable": varName, "value": value},
		Variables: map[string]any{varName: value},
	}
}

// evalExprMode evaluates an expr-lang expression, falling back to the raw
// string on any error, the same contract as the arithmetic evaluator.
func (x *Executor) evalExprMode(ctx context.Context, expression string, view *RunView) any {
	if x.expr == nil {
		return expression
	}
	out, err := x.expr.Evaluate(ctx, expression, view.Variables)
	if err != nil {
		return expression
	}
	return out
}

func (x *Executor) execAction(node *schema.Node, view *RunView) *NodeResult {
	name, _ := dataString(node, view, "action")
	return success(map[string]any{"type": "action", "action": name, "simulated": true})
}

// execAPICall simulates an HTTP call. The mock_response payload (when
// authored) becomes the response body; an optional response_path jq program
// extracts the value bound to api_response.
func (x *Executor) execAPICall(ctx context.Context, node *schema.Node, view *RunView) *NodeResult {
	endpoint, ok := dataString(node, view, "endpoint")
	if !ok {
		return failure("api_call node has no endpoint")
	}
	method, _ := node.Data["method"].(string)
	if method == "" {
		method = "GET"
	}

	var body any = map[string]any{"success": true}
	if mock, ok := node.Data["mock_response"]; ok {
		body = mock
	}
	response := map[string]any{"status": float64(200), "body": body}

	bound := any(response)
	if path, ok := node.Data["response_path"].(string); ok && path != "" && x.jq != nil {
		extracted, err := x.jq.Evaluate(ctx, path, response)
		if err != nil {
			return failure(fmt.Sprintf("api_call response_path: %s", err.Error()))
		}
		bound = extracted
	}

	return &NodeResult{
		Success: true,
		Output: map[string]any{
			"type":      "api_call",
			"endpoint":  endpoint,
			"method":    method,
			"simulated": true,
		},
		Variables: map[string]any{"api_response": bound},
	}
}

func (x *Executor) execDelay(node *schema.Node) *NodeResult {
	duration, _ := node.Data["duration"].(float64)
	return success(map[string]any{"type": "delay", "duration_ms": duration})
}

func (x *Executor) execEmail(node *schema.Node, view *RunView) *NodeResult {
	to, ok := dataString(node, view, "to")
	if !ok {
		return failure("email node has no recipient")
	}
	subject, _ := dataString(node, view, "subject")
	body, _ := dataString(node, view, "body")
	return success(map[string]any{
		"type":      "email",
		"to":        to,
		"subject":   subject,
		"body":      body,
		"simulated": true,
	})
}

func (x *Executor) execWebhook(node *schema.Node, view *RunView) *NodeResult {
	endpoint, ok := dataString(node, view, "endpoint")
	if !ok {
		return failure("webhook node has no endpoint")
	}
	return &NodeResult{
		Success: true,
		Output: map[string]any{
			"type":      "webhook",
			"endpoint":  endpoint,
			"simulated": true,
		},
		Variables: map[string]any{"webhook_response": map[string]any{"delivered": true}},
	}
}

func (x *Executor) execAIResponse(node *schema.Node, view *RunView) *NodeResult {
	prompt, _ := dataString(node, view, "prompt")
	reply := fmt.Sprintf("[simulated AI response to: %s]", prompt)
	return &NodeResult{
		Success: true,
		Output: map[string]any{
			"type":      "ai_response",
			"prompt":    prompt,
			"simulated": true,
		},
		Variables: map[string]any{"ai_response": reply},
	}
}

func (x *Executor) execGoto(node *schema.Node) *NodeResult {
	target, _ := node.Data["target"].(string)
	if target == "" {
		return failure("goto node has no target")
	}
	return &NodeResult{
		Success:    true,
		Output:     map[string]any{"type": "goto", "target": target},
		NextNodeID: target,
	}
}

func (x *Executor) execEnd(node *schema.Node) *NodeResult {
	return success(map[string]any{"type": "end", "node_id": node.ID})
}

// parseConditionCases decodes the conditions list of a condition node.
func parseConditionCases(raw any) ([]schema.ConditionCase, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("condition node has no conditions list")
	}
	cases := make([]schema.ConditionCase, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := schema.ConditionCase{Value: m["value"]}
		c.Variable, _ = m["variable"].(string)
		c.Label, _ = m["label"].(string)
		c.Expression, _ = m["expression"].(string)
		if op, ok := m["operator"].(string); ok {
			c.Operator = schema.ConditionOperator(op)
		}
		if c.Label == "" {
			c.Label = schema.DefaultRouteLabel
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
