package expressions

import "context"

// Engine evaluates expressions against a flow run's variables.
// Three implementations: Expr (condition/set_variable escape hatch),
// CEL (edge guards), JQ (api_call response extraction).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
