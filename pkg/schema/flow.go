package schema

// FlowDefinition is the JSON-serializable conversation flow format as
// authored by the visual editor. The engine treats it as read-only.
type FlowDefinition struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Nodes     []Node         `json:"nodes"`
	Edges     []Edge         `json:"edges"`
	Variables []VariableDecl `json:"variables,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Node is a single step in a flow. Data carries type-specific keys
// (content, variable, options, expression, ...) validated per type.
type Node struct {
	ID   string         `json:"id"`
	Type NodeType       `json:"type"`
	Data map[string]any `json:"data"`
}

// Edge is a directed connection between two nodes. Label doubles as the
// branch selector for condition-bearing sources ("default" is the fallback
// route). Condition, when set, guards the edge during next-node resolution.
// Guard is an optional CEL expression for routing beyond the fixed
// operator vocabulary.
type Edge struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Label     string         `json:"label,omitempty"`
	Condition *EdgeCondition `json:"condition,omitempty"`
	Guard     string         `json:"guard,omitempty"`
}

// EdgeCondition selects among multiple outgoing edges by comparing a
// variable's current value against Value with Operator.
type EdgeCondition struct {
	Variable string            `json:"variable"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// VariableDecl declares a typed flow variable with an optional default.
type VariableDecl struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"` // string, number, boolean, array, object
	Default any    `json:"default,omitempty"`
}

// NodeType enumerates the closed set of node kinds the executor understands.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeMessage     NodeType = "message"
	NodeTypeQuestion    NodeType = "question"
	NodeTypeMenu        NodeType = "menu"
	NodeTypeInput       NodeType = "input"
	NodeTypeCondition   NodeType = "condition"
	NodeTypeAction      NodeType = "action"
	NodeTypeAPICall     NodeType = "api_call"
	NodeTypeSetVariable NodeType = "set_variable"
	NodeTypeDelay       NodeType = "delay"
	NodeTypeEmail       NodeType = "email"
	NodeTypeWebhook     NodeType = "webhook"
	NodeTypeAIResponse  NodeType = "ai_response"
	NodeTypeGoto        NodeType = "goto"
	NodeTypeEnd         NodeType = "end"
)

// KnownNodeTypes is the closed set accepted by the validator and executor.
var KnownNodeTypes = map[NodeType]bool{
	NodeTypeStart:       true,
	NodeTypeMessage:     true,
	NodeTypeQuestion:    true,
	NodeTypeMenu:        true,
	NodeTypeInput:       true,
	NodeTypeCondition:   true,
	NodeTypeAction:      true,
	NodeTypeAPICall:     true,
	NodeTypeSetVariable: true,
	NodeTypeDelay:       true,
	NodeTypeEmail:       true,
	NodeTypeWebhook:     true,
	NodeTypeAIResponse:  true,
	NodeTypeGoto:        true,
	NodeTypeEnd:         true,
}

// ConditionOperator enumerates the comparison vocabulary shared by condition
// nodes and edge conditions.
type ConditionOperator string

const (
	OpEquals     ConditionOperator = "equals"
	OpNotEquals  ConditionOperator = "not_equals"
	OpGreater    ConditionOperator = "greater_than"
	OpLess       ConditionOperator = "less_than"
	OpContains   ConditionOperator = "contains"
	OpStartsWith ConditionOperator = "starts_with"
	OpEndsWith   ConditionOperator = "ends_with"
	OpIsEmpty    ConditionOperator = "is_empty"
	OpIsNotEmpty ConditionOperator = "is_not_empty"
)

// DefaultRouteLabel is the fallback branch label a condition node reports
// when no case matches, and the edge label the engine falls back to.
const DefaultRouteLabel = "default"

// ConditionCase is one (variable, operator, value, label) tuple of a
// condition node's ordered case list.
type ConditionCase struct {
	Variable   string            `json:"variable"`
	Operator   ConditionOperator `json:"operator"`
	Value      any               `json:"value,omitempty"`
	Label      string            `json:"label"`
	Expression string            `json:"expression,omitempty"` // expr-lang escape hatch
}

// InputValidationKinds enumerates the accepted `validation` values of an
// input node.
var InputValidationKinds = map[string]bool{
	"email": true, "phone": true, "url": true, "number": true,
	"date": true, "time": true, "regex": true,
}
