package diagram

// NodeKind classifies a diagram node by the shape it renders with.
type NodeKind string

const (
	NodeKindStart     NodeKind = "start"
	NodeKindEnd       NodeKind = "end"
	NodeKindCondition NodeKind = "condition"
	NodeKindPrompt    NodeKind = "prompt" // question, menu, input
	NodeKindWait      NodeKind = "wait"   // delay
	NodeKindAction    NodeKind = "action" // everything else
)

// DiagramModel is the intermediate representation shared by all renderers.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node is a single flow node in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries a run's view of a node: whether it has executed and
// how the run relates to it right now.
type StatusOverlay struct {
	Status string // completed, running, suspended, failed, skipped
}

// Edge is a directed connection between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}
