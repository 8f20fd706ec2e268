package diagram

import (
	"fmt"
	"strings"
)

var mermaidClassDefs = []string{
	"classDef completed fill:#2d6a2d,stroke:#1a4a1a,color:#fff",
	"classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff",
	"classDef running fill:#1a5276,stroke:#0e3a52,color:#fff",
	"classDef suspended fill:#b7791a,stroke:#8a5c14,color:#fff",
	"classDef skipped fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5",
}

// RenderMermaid renders the model as a top-down Mermaid flowchart. Overlay
// statuses become class assignments against the classDef palette above.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", model.Title)
	}

	for _, node := range model.Nodes {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(node))
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = "|" + edge.Label + "|"
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", mermaidSafeID(edge.From), label, mermaidSafeID(edge.To))
	}

	b.WriteString("\n")
	for _, def := range mermaidClassDefs {
		fmt.Fprintf(&b, "    %s\n", def)
	}
	for _, node := range model.Nodes {
		if node.Status != nil && node.Status.Status != "" {
			fmt.Fprintf(&b, "    class %s %s\n", mermaidSafeID(node.ID), node.Status.Status)
		}
	}

	return b.String()
}

func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	case NodeKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindPrompt:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindWait:
		return fmt.Sprintf("%s[[%q]]", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// Mermaid identifiers cannot carry dots, dashes, or spaces.
func mermaidSafeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(id)
}
