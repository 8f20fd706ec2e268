package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// statusFill maps an overlay status to fill and font colors for PNG output.
// The palette mirrors the classDef colors in the Mermaid renderer.
var statusFill = map[string][2]string{
	"completed": {"#2d6a2d", "white"},
	"failed":    {"#8b1a1a", "white"},
	"running":   {"#1a5276", "white"},
	"suspended": {"#b7791a", "white"},
	"skipped":   {"#e8e8e8", "#888888"},
}

// RenderImage renders the model to PNG bytes via graphviz dot layout.
func RenderImage(model *DiagramModel) ([]byte, error) {
	ctx := context.Background()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: new graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	byID := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gn, err := graph.CreateNodeByName(node.ID)
		if err != nil {
			return nil, fmt.Errorf("diagram: node %q: %w", node.ID, err)
		}
		gn.SetLabel(firstLine(node.Label))
		styleNode(gn, node)
		byID[node.ID] = gn
	}

	for _, edge := range model.Edges {
		from, to := byID[edge.From], byID[edge.To]
		if from == nil || to == nil {
			continue
		}
		ge, err := graph.CreateEdgeByName("", from, to)
		if err != nil {
			continue
		}
		if edge.Label != "" {
			ge.SetLabel(edge.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render: %w", err)
	}
	return buf.Bytes(), nil
}

func styleNode(gn *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindStart, NodeKindEnd:
		gn.SetShape(cgraph.CircleShape)
		gn.SetWidth(0.5)
		gn.SetHeight(0.5)
	case NodeKindCondition:
		gn.SetShape(cgraph.DiamondShape)
	case NodeKindPrompt, NodeKindWait:
		gn.SetShape(cgraph.EllipseShape)
	default:
		gn.SetShape(cgraph.BoxShape)
	}

	if node.Status == nil {
		return
	}
	colors, ok := statusFill[node.Status.Status]
	if !ok {
		return
	}
	if node.Status.Status == "skipped" {
		gn.SetStyle(cgraph.DashedNodeStyle)
	} else {
		gn.SetStyle(cgraph.FilledNodeStyle)
	}
	gn.SetFillColor(colors[0])
	gn.SetFontColor(colors[1])
}
