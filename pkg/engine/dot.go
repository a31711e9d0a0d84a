package engine

import (
	"fmt"
	"strings"
)

// ToDOT renders a plan as a Graphviz DOT document, grouping nodes by stage.
func (p *ExecutionPlan) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph ExecutionPlan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, stage := range p.Stages {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_stage_%d {\n", stage.Order))
		sb.WriteString(fmt.Sprintf("    label=\"Stage %d\";\n", stage.Order))
		sb.WriteString("    style=dashed;\n")

		for _, id := range stage.Nodes {
			node := p.Graph.Nodes[id]
			label := fmt.Sprintf("%s\\n%s", node.Name, node.Type)
			sb.WriteString(fmt.Sprintf("    %q [label=%q, fillcolor=%q, style=\"filled,rounded\"];\n",
				id, label, nodeTypeColor(node.Type)))
		}

		sb.WriteString("  }\n\n")
	}

	for _, edge := range p.Graph.Edges {
		sb.WriteString(fmt.Sprintf("  %q -> %q [%s];\n", edge.From, edge.To, edgeKindStyle(edge.Kind)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func nodeTypeColor(t NodeType) string {
	switch t {
	case NodeTypeSource:
		return "lightgreen"
	case NodeTypeTransform:
		return "lightblue"
	case NodeTypeAggregate, NodeTypeProjection:
		return "lightyellow"
	case NodeTypeAlert, NodeTypeNotification:
		return "lightcoral"
	case NodeTypeDashboard:
		return "plum"
	case NodeTypeDevice:
		return "lightgray"
	default:
		return "white"
	}
}

func edgeKindStyle(k EdgeKind) string {
	switch k {
	case EdgeKindData:
		return "style=solid, color=black"
	case EdgeKindEvent:
		return "style=dashed, color=blue"
	case EdgeKindCondition:
		return "style=dotted, color=red"
	case EdgeKindDependency:
		return "style=dotted, color=gray"
	default:
		return "style=solid, color=black"
	}
}
