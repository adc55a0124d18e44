package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Exporter renders a Graph's static topology (nodes, unconditional
// edges, conditional-edge anchors) in a handful of common diagram
// formats. It can't show what a RouteFunc or Send actually decides at
// runtime -- only where a conditional edge exists -- the same
// limitation the teacher's graph.Exporter documents for its own
// dynamic Command-based routing.
type Exporter struct {
	graph *Graph
}

// NewExporter wraps graph for diagram export. Safe to call before or
// after Compile; only the builder state (nodes/edges/cond/entryPoint)
// is read.
func NewExporter(graph *Graph) *Exporter {
	return &Exporter{graph: graph}
}

// MermaidOptions configures DrawMermaidWithOptions.
type MermaidOptions struct {
	Direction string // "TD" or "LR"; defaults to "TD"
}

// DrawMermaid renders a top-down Mermaid flowchart.
func (e *Exporter) DrawMermaid() string {
	return e.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions renders a Mermaid flowchart with the given
// direction.
func (e *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	if e.graph.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString("    style START fill:#90EE90\n")
		sb.WriteString(fmt.Sprintf("    START --> %s\n", e.graph.entryPoint))
	}

	for _, name := range e.nodeNames() {
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", name, name))
	}

	if e.hasEndEdge() {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	for _, ed := range e.graph.edges {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", ed.from, ed.to))
	}

	for _, from := range e.condNames() {
		sb.WriteString(fmt.Sprintf("    %s -.-> %s_condition((?))\n", from, from))
		sb.WriteString(fmt.Sprintf("    style %s_condition fill:#FFFFE0,stroke:#333,stroke-dasharray: 5 5\n", from))
	}

	if e.graph.entryPoint != "" {
		sb.WriteString(fmt.Sprintf("    style %s fill:#87CEEB\n", e.graph.entryPoint))
	}

	return sb.String()
}

// DrawDOT renders a Graphviz DOT digraph.
func (e *Exporter) DrawDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	if e.graph.entryPoint != "" {
		sb.WriteString("    START [label=\"START\", shape=ellipse, style=filled, fillcolor=lightgreen];\n")
		sb.WriteString(fmt.Sprintf("    START -> %s;\n", e.graph.entryPoint))
		sb.WriteString(fmt.Sprintf("    %s [style=filled, fillcolor=lightblue];\n", e.graph.entryPoint))
	}

	if e.hasEndEdge() {
		sb.WriteString("    END [label=\"END\", shape=ellipse, style=filled, fillcolor=lightpink];\n")
	}

	for _, ed := range e.graph.edges {
		sb.WriteString(fmt.Sprintf("    %s -> %s;\n", ed.from, ed.to))
	}

	for _, from := range e.condNames() {
		sb.WriteString(fmt.Sprintf("    %s -> %s_condition [style=dashed, label=\"?\"];\n", from, from))
		sb.WriteString(fmt.Sprintf("    %s_condition [label=\"?\", shape=diamond, style=filled, fillcolor=lightyellow];\n", from))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawASCII renders an indented tree following static edges from the
// entry point, marking cycles and conditional edges rather than
// expanding them (a RouteFunc's targets depend on runtime Turn
// content, not just the node it routes from).
func (e *Exporter) DrawASCII() string {
	if e.graph.entryPoint == "" {
		return "No entry point set\n"
	}
	var sb strings.Builder
	sb.WriteString("Graph Execution Flow:\n")
	sb.WriteString("├── START\n")
	e.drawASCIINode(e.graph.entryPoint, "│   ", true, map[string]bool{}, &sb)
	return sb.String()
}

func (e *Exporter) drawASCIINode(name, prefix string, isLast bool, visited map[string]bool, sb *strings.Builder) {
	connector, nextPrefix := "├──", prefix+"│   "
	if isLast {
		connector, nextPrefix = "└──", prefix+"    "
	}

	if visited[name] {
		sb.WriteString(fmt.Sprintf("%s%s %s (cycle)\n", prefix, connector, name))
		return
	}
	visited[name] = true
	sb.WriteString(fmt.Sprintf("%s%s %s\n", prefix, connector, name))

	if name == End {
		return
	}

	children := make([]string, 0)
	for _, ed := range e.graph.edges {
		if ed.from == name {
			children = append(children, ed.to)
		}
	}
	sort.Strings(children)

	_, conditional := e.graph.cond[name]
	if conditional {
		children = append(children, "(Conditional)")
	}

	for i, target := range children {
		last := i == len(children)-1
		if target == "(Conditional)" {
			condConnector := "├──"
			if last {
				condConnector = "└──"
			}
			sb.WriteString(fmt.Sprintf("%s%s (?)\n", nextPrefix, condConnector))
			continue
		}
		e.drawASCIINode(target, nextPrefix, last, visited, sb)
	}
}

func (e *Exporter) nodeNames() []string {
	names := make([]string, 0, len(e.graph.nodes))
	for name := range e.graph.nodes {
		if name != e.graph.entryPoint && name != End {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (e *Exporter) condNames() []string {
	names := make([]string, 0, len(e.graph.cond))
	for name := range e.graph.cond {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Exporter) hasEndEdge() bool {
	for _, ed := range e.graph.edges {
		if ed.to == End {
			return true
		}
	}
	return false
}
