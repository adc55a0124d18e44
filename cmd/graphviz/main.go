// Command graphviz renders the compiled request graph's static
// topology -- the same node/edge shape cmd/server assembles -- as
// Mermaid, DOT, or an ASCII tree, for pasting into a PR description or
// eyeballing a routing change before it ships.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/orchestrator"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

const (
	nodeIntentSlot   = "intent_slot"
	nodeIntentDetect = "intent_detect"
	nodeCollectBase  = "collect_base"
	nodePlanner      = "planner"
	nodeWriter       = "writer"
)

func main() {
	format := flag.String("format", "ascii", "diagram format: ascii, mermaid, or dot")
	direction := flag.String("direction", "TD", "mermaid flowchart direction: TD or LR")
	flag.Parse()

	g := topology()
	if _, err := g.Compile(); err != nil {
		fmt.Fprintln(os.Stderr, titleStyle.Render("graph did not compile"), err)
		os.Exit(1)
	}
	exporter := engine.NewExporter(g)

	var body string
	switch *format {
	case "mermaid":
		body = exporter.DrawMermaidWithOptions(engine.MermaidOptions{Direction: *direction})
	case "dot":
		body = exporter.DrawDOT()
	case "ascii":
		body = exporter.DrawASCII()
	default:
		fmt.Fprintln(os.Stderr, titleStyle.Render("unknown -format"), *format)
		os.Exit(1)
	}

	fmt.Println(titleStyle.Render("request graph"))
	fmt.Println(bodyStyle.Render(body))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			MarginBottom(1)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("239")).
			Padding(0, 1)
)

// topology reproduces the node/edge shape cmd/server's buildGraph
// wires at startup, with stub NodeFunc/RouteFunc bodies -- this
// command never Invokes the graph, only Compiles and exports it, so
// no real LLM/DB/retrieval dependency needs to be constructed.
func topology() *engine.Graph {
	g := engine.New(nil)

	stub := func(ctx context.Context, t state.Turn) (state.Delta, error) { return state.Delta{}, nil }

	g.AddNode(nodeIntentSlot, stub)
	g.AddNode(nodeIntentDetect, stub)
	g.AddNode(nodeCollectBase, stub)
	g.AddNode(nodePlanner, stub)
	g.AddNode(orchestrator.NodeSetBarrier, stub)
	g.AddNode(orchestrator.NodeOrchestrator, stub)
	g.AddNode(orchestrator.NodeSQLWorker, stub)
	g.AddNode(orchestrator.NodeVectorWorker, stub)
	g.AddNode(orchestrator.NodeKGWorker, stub)
	g.AddNode(orchestrator.NodeAggregator, stub)
	g.AddNode(nodeWriter, stub)

	g.SetEntryPoint(nodeIntentSlot)
	g.AddEdge(nodeIntentSlot, nodeIntentDetect)
	g.AddEdge(nodeIntentDetect, nodeCollectBase)
	g.AddConditionalEdge(nodeCollectBase, func(ctx context.Context, t state.Turn) []engine.Send {
		return []engine.Send{{Node: nodePlanner}}
	})
	g.AddEdge(nodePlanner, orchestrator.NodeSetBarrier)
	g.AddEdge(orchestrator.NodeSetBarrier, orchestrator.NodeOrchestrator)
	g.AddConditionalEdge(orchestrator.NodeOrchestrator, func(ctx context.Context, t state.Turn) []engine.Send {
		return []engine.Send{{Node: orchestrator.NodeSQLWorker}}
	})
	g.AddEdge(orchestrator.NodeSQLWorker, orchestrator.NodeAggregator)
	g.AddEdge(orchestrator.NodeVectorWorker, orchestrator.NodeAggregator)
	g.AddEdge(orchestrator.NodeKGWorker, orchestrator.NodeAggregator)
	g.AddConditionalEdge(orchestrator.NodeAggregator, func(ctx context.Context, t state.Turn) []engine.Send {
		return []engine.Send{{Node: nodeWriter}}
	})
	g.AddEdge(nodeWriter, engine.End)

	return g
}
