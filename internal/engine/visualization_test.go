package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

func noopNode(ctx context.Context, t state.Turn) (state.Delta, error) { return state.Delta{}, nil }

func TestExporterDrawMermaid(t *testing.T) {
	g := New(&log.NoOpLogger{})
	g.AddNode("A", noopNode)
	g.AddNode("B", noopNode)
	g.AddNode("C", noopNode)
	g.SetEntryPoint("A")
	g.AddEdge("A", "B")
	g.AddConditionalEdge("B", func(ctx context.Context, t state.Turn) []Send { return []Send{{Node: "C"}} })
	g.AddEdge("C", End)

	_, err := g.Compile()
	require.NoError(t, err)

	mermaid := NewExporter(g).DrawMermaid()
	assert.Contains(t, mermaid, "flowchart TD")
	assert.Contains(t, mermaid, "A --> B")
	assert.Contains(t, mermaid, "B -.-> B_condition((?))")
	assert.Contains(t, mermaid, "C --> END")

	lr := NewExporter(g).DrawMermaidWithOptions(MermaidOptions{Direction: "LR"})
	assert.Contains(t, lr, "flowchart LR")
}

func TestExporterDrawDOT(t *testing.T) {
	g := New(&log.NoOpLogger{})
	g.AddNode("A", noopNode)
	g.AddNode("B", noopNode)
	g.SetEntryPoint("A")
	g.AddEdge("A", "B")
	g.AddConditionalEdge("B", func(ctx context.Context, t state.Turn) []Send { return []Send{{Node: End}} })

	_, err := g.Compile()
	require.NoError(t, err)

	dot := NewExporter(g).DrawDOT()
	assert.Contains(t, dot, "A -> B;")
	assert.Contains(t, dot, "B -> B_condition [style=dashed, label=\"?\"];")
}

func TestExporterDrawASCIIMarksConditional(t *testing.T) {
	g := New(&log.NoOpLogger{})
	g.AddNode("A", noopNode)
	g.AddNode("B", noopNode)
	g.SetEntryPoint("A")
	g.AddEdge("A", "B")
	g.AddConditionalEdge("B", func(ctx context.Context, t state.Turn) []Send { return []Send{{Node: "A"}} })

	_, err := g.Compile()
	require.NoError(t, err)

	ascii := NewExporter(g).DrawASCII()
	assert.Contains(t, ascii, "A")
	assert.Contains(t, ascii, "B")
	assert.Contains(t, ascii, "(?)")
}

func TestExporterDrawASCIINoEntryPoint(t *testing.T) {
	g := New(&log.NoOpLogger{})
	assert.Equal(t, "No entry point set\n", NewExporter(g).DrawASCII())
}
