package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

func TestLinearGraph(t *testing.T) {
	g := New(nil)
	g.AddNode("a", func(ctx context.Context, in state.Turn) (state.Delta, error) {
		return state.Delta{ThreadID: state.Ptr("t1")}, nil
	})
	g.AddNode("b", func(ctx context.Context, in state.Turn) (state.Delta, error) {
		return state.Delta{FinalAnswer: state.Ptr("done:" + in.ThreadID)}, nil
	})
	g.AddEdge("a", "b")
	g.AddEdge("b", End)
	g.SetEntryPoint("a")

	r, err := g.Compile()
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), state.Turn{})
	require.NoError(t, err)
	assert.Equal(t, "t1", out.ThreadID)
	assert.Equal(t, "done:t1", out.FinalAnswer)
}

func TestSendFanOutSameNodeTwice(t *testing.T) {
	g := New(nil)
	g.AddNode("dispatch", func(ctx context.Context, in state.Turn) (state.Delta, error) {
		return state.Delta{}, nil
	})
	g.AddNode("worker", func(ctx context.Context, in state.Turn) (state.Delta, error) {
		arg := SendArg(ctx).(string)
		return state.Delta{
			SQLResults: &state.EvidenceUpdate{Op: state.OpAppend, Items: []state.Evidence{{Text: arg, Source: state.SourceSQL}}},
		}, nil
	})
	g.AddNode("done", func(ctx context.Context, in state.Turn) (state.Delta, error) {
		return state.Delta{FinalAnswer: state.Ptr("ok")}, nil
	})
	g.AddConditionalEdge("dispatch", func(ctx context.Context, t state.Turn) []Send {
		return []Send{{Node: "worker", Arg: "first"}, {Node: "worker", Arg: "second"}}
	})
	g.AddEdge("worker", "done")
	g.AddEdge("done", End)
	g.SetEntryPoint("dispatch")

	r, err := g.Compile()
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), state.Turn{})
	require.NoError(t, err)
	require.Len(t, out.SQLResults, 2)
	texts := []string{out.SQLResults[0].Text, out.SQLResults[1].Text}
	assert.ElementsMatch(t, []string{"first", "second"}, texts)
	assert.Equal(t, "ok", out.FinalAnswer)
}

func TestMissingEntryPoint(t *testing.T) {
	g := New(nil)
	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrEntryPointNotSet)
}

func TestNoOutgoingEdgeError(t *testing.T) {
	g := New(nil)
	g.AddNode("a", func(ctx context.Context, in state.Turn) (state.Delta, error) {
		return state.Delta{}, nil
	})
	g.SetEntryPoint("a")
	r, _ := g.Compile()
	_, err := r.Invoke(context.Background(), state.Turn{})
	assert.ErrorIs(t, err, ErrNoOutgoingEdge)
}
