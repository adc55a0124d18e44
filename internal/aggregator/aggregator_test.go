package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

func TestNodeMergesAllSources(t *testing.T) {
	turn := state.Turn{
		SQLResults: []state.Evidence{{Text: "s", Source: state.SourceSQL}},
		VecResults: []state.Evidence{{Text: "v", Source: state.SourceVector}},
		KGResults:  []state.Evidence{{Text: "k", Source: state.SourceKG}},
	}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)

	require.NotNil(t, delta.Merged)
	assert.Equal(t, state.OpReplace, delta.Merged.Op)
	require.Len(t, delta.Merged.Items, 3)
	assert.Equal(t, "s", delta.Merged.Items[0].Text)
	assert.Equal(t, "v", delta.Merged.Items[1].Text)
	assert.Equal(t, "k", delta.Merged.Items[2].Text)
}

func TestNodeFastPathWhenOnlySQLAndKGPresent(t *testing.T) {
	turn := state.Turn{
		SQLResults: []state.Evidence{{Text: "s", Source: state.SourceSQL}},
		KGResults:  []state.Evidence{{Text: "k", Source: state.SourceKG}},
		Plan:       &state.Plan{Stages: []state.Stage{{}, {}}},
		StageIndex: 0,
	}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)
	require.NotNil(t, delta.AggRoute)
	assert.Equal(t, state.AggFast, *delta.AggRoute)
	assert.Nil(t, delta.StageIndex)
}

func TestNodeFastPathRequiresNonEmptyMerged(t *testing.T) {
	turn := state.Turn{Plan: &state.Plan{Stages: []state.Stage{{}}}}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.AggDone, *delta.AggRoute)
}

func TestNodeVectorPresenceBlocksFastPath(t *testing.T) {
	turn := state.Turn{
		SQLResults: []state.Evidence{{Text: "s", Source: state.SourceSQL}},
		VecResults: []state.Evidence{{Text: "v", Source: state.SourceVector}},
		Plan:       &state.Plan{Stages: []state.Stage{{}, {}}},
		StageIndex: 0,
	}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.AggMore, *delta.AggRoute)
	require.NotNil(t, delta.StageIndex)
	assert.Equal(t, 1, *delta.StageIndex)
}

func TestNodeAdvancesStageWhenMoreStagesRemain(t *testing.T) {
	turn := state.Turn{
		VecResults: []state.Evidence{{Text: "v", Source: state.SourceVector}},
		Plan:       &state.Plan{Stages: []state.Stage{{}, {}, {}}},
		StageIndex: 1,
	}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.AggMore, *delta.AggRoute)
	assert.Equal(t, 2, *delta.StageIndex)
}

func TestNodeDoneWhenNoMoreStages(t *testing.T) {
	turn := state.Turn{
		VecResults: []state.Evidence{{Text: "v", Source: state.SourceVector}},
		Plan:       &state.Plan{Stages: []state.Stage{{}}},
		StageIndex: 0,
	}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.AggDone, *delta.AggRoute)
	assert.Nil(t, delta.StageIndex)
}

func TestNodeDoneWithNilPlan(t *testing.T) {
	turn := state.Turn{SQLResults: []state.Evidence{{Text: "s", Source: state.SourceSQL}}}
	delta, err := Node(context.Background(), turn)
	require.NoError(t, err)
	// sql-only with non-empty merged is the fast path even with no plan.
	assert.Equal(t, state.AggFast, *delta.AggRoute)
}
