package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

func planWith(stages ...state.Stage) *state.Plan {
	return &state.Plan{Stages: stages}
}

func TestDispatchStepsParallelReturnsAllEnabled(t *testing.T) {
	disabled := false
	stage := state.Stage{
		Parallel: true,
		Steps: []state.Step{
			{Call: state.CallSQL},
			{Call: state.CallVector, When: &disabled},
			{Call: state.CallKG},
		},
	}
	steps := DispatchSteps(stage)
	require.Len(t, steps, 2)
	assert.Equal(t, state.CallSQL, steps[0].Call)
	assert.Equal(t, state.CallKG, steps[1].Call)
}

func TestDispatchStepsSequentialReturnsFirstOnly(t *testing.T) {
	stage := state.Stage{
		Parallel: false,
		Steps:    []state.Step{{Call: state.CallSQL}, {Call: state.CallVector}},
	}
	steps := DispatchSteps(stage)
	require.Len(t, steps, 1)
	assert.Equal(t, state.CallSQL, steps[0].Call)
}

func TestSetBarrierNodeCountsDispatchedSteps(t *testing.T) {
	turn := state.Turn{Plan: planWith(state.Stage{Parallel: true, Steps: []state.Step{{Call: state.CallSQL}, {Call: state.CallKG}}})}
	delta, err := SetBarrierNode(context.Background(), turn)
	require.NoError(t, err)
	require.NotNil(t, delta.Waiting)
	assert.Equal(t, 2, *delta.Waiting)
}

func TestSetBarrierNodeNoPlanIsZeroDelta(t *testing.T) {
	delta, err := SetBarrierNode(context.Background(), state.Turn{})
	require.NoError(t, err)
	assert.Nil(t, delta.Waiting)
}

func TestRouteParallelStageFansOutToAllWorkers(t *testing.T) {
	turn := state.Turn{Plan: planWith(state.Stage{
		Parallel: true,
		Steps:    []state.Step{{Call: state.CallSQL}, {Call: state.CallVector}, {Call: state.CallKG}},
	})}
	sends := Route(context.Background(), turn)
	require.Len(t, sends, 3)
	assert.Equal(t, NodeSQLWorker, sends[0].Node)
	assert.Equal(t, NodeVectorWorker, sends[1].Node)
	assert.Equal(t, NodeKGWorker, sends[2].Node)
}

func TestRouteSequentialStageDispatchesOneWorker(t *testing.T) {
	turn := state.Turn{Plan: planWith(state.Stage{
		Parallel: false,
		Steps:    []state.Step{{Call: state.CallVector}},
	})}
	sends := Route(context.Background(), turn)
	require.Len(t, sends, 1)
	assert.Equal(t, NodeVectorWorker, sends[0].Node)
}

func TestRouteEmptyStageGoesStraightToAggregator(t *testing.T) {
	no := false
	turn := state.Turn{Plan: planWith(state.Stage{
		Parallel: true,
		Steps:    []state.Step{{Call: state.CallSQL, When: &no}},
	})}
	sends := Route(context.Background(), turn)
	require.Len(t, sends, 1)
	assert.Equal(t, NodeAggregator, sends[0].Node)
}

func TestRouteNoPlanGoesStraightToAggregator(t *testing.T) {
	sends := Route(context.Background(), state.Turn{})
	require.Len(t, sends, 1)
	assert.Equal(t, NodeAggregator, sends[0].Node)
}

func TestOrchestratorNodeIsNoOp(t *testing.T) {
	delta, err := OrchestratorNode(context.Background(), state.Turn{})
	require.NoError(t, err)
	assert.Equal(t, state.Delta{}, delta)
}

var _ engine.NodeFunc = SetBarrierNode
var _ engine.NodeFunc = OrchestratorNode
