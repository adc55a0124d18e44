// Package orchestrator implements the Set-Barrier/Orchestrator pair
// and the SQL/Vector/KG worker nodes spec §4.4 describes: the
// Orchestrator node itself is a placeholder whose only job is to be
// the origin of a conditional fan-out edge, and Set-Barrier precedes
// it to make the fan-in countable.
package orchestrator

import (
	"context"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

// Node names the graph wiring (built in cmd/server) registers these
// functions under. Exported so the Aggregator's routing back to
// Orchestrator, and the top-level graph assembly, can reference them
// without string literals scattered across packages.
const (
	NodeSetBarrier   = "set_barrier"
	NodeOrchestrator = "orchestrator"
	NodeSQLWorker    = "sql_worker"
	NodeVectorWorker = "vector_worker"
	NodeKGWorker     = "kg_worker"
	NodeAggregator   = "aggregator"
)

// workerNode maps a Plan Step's call type to the worker node that
// handles it.
func workerNode(call state.CallType) string {
	switch call {
	case state.CallSQL:
		return NodeSQLWorker
	case state.CallVector:
		return NodeVectorWorker
	case state.CallKG:
		return NodeKGWorker
	default:
		return NodeVectorWorker
	}
}

// DispatchSteps returns the steps the Orchestrator would dispatch for
// stage: all enabled steps when the stage is parallel, otherwise just
// the first enabled one. Set-Barrier and the Orchestrator's routing
// function both call this so the waiting count and the actual fan-out
// never disagree.
func DispatchSteps(stage state.Stage) []state.Step {
	var enabled []state.Step
	for _, s := range stage.Steps {
		if s.Enabled() {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		return nil
	}
	if stage.Parallel {
		return enabled
	}
	return enabled[:1]
}

// currentStage returns the Plan stage at turn's current index, or
// false if there is none (no plan, or index out of range).
func currentStage(turn state.Turn) (state.Stage, bool) {
	if turn.Plan == nil || turn.StageIndex < 0 || turn.StageIndex >= len(turn.Plan.Stages) {
		return state.Stage{}, false
	}
	return turn.Plan.Stages[turn.StageIndex], true
}

// SetBarrierNode sets waiting to the number of steps about to be
// dispatched, so the additive reducer can count workers back down to
// zero as they each report waiting:-1 (spec §4.4).
func SetBarrierNode(ctx context.Context, turn state.Turn) (state.Delta, error) {
	stage, ok := currentStage(turn)
	if !ok {
		return state.Delta{}, nil
	}
	n := len(DispatchSteps(stage))
	return state.Delta{Waiting: state.Ptr(n)}, nil
}

// OrchestratorNode does nothing: it exists only as the node the
// conditional routing edge (Route) is attached to.
func OrchestratorNode(ctx context.Context, turn state.Turn) (state.Delta, error) {
	return state.Delta{}, nil
}

// Route is the Orchestrator's conditional edge: it reads the current
// stage, drops when=false steps, and emits one Send per dispatched
// step (all concurrent for a parallel stage, one for a sequential
// stage). An empty stage routes straight to the Aggregator, since no
// worker will be along to report waiting:-1 for it.
func Route(ctx context.Context, turn state.Turn) []engine.Send {
	stage, ok := currentStage(turn)
	if !ok {
		return []engine.Send{{Node: NodeAggregator}}
	}
	steps := DispatchSteps(stage)
	if len(steps) == 0 {
		return []engine.Send{{Node: NodeAggregator}}
	}
	sends := make([]engine.Send, len(steps))
	for i, step := range steps {
		sends[i] = engine.Send{Node: workerNode(step.Call), Arg: step}
	}
	return sends
}
