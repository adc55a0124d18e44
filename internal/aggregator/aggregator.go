// Package aggregator implements the fan-in node spec §4.5 describes:
// merge per-source evidence into one list, then decide whether to
// take the fast path, loop back for another stage, or finish.
package aggregator

import (
	"context"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

// Node merges sql_results/vec_results/kg_results into merged and sets
// agg_route per spec §4.5's algorithm. It relies entirely on the
// engine's superstep ordering for correctness: by the time this node
// runs, every worker dispatched this stage has already committed its
// delta, so there is nothing here to poll or wait on (waiting is a
// tracing aid only).
func Node(ctx context.Context, turn state.Turn) (state.Delta, error) {
	merged := concat(turn.SQLResults, turn.VecResults, turn.KGResults)
	present := map[state.Source]bool{
		state.SourceSQL:    len(turn.SQLResults) > 0,
		state.SourceVector: len(turn.VecResults) > 0,
		state.SourceKG:     len(turn.KGResults) > 0,
	}

	route, nextStage := decide(turn, present, merged)

	delta := state.Delta{
		Merged:   state.Ptr(state.ReplaceEvidence(merged...)),
		AggRoute: state.Ptr(route),
	}
	if nextStage != nil {
		delta.StageIndex = nextStage
	}
	return delta, nil
}

func decide(turn state.Turn, present map[state.Source]bool, merged []state.Evidence) (state.AggRoute, *int) {
	if isFastPath(present, merged) {
		return state.AggFast, nil
	}
	if turn.Plan != nil && turn.StageIndex+1 < len(turn.Plan.Stages) {
		return state.AggMore, state.Ptr(turn.StageIndex + 1)
	}
	return state.AggDone, nil
}

// isFastPath implements spec §4.5 step 3: present sources limited to
// sql/kg (no vector contribution) with at least one record means the
// remaining stages can be skipped.
func isFastPath(present map[state.Source]bool, merged []state.Evidence) bool {
	if len(merged) == 0 {
		return false
	}
	return !present[state.SourceVector]
}

func concat(lists ...[]state.Evidence) []state.Evidence {
	var total int
	for _, l := range lists {
		total += len(l)
	}
	out := make([]state.Evidence, 0, total)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

