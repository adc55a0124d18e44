package orchestrator

import (
	"context"
	"strings"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// KGExecutor dispatches one knowledge-graph call by its call_type
// (spec §4.4: graph.search, graph.write.*, graph.ingest.*).
type KGExecutor interface {
	Execute(ctx context.Context, callType string, args map[string]any, userID string) ([]state.Evidence, error)
}

// requiresApproval reports whether callType is a write-type call
// subject to human approval before it may run (spec §4.4/§4.9).
// graph.search and graph.ingest.detect are read-only probes;
// graph.write.* and graph.ingest.commit mutate the graph.
func requiresApproval(callType string) bool {
	return strings.HasPrefix(callType, "graph.write.") || callType == "graph.ingest.commit"
}

// NewKGWorker returns the kg_worker node function. A write-type call
// that hasn't already been marked approved (step.Args["approved"] ==
// true, set by the caller once the streaming layer's approval
// endpoint has been hit) is not executed; instead it surfaces a single
// Evidence record flagging the pending approval, so the Aggregator and
// Writer have something to act on without the Delta needing a field
// this state shape doesn't otherwise carry.
func NewKGWorker(executor KGExecutor, logger log.Logger) engine.NodeFunc {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		step, _ := engine.SendArg(ctx).(state.Step)

		ctx, cancel := context.WithTimeout(ctx, WorkerDeadline)
		defer cancel()

		callType, _ := step.Args["call_type"].(string)
		approved, _ := step.Args["approved"].(bool)

		if requiresApproval(callType) && !approved {
			return state.Delta{
				KGResults: state.Ptr(state.AppendEvidence(state.Evidence{
					Text:   "awaiting human approval for " + callType,
					Source: state.SourceKG,
					Metadata: map[string]any{
						"approval_required": true,
						"call_type":         callType,
					},
				})),
				Waiting: state.Ptr(-1),
			}, nil
		}

		results, err := executor.Execute(ctx, callType, step.Args, turn.UserID)
		if err != nil {
			logger.Warn("kg_worker: %v", err)
			return state.Delta{
				KGResults: state.Ptr(state.NoopEvidence()),
				Waiting:   state.Ptr(-1),
			}, nil
		}
		return state.Delta{
			KGResults: state.Ptr(state.AppendEvidence(results...)),
			Waiting:   state.Ptr(-1),
		}, nil
	}
}
