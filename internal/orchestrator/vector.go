package orchestrator

import (
	"context"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// VectorSearcher runs one similarity search. Implementations typically
// wrap a rag vector store / embedder pair.
type VectorSearcher interface {
	Search(ctx context.Context, query string, filters map[string]any, topK int) ([]state.Evidence, error)
}

// QueryRewriter rephrases a query for a retry, used by the Vector
// worker's single allowed rewrite attempt.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// VectorWorkerConfig holds the Vector sub-graph's tunables (spec §4.4:
// "hits==0 or top1<min_score ... from config").
type VectorWorkerConfig struct {
	MinScore float64
	TopK     int
}

// vectorWorker implements the Prepare -> Fetch -> Assess ->
// (Answer | Rewrite(single retry) -> Fetch | Fallback) sub-graph spec
// §4.4 describes. It is folded into one node function rather than
// exposed as nested engine supersteps: the engine (see
// internal/engine's DESIGN.md entry) specializes to one flat Turn, and
// the outer barrier only needs this worker's final per-stage verdict,
// not visibility into its internal retry loop.
type vectorWorker struct {
	searcher VectorSearcher
	rewriter QueryRewriter
	cfg      VectorWorkerConfig
	logger   log.Logger
}

// NewVectorWorker returns the vector_worker node function.
func NewVectorWorker(searcher VectorSearcher, rewriter QueryRewriter, cfg VectorWorkerConfig, logger log.Logger) engine.NodeFunc {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	w := &vectorWorker{searcher: searcher, rewriter: rewriter, cfg: cfg, logger: logger}
	return w.run
}

func (w *vectorWorker) run(ctx context.Context, turn state.Turn) (state.Delta, error) {
	step, _ := engine.SendArg(ctx).(state.Step)

	ctx, cancel := context.WithTimeout(ctx, WorkerDeadline)
	defer cancel()

	query := stepQuery(step, turn)
	filters, _ := step.Args["filters"].(map[string]any)

	attempts := 0
	mode := state.RetrievalInitial
	var hits []state.Evidence
	var decision state.RAGDecision
	var confidence float64

	for {
		results, err := w.searcher.Search(ctx, query, filters, w.cfg.TopK)
		if err != nil {
			w.logger.Warn("vector_worker: search failed: %v", err)
			decision = state.RAGFallback
			break
		}
		hits = results
		confidence = topScore(results)

		lowConfidence := len(results) == 0 || confidence < w.cfg.MinScore
		if !lowConfidence {
			decision = state.RAGAnswer
			break
		}
		if attempts >= state.MaxRetrievalAttempts || w.rewriter == nil {
			decision = state.RAGFallback
			break
		}

		rewritten, err := w.rewriter.Rewrite(ctx, query)
		if err != nil || rewritten == "" {
			decision = state.RAGFallback
			break
		}
		query = rewritten
		mode = state.RetrievalRewrite
		attempts++
	}

	evidence := state.NoopEvidence()
	if decision == state.RAGAnswer {
		evidence = state.AppendEvidence(hits...)
	}

	return state.Delta{
		VecResults:        state.Ptr(evidence),
		RetrievalMode:     state.Ptr(mode),
		RetrievalAttempts: state.Ptr(attempts),
		LastQuery:         state.Ptr(query),
		VectorConfidence:  state.Ptr(confidence),
		RAGDecision:       state.Ptr(decision),
		Waiting:           state.Ptr(-1),
	}, nil
}

func stepQuery(step state.Step, turn state.Turn) string {
	if step.Args != nil {
		if q, ok := step.Args["query"].(string); ok && q != "" {
			return q
		}
	}
	if turn.LastQuery != "" {
		return turn.LastQuery
	}
	for i := len(turn.Messages) - 1; i >= 0; i-- {
		if turn.Messages[i].Role == state.RoleUser {
			return turn.Messages[i].Text
		}
	}
	return ""
}

func topScore(results []state.Evidence) float64 {
	if len(results) == 0 {
		return 0
	}
	best := results[0].Score
	for _, r := range results[1:] {
		if r.Score > best {
			best = r.Score
		}
	}
	return best
}
