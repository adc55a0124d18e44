// Package retrieval adapts the standalone rag package's retrieval and
// knowledge-graph implementations to the narrow interfaces the
// orchestrator's workers depend on (orchestrator.VectorSearcher,
// orchestrator.QueryRewriter, orchestrator.KGExecutor).
package retrieval

import (
	"context"
	"time"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/rag"
)

// VectorAdapter implements orchestrator.VectorSearcher over any
// rag.Retriever (in this deployment, always a VectorRetriever),
// translating between rag's Document-centric result shape and the
// Evidence records the rest of the graph reads.
type VectorAdapter struct {
	retriever rag.Retriever
}

// NewVectorAdapter wraps retriever for use as an orchestrator.VectorSearcher.
func NewVectorAdapter(retriever rag.Retriever) *VectorAdapter {
	return &VectorAdapter{retriever: retriever}
}

// Search implements orchestrator.VectorSearcher.
func (a *VectorAdapter) Search(ctx context.Context, query string, filters map[string]any, topK int) ([]state.Evidence, error) {
	config := &rag.RetrievalConfig{
		K:             topK,
		IncludeScores: true,
		Filter:        filters,
	}
	results, err := a.retriever.RetrieveWithConfig(ctx, query, config)
	if err != nil {
		return nil, err
	}
	evidence := make([]state.Evidence, len(results))
	for i, r := range results {
		meta := r.Document.Metadata
		if !r.Document.CreatedAt.IsZero() {
			meta = mergeIndexedAt(meta, r.Document.CreatedAt)
		}
		evidence[i] = state.Evidence{
			Text:     r.Document.Content,
			Score:    float64(r.Score),
			Metadata: meta,
			Source:   state.SourceVector,
		}
	}
	return evidence, nil
}

// mergeIndexedAt copies meta (never mutating the store's own map) and
// records when the cited document entered the vector store, so a
// citation footer can be extended with "as of" provenance later
// without the Vector worker needing to thread a second field through.
func mergeIndexedAt(meta map[string]any, indexedAt time.Time) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["indexed_at"] = indexedAt
	return out
}

// LLMQueryRewriter implements orchestrator.QueryRewriter with a
// one-shot completion: it asks the model to restate the query so a
// failed vector search's single retry has a real chance at different
// hits, mirroring the tool-probe/classification prompts intent package
// uses for its own one-shot LLM calls.
type LLMQueryRewriter struct {
	client *llm.Client
}

// NewLLMQueryRewriter wraps client for use as an orchestrator.QueryRewriter.
func NewLLMQueryRewriter(client *llm.Client) *LLMQueryRewriter {
	return &LLMQueryRewriter{client: client}
}

const rewritePrompt = `Rewrite the user's search query below to surface different, more specific phrasing a document index might match. Respond with only the rewritten query, nothing else.`

// Rewrite implements orchestrator.QueryRewriter.
func (r *LLMQueryRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	return r.client.Chat(ctx, rewritePrompt, []state.Message{{Role: state.RoleUser, Text: query}})
}
