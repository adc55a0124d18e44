package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/rag"
)

// KGAdapter implements orchestrator.KGExecutor over a rag.KnowledgeGraph,
// dispatching by call_type the way spec §4.4 describes: graph.search is
// a read-only traversal, graph.write.{episode,entity,edge} mutate the
// graph (gated by orchestrator's own approval check before Execute is
// ever called), and graph.ingest.{detect,commit} probe/apply a batch of
// entities and edges assembled by an upstream extraction step (out of
// scope here; args carries the already-extracted entities/edges).
type KGAdapter struct {
	graph rag.KnowledgeGraph
}

// NewKGAdapter wraps graph for use as an orchestrator.KGExecutor.
func NewKGAdapter(graph rag.KnowledgeGraph) *KGAdapter {
	return &KGAdapter{graph: graph}
}

// Execute implements orchestrator.KGExecutor.
func (a *KGAdapter) Execute(ctx context.Context, callType string, args map[string]any, userID string) ([]state.Evidence, error) {
	switch callType {
	case "graph.search":
		return a.search(ctx, args)
	case "graph.write.entity":
		return a.writeEntity(ctx, args)
	case "graph.write.edge":
		return a.writeEdge(ctx, args)
	case "graph.write.episode":
		return a.writeEpisode(ctx, args)
	case "graph.ingest.detect":
		return a.ingestDetect(ctx, args)
	case "graph.ingest.commit":
		return a.ingestCommit(ctx, args)
	default:
		return nil, fmt.Errorf("kg adapter: unknown call_type %q", callType)
	}
}

func (a *KGAdapter) search(ctx context.Context, args map[string]any) ([]state.Evidence, error) {
	query := &rag.GraphQuery{
		EntityTypes:   toStringSlice(args["entity_types"]),
		Relationships: toStringSlice(args["relationships"]),
		StartEntity:   toString(args["start_entity"]),
		EntityType:    toString(args["entity_type"]),
		MaxDepth:      toInt(args["max_depth"]),
		Filters:       toMap(args["filters"]),
		Limit:         toInt(args["limit"]),
	}
	if query.StartEntity != "" {
		depth := query.MaxDepth
		if depth < 1 {
			depth = 1
		}
		entities, err := a.graph.GetRelatedEntities(ctx, query.StartEntity, depth)
		if err != nil {
			return nil, err
		}
		return entitiesToEvidence(entities), nil
	}

	result, err := a.graph.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	evidence := entitiesToEvidence(result.Entities)
	for _, rel := range result.Relationships {
		evidence = append(evidence, state.Evidence{
			Text:     fmt.Sprintf("%s --%s--> %s", rel.Source, rel.Type, rel.Target),
			Metadata: map[string]any{"id": rel.ID, "properties": rel.Properties},
			Source:   state.SourceKG,
		})
	}
	return evidence, nil
}

func (a *KGAdapter) writeEntity(ctx context.Context, args map[string]any) ([]state.Evidence, error) {
	entity := &rag.Entity{
		ID:         toString(args["id"]),
		Type:       toString(args["type"]),
		Name:       toString(args["name"]),
		Properties: toMap(args["properties"]),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := a.graph.AddEntity(ctx, entity); err != nil {
		return nil, err
	}
	return []state.Evidence{{
		Text:     fmt.Sprintf("added entity %s (%s)", entity.Name, entity.Type),
		Metadata: map[string]any{"id": entity.ID},
		Source:   state.SourceKG,
	}}, nil
}

func (a *KGAdapter) writeEdge(ctx context.Context, args map[string]any) ([]state.Evidence, error) {
	rel := &rag.Relationship{
		ID:         toString(args["id"]),
		Source:     toString(args["source"]),
		Target:     toString(args["target"]),
		Type:       toString(args["type"]),
		Properties: toMap(args["properties"]),
		CreatedAt:  time.Now(),
	}
	if err := a.graph.AddRelationship(ctx, rel); err != nil {
		return nil, err
	}
	return []state.Evidence{{
		Text:     fmt.Sprintf("added edge %s --%s--> %s", rel.Source, rel.Type, rel.Target),
		Metadata: map[string]any{"id": rel.ID},
		Source:   state.SourceKG,
	}}, nil
}

// writeEpisode records a whole turn's worth of context as a single
// entity node (type "episode"), the coarsest unit graph.write.episode
// operates on per spec §4.4.
func (a *KGAdapter) writeEpisode(ctx context.Context, args map[string]any) ([]state.Evidence, error) {
	entity := &rag.Entity{
		ID:   toString(args["id"]),
		Type: "episode",
		Name: toString(args["name"]),
		Properties: map[string]any{
			"content": toString(args["content"]),
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := a.graph.AddEntity(ctx, entity); err != nil {
		return nil, err
	}
	return []state.Evidence{{
		Text:     fmt.Sprintf("recorded episode %s", entity.ID),
		Metadata: map[string]any{"id": entity.ID},
		Source:   state.SourceKG,
	}}, nil
}

// ingestDetect previews the entities/edges a caller proposes to commit
// without writing them, returning a summary the human-approval flow
// (spec §4.9) can show before graph.ingest.commit is dispatched. The
// extraction itself (text -> entities/edges) is out of scope; args is
// expected to already carry the proposed entities/edges.
func (a *KGAdapter) ingestDetect(ctx context.Context, args map[string]any) ([]state.Evidence, error) {
	entities, _ := args["entities"].([]any)
	edges, _ := args["edges"].([]any)
	return []state.Evidence{{
		Text: fmt.Sprintf("detected %d entities and %d edges pending ingest", len(entities), len(edges)),
		Metadata: map[string]any{
			"entity_count": len(entities),
			"edge_count":   len(edges),
		},
		Source: state.SourceKG,
	}}, nil
}

// ingestCommit applies the entities/edges a prior graph.ingest.detect
// proposed. Each item must carry the same fields writeEntity/writeEdge
// expect.
func (a *KGAdapter) ingestCommit(ctx context.Context, args map[string]any) ([]state.Evidence, error) {
	var evidence []state.Evidence
	entities, _ := args["entities"].([]any)
	for _, raw := range entities {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		e, err := a.writeEntity(ctx, fields)
		if err != nil {
			return nil, err
		}
		evidence = append(evidence, e...)
	}
	edges, _ := args["edges"].([]any)
	for _, raw := range edges {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		e, err := a.writeEdge(ctx, fields)
		if err != nil {
			return nil, err
		}
		evidence = append(evidence, e...)
	}
	return evidence, nil
}

func entitiesToEvidence(entities []*rag.Entity) []state.Evidence {
	evidence := make([]state.Evidence, len(entities))
	for i, e := range entities {
		evidence[i] = state.Evidence{
			Text:     fmt.Sprintf("%s (%s)", e.Name, e.Type),
			Metadata: map[string]any{"id": e.ID, "properties": e.Properties},
			Source:   state.SourceKG,
		}
	}
	return evidence
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
