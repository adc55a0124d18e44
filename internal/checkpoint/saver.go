package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// dangerousMetadataKeys are stripped from a checkpoint's metadata
// before the first write attempt: these routinely carry values
// (raw writes, task objects, commands) that aren't JSON-safe and
// aren't needed to resume a run, so paying the serialization cost -
// and risk - for them is pure downside. Ground truth:
// checkpointer_adapter.py's `dangerous_keys` tuple.
var dangerousMetadataKeys = map[string]bool{
	"writes":         true,
	"tasks":          true,
	"pending_writes": true,
	"commands":       true,
	"task_path":      true,
}

// allowedMetadataKeys is the fallback metadata shape used on a second
// attempt after the full metadata fails to serialize.
var allowedMetadataKeys = map[string]bool{
	"source":  true,
	"step":    true,
	"parents": true,
}

// Saver is Layer B: it serializes state.Turn into JSON-safe channel
// values and writes through a Store (typically an AutoReconnectStore),
// and reverses the conversion on read.
type Saver struct {
	store  Store
	logger log.Logger
}

func NewSaver(store Store, logger log.Logger) *Saver {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Saver{store: store, logger: logger}
}

// Save serializes turn into a new Checkpoint and writes it durably.
// parentID may be empty for the first checkpoint of a thread.
func (s *Saver) Save(ctx context.Context, threadID, parentID string, turn state.Turn, metadata map[string]any) (*Checkpoint, error) {
	values, err := turnToChannelValues(turn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: serialize turn: %w", err)
	}

	cp := &Checkpoint{
		ThreadID:      threadID,
		CheckpointID:  uuid.NewString(),
		ParentID:      parentID,
		ChannelValues: values,
		Metadata:      trimMetadata(metadata),
		CreatedAt:     time.Now(),
	}

	if err := s.store.Put(ctx, cp); err != nil {
		s.logger.Warn("checkpoint: save with full metadata failed, retrying with fallback metadata: %v", err)
		cp.Metadata = fallbackMetadata(metadata)
		if err := s.store.Put(ctx, cp); err != nil {
			return nil, fmt.Errorf("checkpoint: save failed even with fallback metadata: %w", err)
		}
	}
	return cp, nil
}

// Load reconstructs the Turn at the given checkpoint (or the latest
// one for the thread, if checkpointID is empty).
func (s *Saver) Load(ctx context.Context, threadID, checkpointID string) (state.Turn, *Checkpoint, error) {
	var cp *Checkpoint
	var err error
	if checkpointID == "" {
		cp, err = s.store.GetLatest(ctx, threadID)
	} else {
		cp, err = s.store.Get(ctx, threadID, checkpointID)
	}
	if err != nil {
		return state.Turn{}, nil, err
	}
	if cp == nil {
		return state.Turn{}, nil, nil
	}
	turn, err := channelValuesToTurn(cp.ChannelValues)
	return turn, cp, err
}

func trimMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if dangerousMetadataKeys[k] {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				if !dangerousMetadataKeys[nk] {
					inner[nk] = nv
				}
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}

func fallbackMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range metadata {
		if allowedMetadataKeys[k] {
			out[k] = v
		}
	}
	return out
}

// turnToChannelValues converts every field of Turn into its JSON-safe
// channel value, keyed the same way the json struct tags name them so
// a checkpoint row reads naturally.
func turnToChannelValues(turn state.Turn) (map[string]any, error) {
	raw := map[string]any{
		"thread_id":           turn.ThreadID,
		"user_id":             turn.UserID,
		"file_id":             turn.FileID,
		"messages":            turn.Messages,
		"intent":              string(turn.Intent),
		"intent_slots":        turn.IntentSlots,
		"suggested_tool":      turn.SuggestedTool,
		"plan":                turn.Plan,
		"stage_index":         turn.StageIndex,
		"sql_results":         turn.SQLResults,
		"vec_results":         turn.VecResults,
		"kg_results":          turn.KGResults,
		"merged":              turn.Merged,
		"waiting":             turn.Waiting,
		"agg_route":           string(turn.AggRoute),
		"candidate_tool_calls": turn.CandidateToolCalls,
		"already_streamed":    turn.AlreadyStreamed,
		"retrieval_mode":      string(turn.RetrievalMode),
		"retrieval_attempts":  turn.RetrievalAttempts,
		"last_query":          turn.LastQuery,
		"filters":             turn.Filters,
		"vector_candidates":   turn.VectorCandidates,
		"vector_confidence":   turn.VectorConfidence,
		"rag_decision":        string(turn.RAGDecision),
		"final_answer":        turn.FinalAnswer,
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		enc, err := ToJSONable(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

func channelValuesToTurn(values map[string]any) (state.Turn, error) {
	var turn state.Turn
	get := func(k string) any { return FromJSONable(values[k]) }

	if v, ok := get("thread_id").(string); ok {
		turn.ThreadID = v
	}
	if v, ok := get("user_id").(string); ok {
		turn.UserID = v
	}
	if v, ok := get("file_id").(string); ok {
		turn.FileID = v
	}
	if v, ok := values["messages"]; ok {
		if msgs, ok := FromJSONable(v).([]state.Message); ok {
			turn.Messages = msgs
		}
	}
	if v, ok := get("intent").(string); ok {
		turn.Intent = state.Intent(v)
	}
	if v, ok := get("suggested_tool").(string); ok {
		turn.SuggestedTool = v
	}
	if v, ok := get("stage_index").(float64); ok {
		turn.StageIndex = int(v)
	} else if v, ok := values["stage_index"].(int); ok {
		turn.StageIndex = v
	}
	turn.SQLResults = decodeEvidence(values["sql_results"])
	turn.VecResults = decodeEvidence(values["vec_results"])
	turn.KGResults = decodeEvidence(values["kg_results"])
	turn.Merged = decodeEvidence(values["merged"])
	turn.VectorCandidates = decodeEvidence(values["vector_candidates"])
	if v, ok := get("waiting").(float64); ok {
		turn.Waiting = int(v)
	} else if v, ok := values["waiting"].(int); ok {
		turn.Waiting = v
	}
	if v, ok := get("agg_route").(string); ok {
		turn.AggRoute = state.AggRoute(v)
	}
	if v, ok := get("candidate_tool_calls").(bool); ok {
		turn.CandidateToolCalls = v
	}
	if v, ok := get("already_streamed").(bool); ok {
		turn.AlreadyStreamed = v
	}
	if v, ok := get("retrieval_mode").(string); ok {
		turn.RetrievalMode = state.RetrievalMode(v)
	}
	if v, ok := get("retrieval_attempts").(float64); ok {
		turn.RetrievalAttempts = int(v)
	}
	if v, ok := get("last_query").(string); ok {
		turn.LastQuery = v
	}
	if v, ok := get("filters").(map[string]any); ok {
		turn.Filters = v
	}
	if v, ok := get("vector_confidence").(float64); ok {
		turn.VectorConfidence = v
	}
	if v, ok := get("rag_decision").(string); ok {
		turn.RAGDecision = state.RAGDecision(v)
	}
	if v, ok := get("final_answer").(string); ok {
		turn.FinalAnswer = v
	}
	return turn, nil
}

func decodeEvidence(raw any) []state.Evidence {
	list, ok := FromJSONable(raw).([]any)
	if !ok {
		return nil
	}
	out := make([]state.Evidence, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ev := state.Evidence{}
		if t, ok := m["text"].(string); ok {
			ev.Text = t
		}
		if sc, ok := m["score"].(float64); ok {
			ev.Score = sc
		}
		if src, ok := m["source"].(string); ok {
			ev.Source = state.Source(src)
		}
		if md, ok := m["metadata"].(map[string]any); ok {
			ev.Metadata = md
		}
		out = append(out, ev)
	}
	return out
}
