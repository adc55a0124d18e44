package state

// Intent classifies whether a request needs tool-backed retrieval or
// can be answered directly.
type Intent string

const (
	IntentRegular Intent = "regular"
	IntentTool    Intent = "tool"
)

// AggRoute is the Aggregator's verdict on what should happen next.
type AggRoute string

const (
	AggMore AggRoute = "more" // advance stage_index, loop back to Orchestrator
	AggFast AggRoute = "fast" // fast-path: skip remaining stages, go straight to Writer
	AggDone AggRoute = "done" // no more stages, go to Writer
)

// RetrievalMode records which vector retrieval strategy the Vector
// sub-graph is currently pursuing within its Prepare/Fetch/Assess loop.
type RetrievalMode string

const (
	RetrievalInitial RetrievalMode = "initial"
	RetrievalRewrite RetrievalMode = "rewrite"
)

// RAGDecision is the Vector sub-graph Assess stage's verdict.
type RAGDecision string

const (
	RAGAnswer   RAGDecision = "answer"
	RAGRewrite  RAGDecision = "rewrite"
	RAGFallback RAGDecision = "fallback"
)

// IntentSlots holds the structured slot-filling bundle produced by
// Intent-Slot. The slot extraction internals are out of scope; this is
// just the bundle shape the rest of the graph reads.
type IntentSlots struct {
	Slots    map[string]any `json:"slots,omitempty"`
	Analysis string         `json:"analysis,omitempty"`
	Composed string         `json:"composed,omitempty"`
}

// Turn is the per-request graph state threaded through every node.
// Field comments name the reducer that applies to each field; Merge
// (delta.go) applies them. Fields whose comment names no other reducer
// use overwrite.
type Turn struct {
	// identity / transport, overwrite
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	FileID   string `json:"file_id,omitempty"`

	// conversation, append-with-dedup-by-id
	Messages []Message `json:"messages"`

	// intent classification, overwrite
	Intent       Intent      `json:"intent"`
	IntentSlots  IntentSlots `json:"intent_slots"`
	SuggestedTool string     `json:"suggested_tool,omitempty"`

	// planning, overwrite
	Plan       *Plan `json:"plan,omitempty"`
	StageIndex int   `json:"stage_index"`

	// evidence, clearable-append
	SQLResults []Evidence `json:"sql_results,omitempty"`
	VecResults []Evidence `json:"vec_results,omitempty"`
	KGResults  []Evidence `json:"kg_results,omitempty"`
	Merged     []Evidence `json:"merged,omitempty"`

	// fan-out/fan-in barrier, additive
	Waiting int `json:"waiting"`

	// aggregator verdict, overwrite
	AggRoute AggRoute `json:"agg_route,omitempty"`

	// collect-base bookkeeping, overwrite
	CandidateToolCalls bool `json:"candidate_tool_calls"`
	AlreadyStreamed    bool `json:"already_streamed"`

	// vector sub-graph rewrite loop, overwrite
	RetrievalMode      RetrievalMode  `json:"retrieval_mode,omitempty"`
	RetrievalAttempts  int            `json:"retrieval_attempts"`
	LastQuery          string         `json:"last_query,omitempty"`
	Filters            map[string]any `json:"filters,omitempty"`
	VectorCandidates   []Evidence     `json:"vector_candidates,omitempty"`
	VectorConfidence   float64        `json:"vector_confidence"`
	RAGDecision        RAGDecision    `json:"rag_decision,omitempty"`

	// final answer, overwrite
	FinalAnswer string `json:"final_answer,omitempty"`
}

// MaxRetrievalAttempts bounds the Vector sub-graph's rewrite loop
// (initial fetch + at most this many rewrites), matching the original
// AppState's retrieval_attempts default.
const MaxRetrievalAttempts = 1
