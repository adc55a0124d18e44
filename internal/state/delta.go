package state

// Delta is a partial update a node returns instead of a full Turn.
// A nil field means "this node didn't touch that field"; only
// non-nil fields get merged, through the field's reducer, into the
// running Turn. This is the typed equivalent of the teacher's
// map[string]any + per-key Reducer scheme (graph.MapSchema), adapted
// so that node functions get compile-time-checked field access
// instead of map[string]any type assertions.
type Delta struct {
	Messages []Message // always append-with-dedup, never "replaces"

	ThreadID *string
	UserID   *string
	FileID   *string

	Intent        *Intent
	IntentSlots   *IntentSlots
	SuggestedTool *string

	Plan       *Plan
	StageIndex *int

	SQLResults *EvidenceUpdate
	VecResults *EvidenceUpdate
	KGResults  *EvidenceUpdate
	Merged     *EvidenceUpdate

	Waiting *int // additive: added to current, not assigned

	AggRoute *AggRoute

	CandidateToolCalls *bool
	AlreadyStreamed    *bool

	RetrievalMode     *RetrievalMode
	RetrievalAttempts *int
	LastQuery         *string
	Filters           map[string]any
	VectorCandidates  *EvidenceUpdate
	VectorConfidence  *float64
	RAGDecision       *RAGDecision

	FinalAnswer *string
}

// Merge applies delta to current following each field's reducer and
// returns the resulting Turn. Overwrite and append results depend on
// the order in which deltas are applied, so the superstep engine merges
// the deltas of one superstep in a fixed order, sorted by node name
// (see engine.Runnable.Invoke).
func Merge(current Turn, delta Delta) Turn {
	next := current

	next.Messages = MergeMessages(next.Messages, delta.Messages)

	if delta.ThreadID != nil {
		next.ThreadID = *delta.ThreadID
	}
	if delta.UserID != nil {
		next.UserID = *delta.UserID
	}
	if delta.FileID != nil {
		next.FileID = *delta.FileID
	}
	if delta.Intent != nil {
		next.Intent = *delta.Intent
	}
	if delta.IntentSlots != nil {
		next.IntentSlots = *delta.IntentSlots
	}
	if delta.SuggestedTool != nil {
		next.SuggestedTool = *delta.SuggestedTool
	}
	if delta.Plan != nil {
		next.Plan = delta.Plan
	}
	if delta.StageIndex != nil {
		next.StageIndex = *delta.StageIndex
	}
	if delta.SQLResults != nil {
		next.SQLResults = ClearableAppendReducer(next.SQLResults, *delta.SQLResults)
	}
	if delta.VecResults != nil {
		next.VecResults = ClearableAppendReducer(next.VecResults, *delta.VecResults)
	}
	if delta.KGResults != nil {
		next.KGResults = ClearableAppendReducer(next.KGResults, *delta.KGResults)
	}
	if delta.Merged != nil {
		next.Merged = ClearableAppendReducer(next.Merged, *delta.Merged)
	}
	if delta.Waiting != nil {
		next.Waiting = AdditiveReducer(next.Waiting, *delta.Waiting)
	}
	if delta.AggRoute != nil {
		next.AggRoute = *delta.AggRoute
	}
	if delta.CandidateToolCalls != nil {
		next.CandidateToolCalls = *delta.CandidateToolCalls
	}
	if delta.AlreadyStreamed != nil {
		next.AlreadyStreamed = *delta.AlreadyStreamed
	}
	if delta.RetrievalMode != nil {
		next.RetrievalMode = *delta.RetrievalMode
	}
	if delta.RetrievalAttempts != nil {
		next.RetrievalAttempts = *delta.RetrievalAttempts
	}
	if delta.LastQuery != nil {
		next.LastQuery = *delta.LastQuery
	}
	if delta.Filters != nil {
		next.Filters = delta.Filters
	}
	if delta.VectorCandidates != nil {
		next.VectorCandidates = ClearableAppendReducer(next.VectorCandidates, *delta.VectorCandidates)
	}
	if delta.VectorConfidence != nil {
		next.VectorConfidence = *delta.VectorConfidence
	}
	if delta.RAGDecision != nil {
		next.RAGDecision = *delta.RAGDecision
	}
	if delta.FinalAnswer != nil {
		next.FinalAnswer = *delta.FinalAnswer
	}

	return next
}

// Ptr is a small generic helper for building Delta literals without
// spelling out a local variable for every pointer field, e.g.
// state.Delta{StageIndex: state.Ptr(0)}.
func Ptr[T any](v T) *T { return &v }
