// Package streaming implements the per-thread event fan-out that turns
// one graph run into a live SSE response: a process-wide callback
// registry nodes invoke directly, and a producer/consumer queue the
// HTTP handler drains onto the socket.
package streaming

// EventType names one of the SSE event kinds a run can emit.
type EventType string

const (
	// EventMessage is the OpenAI-style chunk envelope: an opening role
	// chunk followed eventually by a final finish chunk.
	EventMessage EventType = "message"
	// EventPartialAI carries a streamed assistant delta plus the
	// accumulated content so far, and optional tool_calls.
	EventPartialAI EventType = "partial_ai"
	// EventToolEnd marks that a tool finished executing.
	EventToolEnd EventType = "on_tool_end"
	// EventToolResult carries a tool's output.
	EventToolResult EventType = "tool_result"
	// EventApprovalRequired asks the client to call the approval
	// endpoint before the run can continue.
	EventApprovalRequired EventType = "approval_required"
	// EventComplete is the terminal marker carrying the final message id.
	EventComplete EventType = "complete"
	// EventError terminates the stream with an error payload.
	EventError EventType = "error"

	// The remaining event types name optional tracing events for the
	// graph's internal phase transitions; no node in this module emits
	// them.
	EventPhase      EventType = "phase"
	EventDispatch   EventType = "dispatch"
	EventAggregate  EventType = "aggregate"
	EventPlanReady  EventType = "plan_ready"
	EventWriterStart EventType = "writer_start"
	EventWriterDone  EventType = "writer_done"
	EventDebug       EventType = "debug"
)

// Event is one SSE frame: Type names the event, Data is the
// JSON-serializable payload sent as the frame's data field.
type Event struct {
	Type EventType `json:"-"`
	Data any       `json:"-"`
}

// MessageChunk is EventMessage's payload, shaped like an OpenAI
// streaming chat-completion chunk.
type MessageChunk struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Finish  string `json:"finish_reason,omitempty"`
}

// PartialAI is EventPartialAI's payload.
type PartialAI struct {
	Delta       string `json:"delta"`
	Accumulated string `json:"accumulated"`
	ToolCalls   []any  `json:"tool_calls,omitempty"`
}

// ApprovalRequired is EventApprovalRequired's payload.
type ApprovalRequired struct {
	ThreadID  string `json:"thread_id"`
	ToolCalls []any  `json:"tool_calls"`
}

// Complete is EventComplete's payload.
type Complete struct {
	MessageID string `json:"message_id"`
}

// ErrorPayload is EventError's payload.
type ErrorPayload struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
	Trace string `json:"trace,omitempty"`
}
