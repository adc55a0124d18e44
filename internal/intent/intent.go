// Package intent implements the turn-opening nodes spec §4.6
// describes: Intent-Slot enriches the turn with a slot bundle,
// Intent-Detect decides whether the turn needs tool-backed retrieval,
// and Collect-Base initializes the evidence fields and, depending on
// that decision, either answers directly (folding in the Simple-
// Response behavior spec §4.8 describes) or probes for a candidate
// tool call.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
	"github.com/xiaomayi-ant/smart-agent-go/internal/writer"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// signal names stored in IntentSlots.Slots["signals"].
const (
	sigDatetime = "has_datetime"
	sigLocation = "has_location"
	sigFromTo   = "has_from_to"
)

var (
	datetimeWords = []string{
		"today", "tomorrow", "yesterday", "tonight", "morning", "afternoon", "evening",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	}
	datetimePattern = regexp.MustCompile(`\b\d{1,2}:\d{2}\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}(am|pm)\b`)

	locationWords = []string{"location", "address", "city", "near", "where is", "nearby"}

	fromToPattern = regexp.MustCompile(`\bfrom\b.+\bto\b`)
)

// NewIntentSlot returns the intent_slot node. The real slot extractor
// is out of scope; this is a keyword/regex stand-in that produces the
// same bundle shape (spec §4.6) the rest of the graph reads.
func NewIntentSlot(logger log.Logger) engine.NodeFunc {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		utterance := lastUserText(turn)
		lower := strings.ToLower(utterance)

		signals := map[string]any{
			sigDatetime: containsAny(lower, datetimeWords) || datetimePattern.MatchString(lower),
			sigLocation: containsAny(lower, locationWords),
			sigFromTo:   fromToPattern.MatchString(lower),
		}

		slots := state.IntentSlots{
			Slots:    map[string]any{"signals": signals},
			Analysis: summarizeSignals(signals),
			Composed: utterance,
		}
		return state.Delta{IntentSlots: &slots}, nil
	}
}

// NewIntentDetect returns the intent_detect node: rule-first on the
// signals Intent-Slot produced, falling back to a one-shot LLM binary
// classification (spec §4.6).
func NewIntentDetect(client *llm.Client, logger log.Logger) engine.NodeFunc {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		if signalsRequireTool(turn.IntentSlots) {
			return state.Delta{Intent: state.Ptr(state.IntentTool)}, nil
		}

		reply, err := client.Chat(ctx, classifyPrompt, turn.Messages)
		if err != nil {
			logger.Warn("intent_detect: classification failed, defaulting to regular: %v", err)
			return state.Delta{Intent: state.Ptr(state.IntentRegular)}, nil
		}
		if strings.Contains(strings.ToLower(reply), "tool") {
			return state.Delta{Intent: state.Ptr(state.IntentTool)}, nil
		}
		return state.Delta{Intent: state.Ptr(state.IntentRegular)}, nil
	}
}

const classifyPrompt = `Decide whether answering the user's last message requires calling an external data tool (database lookup, document retrieval, or knowledge graph query) or can be answered directly from the conversation. Respond with exactly one word: "tool" or "regular".`

// signalsRequireTool implements spec §4.6's rule: any of
// has_datetime/has_location/has_from_to forces the tool branch.
func signalsRequireTool(slots state.IntentSlots) bool {
	raw, ok := slots.Slots["signals"]
	if !ok {
		return false
	}
	signals, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{sigDatetime, sigLocation, sigFromTo} {
		if on, _ := signals[key].(bool); on {
			return true
		}
	}
	return false
}

// requiresApproval reports whether tool is a call_type a human must
// approve before it runs, mirroring orchestrator's kg_worker gate
// (spec §4.4/§4.9): graph writes and ingest commits mutate the graph,
// so a tool probe that lands on one of these must not proceed
// unattended.
func requiresApproval(tool string) bool {
	return strings.HasPrefix(tool, "graph.write.") || tool == "graph.ingest.commit"
}

// NewCollectBase returns the collect_base node: the per-turn state
// initializer (spec §4.6). It always clears the evidence fields, then
// either streams a direct answer (regular branch, folding in the
// Simple-Response behavior of spec §4.8) or probes for a candidate
// tool call (tool branch), flagging approval-gated tools for the
// client rather than proceeding unattended.
func NewCollectBase(client *llm.Client, registry *streaming.Registry, logger log.Logger) engine.NodeFunc {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	simpleResponse := writer.NewSimpleResponse(client, registry, logger)
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		delta := state.Delta{
			SQLResults: state.Ptr(state.ClearEvidence()),
			VecResults: state.Ptr(state.ClearEvidence()),
			KGResults:  state.Ptr(state.ClearEvidence()),
			Merged:     state.Ptr(state.ClearEvidence()),
		}

		if turn.Intent == state.IntentTool {
			var session *streaming.Session
			var hasSession bool
			if registry != nil {
				session, hasSession = registry.Lookup(turn.ThreadID)
			}
			return collectTool(ctx, client, session, hasSession, turn, delta, logger)
		}

		answered, err := simpleResponse(ctx, turn)
		if err != nil {
			return state.Delta{}, err
		}
		delta.AlreadyStreamed = answered.AlreadyStreamed
		delta.FinalAnswer = answered.FinalAnswer
		delta.Messages = answered.Messages
		return delta, nil
	}
}

// collectTool runs the one-shot tool-candidate probe: ask the model
// which tool (if any) the turn needs, and if it lands on an
// approval-gated one, surface an approval_required event and stop
// rather than dispatch it unattended.
func collectTool(ctx context.Context, client *llm.Client, session *streaming.Session, hasSession bool, turn state.Turn, delta state.Delta, logger log.Logger) (state.Delta, error) {
	reply, err := client.Chat(ctx, toolProbePrompt, turn.Messages)
	if err != nil {
		logger.Warn("collect_base: tool probe failed for thread %s: %v", turn.ThreadID, err)
		delta.CandidateToolCalls = state.Ptr(false)
		return delta, nil
	}

	tool := strings.TrimSpace(reply)
	if strings.EqualFold(tool, "none") || tool == "" {
		delta.CandidateToolCalls = state.Ptr(false)
		return delta, nil
	}

	delta.CandidateToolCalls = state.Ptr(true)
	delta.SuggestedTool = state.Ptr(tool)

	if requiresApproval(tool) && hasSession {
		if emitErr := session.Emit(ctx, streaming.Event{
			Type: streaming.EventApprovalRequired,
			Data: streaming.ApprovalRequired{ThreadID: turn.ThreadID, ToolCalls: []any{tool}},
		}); emitErr != nil {
			logger.Warn("collect_base: emit approval_required event for thread %s: %v", turn.ThreadID, emitErr)
		}
	}
	return delta, nil
}

const toolProbePrompt = `Decide which single external tool call_type (e.g. "sql", "graph.search", "graph.write.entity", "graph.ingest.commit") best serves the user's last message. Respond with exactly that call_type and nothing else, or "none" if no tool call is warranted.`

// NewRoute returns the conditional edge run after collect_base: the
// regular branch already streamed its answer and ends the run; the
// tool branch either stops to await human approval (an
// approval_required event was already emitted for it) or proceeds to
// planNode to have its tool calls planned and dispatched.
func NewRoute(planNode string) engine.RouteFunc {
	return func(ctx context.Context, turn state.Turn) []engine.Send {
		if turn.Intent != state.IntentTool {
			return []engine.Send{{Node: engine.End}}
		}
		if !turn.CandidateToolCalls {
			return []engine.Send{{Node: engine.End}}
		}
		if requiresApproval(turn.SuggestedTool) {
			return []engine.Send{{Node: engine.End}}
		}
		return []engine.Send{{Node: planNode}}
	}
}

func lastUserText(turn state.Turn) string {
	for i := len(turn.Messages) - 1; i >= 0; i-- {
		if turn.Messages[i].Role == state.RoleUser {
			return turn.Messages[i].Text
		}
	}
	return ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func summarizeSignals(signals map[string]any) string {
	var on []string
	for _, key := range []string{sigDatetime, sigLocation, sigFromTo} {
		if v, _ := signals[key].(bool); v {
			on = append(on, key)
		}
	}
	if len(on) == 0 {
		return "signals: none"
	}
	return "signals: " + strings.Join(on, ",")
}
