// Package writer composes the final grounded response from merged
// evidence and streams it token-by-token over the thread's session.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// displayLimit caps how many merged items get enumerated into the
// prompt once vector evidence is present -- spec's "min(len(merged),
// 20) for vector-heavy merges; for SQL-only merges, include all rows".
const displayLimit = 20

// New builds the Response Writer node: it classifies merged evidence,
// composes a grounded system prompt, streams the answer over client,
// and returns the assistant turn.
func New(client *llm.Client, registry *streaming.Registry, logger log.Logger) func(ctx context.Context, turn state.Turn) (state.Delta, error) {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		prompt := buildPrompt(turn.Merged)

		var session *streaming.Session
		var hasSession bool
		if registry != nil {
			session, hasSession = registry.Lookup(turn.ThreadID)
		}
		onChunk := func(ctx context.Context, chunk string) error {
			if !hasSession {
				return nil
			}
			return session.EmitDelta(ctx, chunk)
		}

		answer, err := client.ChatStream(ctx, prompt, turn.Messages, onChunk)
		if err != nil {
			logger.Error("writer: chat stream failed for thread %s: %v", turn.ThreadID, err)
			return state.Delta{}, fmt.Errorf("writer: generate answer: %w", err)
		}

		if citations := renderCitations(turn.Merged); citations != "" {
			answer = answer + "\n\n" + citations
		}

		msgID := uuid.NewString()
		if hasSession {
			if emitErr := session.Emit(ctx, streaming.Event{
				Type: streaming.EventComplete,
				Data: streaming.Complete{MessageID: msgID},
			}); emitErr != nil {
				logger.Warn("writer: emit complete event for thread %s: %v", turn.ThreadID, emitErr)
			}
		}

		return state.Delta{
			FinalAnswer: state.Ptr(answer),
			Messages: []state.Message{
				{ID: msgID, Role: state.RoleAssistant, Text: answer},
			},
		}, nil
	}
}

// buildPrompt classifies merged by source and renders a grounded
// system prompt: one header per present category, each forbidding
// "evidence insufficient"-style phrasing and instructing the model to
// answer directly (citing [i][j] when vector evidence is included).
func buildPrompt(merged []state.Evidence) string {
	if len(merged) == 0 {
		return ""
	}

	hasVector := containsSource(merged, state.SourceVector)
	items := merged
	if hasVector && len(items) > displayLimit {
		items = items[:displayLimit]
	}

	grouped := groupBySource(items)

	var sb strings.Builder
	sb.WriteString("Answer the user's question directly and concretely using only the evidence below. ")
	sb.WriteString("Never respond that the evidence is insufficient, unavailable, or that you cannot access the data -- it is provided below.\n\n")
	if hasVector {
		sb.WriteString("When you use a retrieved passage, cite it inline with its bracket number, e.g. [1][2].\n\n")
	}

	index := 1
	for _, src := range []state.Source{state.SourceSQL, state.SourceKG, state.SourceVector} {
		group, ok := grouped[src]
		if !ok || len(group) == 0 {
			continue
		}
		sb.WriteString(headerFor(src))
		sb.WriteString("\n")
		for _, item := range group {
			fmt.Fprintf(&sb, "[%d] %s\n", index, item.Text)
			index++
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func headerFor(src state.Source) string {
	switch src {
	case state.SourceSQL:
		return "Database records:"
	case state.SourceVector:
		return "Retrieved passages:"
	case state.SourceKG:
		return "Knowledge graph facts:"
	default:
		return "Evidence:"
	}
}

func groupBySource(items []state.Evidence) map[state.Source][]state.Evidence {
	out := make(map[state.Source][]state.Evidence)
	for _, item := range items {
		out[item.Source] = append(out[item.Source], item)
	}
	return out
}

func containsSource(items []state.Evidence, src state.Source) bool {
	for _, item := range items {
		if item.Source == src {
			return true
		}
	}
	return false
}
