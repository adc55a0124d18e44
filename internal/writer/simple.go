package writer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// NewSimpleResponse builds the Simple-Response node: used on the
// regular-intent branch, when no tool candidates were proposed. It
// streams an answer straight over the conversation messages with no
// additional system prompt, the same contract as New but skipping
// buildPrompt entirely.
func NewSimpleResponse(client *llm.Client, registry *streaming.Registry, logger log.Logger) func(ctx context.Context, turn state.Turn) (state.Delta, error) {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
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

		answer, err := client.ChatStream(ctx, "", turn.Messages, onChunk)
		if err != nil {
			logger.Error("simple-response: chat stream failed for thread %s: %v", turn.ThreadID, err)
			return state.Delta{}, fmt.Errorf("writer: simple response: %w", err)
		}

		msgID := uuid.NewString()
		if hasSession {
			if emitErr := session.Emit(ctx, streaming.Event{
				Type: streaming.EventComplete,
				Data: streaming.Complete{MessageID: msgID},
			}); emitErr != nil {
				logger.Warn("simple-response: emit complete event for thread %s: %v", turn.ThreadID, emitErr)
			}
		}

		return state.Delta{
			FinalAnswer:     state.Ptr(answer),
			AlreadyStreamed: state.Ptr(true),
			Messages: []state.Message{
				{ID: msgID, Role: state.RoleAssistant, Text: answer},
			},
		}, nil
	}
}
