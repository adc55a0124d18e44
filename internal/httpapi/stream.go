package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
)

// runResult carries a finished graph invocation back to the request
// goroutine across the done channel.
type runResult struct {
	turn state.Turn
	err  error
}

type streamRunRequest struct {
	Input struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	} `json:"input"`
}

// handleStreamRun runs the graph for one turn and streams its events
// back as SSE frames. The graph runs in a producer goroutine; this
// handler is the consumer, draining the thread's streaming.Session
// until the terminal event closes it (or the request context is
// canceled) -- the Go analogue of server.py's
// event_queue/done_sentinel producer/consumer pair.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	userID := userIDFromContext(r.Context())
	if !s.threadOwned(r, threadID, userID) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}

	var req streamRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()

	turn, _, err := s.saver.Load(ctx, threadID, "")
	if err != nil {
		s.logger.Error("httpapi: load checkpoint for thread %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "failed to load thread state")
		return
	}
	turn.ThreadID = threadID
	turn.UserID = userID

	for _, m := range req.Input.Messages {
		msg := state.Message{ID: uuid.NewString(), Role: state.Role(m.Role), Text: m.Content}
		turn.Messages = append(turn.Messages, msg)
		if err := s.threads.InsertMessage(ctx, threadID, m.Role, map[string]any{"text": m.Content}, userID); err != nil {
			s.logger.Warn("httpapi: persist input message for thread %s: %v", threadID, err)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := s.registry.Register(threadID)
	defer s.registry.Unregister(threadID)

	done := make(chan runResult, 1)
	go func() {
		final, runErr := s.graph.Invoke(ctx, turn)
		done <- runResult{turn: final, err: runErr}
	}()

	result := s.pump(ctx, w, flusher, session, done)

	if result.err != nil {
		s.logger.Error("httpapi: graph run failed for thread %s: %v", threadID, result.err)
		writeFrame(w, flusher, streaming.Event{
			Type: streaming.EventError,
			Data: streaming.ErrorPayload{Error: result.err.Error(), Type: "RunError"},
		})
		return
	}

	if _, err := s.saver.Save(ctx, threadID, "", result.turn, nil); err != nil {
		s.logger.Error("httpapi: save checkpoint for thread %s: %v", threadID, err)
	}
	if result.turn.FinalAnswer != "" {
		if err := s.threads.InsertMessage(ctx, threadID, "assistant", map[string]any{"text": result.turn.FinalAnswer}, userID); err != nil {
			s.logger.Warn("httpapi: persist final answer for thread %s: %v", threadID, err)
		}
	}
}

// pump drains session's events onto w as SSE frames until the session
// closes (a terminal event was emitted), the graph run finishes and
// there is nothing left buffered, or ctx is canceled.
func (s *Server) pump(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, session *streaming.Session, done <-chan runResult) runResult {
	events := session.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Terminal event already closed the channel; drain the
				// run result without blocking further event delivery.
				return <-done
			}
			writeFrame(w, flusher, ev)
		case result := <-done:
			s.drainRemaining(w, flusher, events)
			return result
		case <-ctx.Done():
			return runResult{err: ctx.Err()}
		}
	}
}

func (s *Server) drainRemaining(w http.ResponseWriter, flusher http.Flusher, events <-chan streaming.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeFrame(w, flusher, ev)
		default:
			return
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, ev streaming.Event) {
	frame, err := streaming.Frame(ev)
	if err != nil {
		return
	}
	_, _ = w.Write(frame)
	flusher.Flush()
}
