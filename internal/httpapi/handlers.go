package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/threadstore"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}

	threadID := uuid.NewString()
	if err := s.threads.EnsureThread(r.Context(), threadID, userID); err != nil {
		s.logger.Error("httpapi: ensure thread %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "failed to create thread")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"thread_id": threadID})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	userID := userIDFromContext(r.Context())

	msgs, err := s.threads.LoadMessages(r.Context(), threadID, userID)
	if err != nil {
		s.logger.Error("httpapi: load messages for thread %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "messages": msgs})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	userID := userIDFromContext(r.Context())

	if err := s.threads.DeleteThread(r.Context(), threadID, userID); err != nil {
		if errors.Is(err, threadstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "thread not found")
			return
		}
		s.logger.Error("httpapi: delete thread %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete thread")
		return
	}
	if s.registry != nil {
		s.registry.Unregister(threadID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// threadOwned reports whether userID is the authenticated owner of
// threadID, treating a missing token (userID == "") as owning
// nothing -- ownership mismatch and not-found are indistinguishable by
// design (spec invariant I1).
func (s *Server) threadOwned(r *http.Request, threadID, userID string) bool {
	if userID == "" {
		return false
	}
	owner, err := s.threads.GetThreadOwner(r.Context(), threadID)
	if err != nil {
		return false
	}
	return owner == userID
}

type approveToolRequest struct {
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	Approve    bool           `json:"approve"`
	ToolCallID string         `json:"toolCallId,omitempty"`
}

func (s *Server) handleApproveTool(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	userID := userIDFromContext(r.Context())
	if !s.threadOwned(r, threadID, userID) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}

	var req approveToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision := map[string]any{
		"tool_name":    req.ToolName,
		"args":         req.Args,
		"approve":      req.Approve,
		"tool_call_id": req.ToolCallID,
	}
	if err := s.threads.InsertMessage(r.Context(), threadID, "tool_decision", decision, userID); err != nil {
		s.logger.Warn("httpapi: persist tool decision for thread %s: %v", threadID, err)
	}

	if !req.Approve {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if s.kg == nil {
		writeError(w, http.StatusServiceUnavailable, "no knowledge-graph executor configured")
		return
	}

	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	args["approved"] = true

	evidence, err := s.kg.Execute(r.Context(), req.ToolName, args, userID)
	if err != nil {
		s.logger.Error("httpapi: execute approved tool %s for thread %s: %v", req.ToolName, threadID, err)
		writeError(w, http.StatusInternalServerError, "tool execution failed")
		return
	}

	result := evidenceToResult(evidence)
	if err := s.threads.InsertMessage(r.Context(), threadID, "tool_result", map[string]any{
		"tool_name": req.ToolName,
		"result":    result,
	}, userID); err != nil {
		s.logger.Warn("httpapi: persist tool result for thread %s: %v", threadID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

func evidenceToResult(evidence []state.Evidence) []map[string]any {
	out := make([]map[string]any, 0, len(evidence))
	for _, e := range evidence {
		out = append(out, map[string]any{
			"text":     e.Text,
			"score":    e.Score,
			"metadata": e.Metadata,
		})
	}
	return out
}
