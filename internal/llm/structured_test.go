package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawSchemaMarshalsUnderlyingMap(t *testing.T) {
	s := rawSchema{"type": "object", "properties": map[string]any{"name": map[string]any{"type": "string"}}}
	b, err := s.MarshalJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "object", decoded["type"])
}

type structuredPlan struct {
	Stages []string `json:"stages"`
}

func newTestStructuredClient(t *testing.T, handler http.HandlerFunc) *StructuredClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewStructuredClient(StructuredConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"})
}

func TestCompleteJSONSchemaDecodesMessageContent(t *testing.T) {
	client := newTestStructuredClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rf, ok := req["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_schema", rf["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"stages\":[\"sql\",\"vector\"]}"}}]}`))
	})

	var out structuredPlan
	err := client.Complete(t.Context(), MethodJSONSchema, "plan the stages", "do it", "plan", map[string]any{"type": "object"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"sql", "vector"}, out.Stages)
}

func TestCompleteToolCallingDecodesFunctionArguments(t *testing.T) {
	client := newTestStructuredClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"plan","arguments":"{\"stages\":[\"kg\"]}"}}]}}]}`))
	})

	var out structuredPlan
	err := client.Complete(t.Context(), MethodToolCalling, "", "do it", "plan", map[string]any{"type": "object"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"kg"}, out.Stages)
}

func TestCompleteToolCallingErrorsWithoutToolCall(t *testing.T) {
	client := newTestStructuredClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"oops"}}]}`))
	})

	var out structuredPlan
	err := client.Complete(t.Context(), MethodToolCalling, "", "do it", "plan", map[string]any{"type": "object"}, &out)
	require.Error(t, err)
}

func TestCompleteRejectsUnknownMethod(t *testing.T) {
	client := NewStructuredClient(StructuredConfig{APIKey: "test-key", Model: "gpt-test"})
	var out structuredPlan
	err := client.Complete(t.Context(), StructuredMethod("bogus"), "", "", "plan", nil, &out)
	require.Error(t, err)
}
