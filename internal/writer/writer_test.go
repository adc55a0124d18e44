package writer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
)

type fakeModel struct {
	response string
	err      error
	prompts  []llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.prompts = messages
	if m.err != nil {
		return nil, m.err
	}
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, word := range strings.Fields(m.response) {
			if err := opts.StreamingFunc(ctx, []byte(word+" ")); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, nil
}

func TestBuildPromptSQLOnlyHasNoCitationInstruction(t *testing.T) {
	merged := []state.Evidence{
		{Text: "order 1", Source: state.SourceSQL},
		{Text: "order 2", Source: state.SourceSQL},
	}
	prompt := buildPrompt(merged)
	assert.Contains(t, prompt, "Database records:")
	assert.Contains(t, prompt, "[1] order 1")
	assert.Contains(t, prompt, "[2] order 2")
	assert.NotContains(t, prompt, "cite it inline")
	assert.Contains(t, prompt, "Never respond that the evidence is insufficient")
}

func TestBuildPromptVectorIncludesCitationInstruction(t *testing.T) {
	merged := []state.Evidence{{Text: "passage", Source: state.SourceVector}}
	prompt := buildPrompt(merged)
	assert.Contains(t, prompt, "Retrieved passages:")
	assert.Contains(t, prompt, "cite it inline")
}

func TestBuildPromptMixedNumbersAcrossCategoriesInOrder(t *testing.T) {
	merged := []state.Evidence{
		{Text: "sql-row", Source: state.SourceSQL},
		{Text: "kg-fact", Source: state.SourceKG},
		{Text: "vec-passage", Source: state.SourceVector},
	}
	prompt := buildPrompt(merged)
	assert.Contains(t, prompt, "[1] sql-row")
	assert.Contains(t, prompt, "[2] kg-fact")
	assert.Contains(t, prompt, "[3] vec-passage")
}

func TestBuildPromptTruncatesToDisplayLimitWhenVectorPresent(t *testing.T) {
	merged := make([]state.Evidence, 0, 25)
	for i := 0; i < 25; i++ {
		merged = append(merged, state.Evidence{Text: "v", Source: state.SourceVector})
	}
	prompt := buildPrompt(merged)
	assert.Contains(t, prompt, "[20] v")
	assert.NotContains(t, prompt, "[21] v")
}

func TestBuildPromptIncludesAllRowsWhenSQLOnly(t *testing.T) {
	merged := make([]state.Evidence, 0, 25)
	for i := 0; i < 25; i++ {
		merged = append(merged, state.Evidence{Text: "s", Source: state.SourceSQL})
	}
	prompt := buildPrompt(merged)
	assert.Contains(t, prompt, "[25] s")
}

func TestBuildPromptEmptyMergedReturnsEmptyPrompt(t *testing.T) {
	assert.Equal(t, "", buildPrompt(nil))
}

func TestNodeStreamsDeltasAndReturnsFinalAnswer(t *testing.T) {
	model := &fakeModel{response: "hello world"}
	client := llm.NewFromModel(model)
	registry := streaming.NewRegistry()
	session := registry.Register("thread-1")

	node := New(client, registry, nil)
	turn := state.Turn{
		ThreadID: "thread-1",
		Merged:   []state.Evidence{{Text: "evidence", Source: state.SourceSQL}},
	}

	delta, err := node(context.Background(), turn)
	require.NoError(t, err)
	require.NotNil(t, delta.FinalAnswer)
	assert.Equal(t, "hello world", *delta.FinalAnswer)
	require.Len(t, delta.Messages, 1)
	assert.Equal(t, state.RoleAssistant, delta.Messages[0].Role)
	assert.Equal(t, "hello world", delta.Messages[0].Text)

	var deltas []string
	for ev := range session.Events() {
		if ev.Type == streaming.EventPartialAI {
			deltas = append(deltas, ev.Data.(streaming.PartialAI).Delta)
		}
		if ev.Type == streaming.EventComplete {
			assert.Equal(t, delta.Messages[0].ID, ev.Data.(streaming.Complete).MessageID)
		}
	}
	assert.Equal(t, []string{"hello ", "world "}, deltas)
}

func TestNodeWorksWithoutRegisteredSession(t *testing.T) {
	model := &fakeModel{response: "no listeners"}
	client := llm.NewFromModel(model)
	registry := streaming.NewRegistry()

	node := New(client, registry, nil)
	delta, err := node(context.Background(), state.Turn{ThreadID: "nobody-listening"})
	require.NoError(t, err)
	assert.Equal(t, "no listeners", *delta.FinalAnswer)
}

func TestNodeWrapsChatError(t *testing.T) {
	model := &fakeModel{err: errors.New("provider down")}
	client := llm.NewFromModel(model)

	node := New(client, streaming.NewRegistry(), nil)
	_, err := node(context.Background(), state.Turn{ThreadID: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestSimpleResponseUsesNoSystemPrompt(t *testing.T) {
	model := &fakeModel{response: "direct answer"}
	client := llm.NewFromModel(model)
	registry := streaming.NewRegistry()
	registry.Register("thread-2")

	node := NewSimpleResponse(client, registry, nil)
	turn := state.Turn{
		ThreadID: "thread-2",
		Messages: []state.Message{{ID: "m1", Role: state.RoleUser, Text: "hi"}},
	}
	delta, err := node(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "direct answer", *delta.FinalAnswer)
	require.True(t, *delta.AlreadyStreamed)

	require.Len(t, model.prompts, 1, "no system message should be prepended")
	assert.Equal(t, llms.ChatMessageTypeHuman, model.prompts[0].Role)
}
