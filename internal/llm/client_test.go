package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

type mockModel struct {
	lastMessages []llms.MessageContent
	response     string
	err          error
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.lastMessages = messages
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

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, nil
}

func TestClientChatPrependsSystemPromptAndMapsRoles(t *testing.T) {
	model := &mockModel{response: "hello there"}
	client := NewFromModel(model)

	history := []state.Message{
		{Role: state.RoleUser, Text: "hi"},
		{Role: state.RoleAssistant, Text: "yo"},
	}

	reply, err := client.Chat(context.Background(), "be nice", history)
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	require.Len(t, model.lastMessages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.lastMessages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.lastMessages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.lastMessages[2].Role)
}

func TestClientChatOmitsSystemMessageWhenPromptEmpty(t *testing.T) {
	model := &mockModel{response: "ok"}
	client := NewFromModel(model)

	_, err := client.Chat(context.Background(), "", []state.Message{{Role: state.RoleUser, Text: "hi"}})
	require.NoError(t, err)
	require.Len(t, model.lastMessages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.lastMessages[0].Role)
}

func TestClientChatWrapsGenerateContentError(t *testing.T) {
	model := &mockModel{err: errors.New("boom")}
	client := NewFromModel(model)

	_, err := client.Chat(context.Background(), "", []state.Message{{Role: state.RoleUser, Text: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClientChatRejectsEmptyResponse(t *testing.T) {
	model := &mockModel{response: ""}
	client := NewFromModel(model)

	_, err := client.Chat(context.Background(), "", []state.Message{{Role: state.RoleUser, Text: "hi"}})
	require.Error(t, err)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "made-up"})
	require.Error(t, err)
}

func TestClientChatStreamInvokesCallbackPerChunkAndReturnsFullText(t *testing.T) {
	model := &mockModel{response: "hello there friend"}
	client := NewFromModel(model)

	var chunks []string
	full, err := client.ChatStream(context.Background(), "", []state.Message{{Role: state.RoleUser, Text: "hi"}},
		func(ctx context.Context, chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "hello there friend", full)
	assert.Equal(t, []string{"hello ", "there ", "friend "}, chunks)
}

func TestClientChatStreamPropagatesCallbackError(t *testing.T) {
	model := &mockModel{response: "hello there"}
	client := NewFromModel(model)

	boom := errors.New("consumer gone")
	_, err := client.ChatStream(context.Background(), "", []state.Message{{Role: state.RoleUser, Text: "hi"}},
		func(ctx context.Context, chunk string) error { return boom })
	require.ErrorIs(t, err, boom)
}
