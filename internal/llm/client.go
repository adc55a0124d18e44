// Package llm wraps the provider clients the rest of the graph talks
// to behind langchaingo's llms.Model, the same abstraction the teacher
// uses throughout ptc/ and showcases/chat -- callers never import a
// provider SDK directly, only this package's Client.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/llms/ernie"
)

// Config selects and configures one provider. Mirrors
// showcases/chat/pkg/chat/chat.go's OpenAI-compatible-endpoint
// pattern, generalized to also cover the ernie provider.
type Config struct {
	Provider string // "openai" (default, also covers any OpenAI-compatible endpoint) or "ernie"
	APIKey   string
	BaseURL  string
	Model    string
}

// Client is the uniform chat-completion surface every node in the
// graph that talks to an LLM uses.
type Client struct {
	model llms.Model
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	var model llms.Model
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case "ernie":
		opts := []ernie.Option{ernie.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, ernie.WithModel(ernie.ModelName(cfg.Model)))
		}
		model, err = ernie.New(opts...)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: create %s client: %w", cfg.Provider, err)
	}
	return &Client{model: model}, nil
}

// NewFromModel wraps an already-constructed llms.Model, used by tests
// to inject a fake.
func NewFromModel(model llms.Model) *Client { return &Client{model: model} }

// Chat sends the conversation and returns the assistant's reply text.
// A system prompt, if non-empty, is prepended as a system message.
func (c *Client) Chat(ctx context.Context, systemPrompt string, history []state.Message) (string, error) {
	content := toMessageContent(systemPrompt, history)
	resp, err := c.model.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("llm: empty response")
	}
	return resp.Choices[0].Content, nil
}

// StreamFunc receives one content chunk as it arrives from the model.
type StreamFunc func(ctx context.Context, chunk string) error

// ChatStream behaves like Chat but invokes onChunk for every delta the
// model emits, mirroring prebuilt/chat_agent.go's
// AsyncChat streamingFunc closure. Once the model finishes it returns
// the final response content, or the accumulated chunks when the final
// response carries no content.
func (c *Client) ChatStream(ctx context.Context, systemPrompt string, history []state.Message, onChunk StreamFunc) (string, error) {
	content := toMessageContent(systemPrompt, history)

	var full strings.Builder
	streamingFunc := func(ctx context.Context, chunk []byte) error {
		s := string(chunk)
		full.WriteString(s)
		if onChunk != nil {
			return onChunk(ctx, s)
		}
		return nil
	}

	resp, err := c.model.GenerateContent(ctx, content, llms.WithStreamingFunc(streamingFunc))
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}
	if full.Len() == 0 && (len(resp.Choices) == 0 || resp.Choices[0].Content == "") {
		return "", fmt.Errorf("llm: empty response")
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		return resp.Choices[0].Content, nil
	}
	return full.String(), nil
}

func toMessageContent(systemPrompt string, history []state.Message) []llms.MessageContent {
	var out []llms.MessageContent
	if systemPrompt != "" {
		out = append(out, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}
	for _, m := range history {
		out = append(out, llms.MessageContent{
			Role:  toLangchainRole(m.Role),
			Parts: toParts(m),
		})
	}
	return out
}

func toLangchainRole(r state.Role) llms.ChatMessageType {
	switch r {
	case state.RoleUser:
		return llms.ChatMessageTypeHuman
	case state.RoleAssistant:
		return llms.ChatMessageTypeAI
	case state.RoleSystem:
		return llms.ChatMessageTypeSystem
	case state.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

func toParts(m state.Message) []llms.ContentPart {
	if !m.IsMultimodal() {
		return []llms.ContentPart{llms.TextPart(m.Text)}
	}
	parts := make([]llms.ContentPart, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case "image_url":
			parts = append(parts, llms.ImageURLPart(p.ImageURL))
		default:
			parts = append(parts, llms.TextPart(p.Text))
		}
	}
	return parts
}
