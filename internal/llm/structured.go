package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openaiapi "github.com/sashabaranov/go-openai"
)

// StructuredMethod selects how a structured (JSON) response is
// coaxed out of the model. Different providers/model families vary in
// which of these they honor reliably -- configurable per the
// STRUCTURED_PLANNER_METHOD setting.
type StructuredMethod string

const (
	MethodJSONSchema  StructuredMethod = "json_schema"
	MethodJSONMode    StructuredMethod = "json_mode"
	MethodToolCalling StructuredMethod = "tool_calling"
)

// StructuredConfig configures the raw go-openai client used for
// structured output. langchaingo's llms.Model interface doesn't expose
// response_format/tool-choice control finely enough for json_schema
// mode, so this path talks to the OpenAI-compatible endpoint directly.
type StructuredConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// StructuredClient issues one-shot structured-output chat completions.
type StructuredClient struct {
	client *openaiapi.Client
	model  string
}

// rawSchema satisfies json.Marshaler so a plain JSON Schema document
// (already a map, not a struct) can fill
// ChatCompletionResponseFormatJSONSchema.Schema, which go-openai types
// as json.Marshaler rather than any.
type rawSchema map[string]any

func (s rawSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

func NewStructuredClient(cfg StructuredConfig) *StructuredClient {
	oaConfig := openaiapi.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaConfig.BaseURL = cfg.BaseURL
	}
	return &StructuredClient{client: openaiapi.NewClientWithConfig(oaConfig), model: cfg.Model}
}

// Complete asks the model for JSON matching schema (a JSON Schema
// document) and decodes the result into out. method picks how the
// constraint is communicated to the model; callers fall back to a
// deterministic heuristic plan when this returns an error (spec §9).
func (c *StructuredClient) Complete(ctx context.Context, method StructuredMethod, systemPrompt, userPrompt string, schemaName string, schema map[string]any, out any) error {
	req := openaiapi.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaiapi.ChatCompletionMessage{
			{Role: openaiapi.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openaiapi.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	switch method {
	case MethodJSONSchema:
		req.ResponseFormat = &openaiapi.ChatCompletionResponseFormat{
			Type: openaiapi.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaiapi.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: rawSchema(schema),
				Strict: true,
			},
		}
	case MethodJSONMode:
		req.ResponseFormat = &openaiapi.ChatCompletionResponseFormat{
			Type: openaiapi.ChatCompletionResponseFormatTypeJSONObject,
		}
	case MethodToolCalling:
		req.Tools = []openaiapi.Tool{{
			Type: openaiapi.ToolTypeFunction,
			Function: &openaiapi.FunctionDefinition{
				Name:       schemaName,
				Parameters: schema,
			},
		}}
		req.ToolChoice = openaiapi.ToolChoice{Type: openaiapi.ToolTypeFunction, Function: openaiapi.ToolFunction{Name: schemaName}}
	default:
		return fmt.Errorf("llm: unknown structured method %q", method)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("llm: structured completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("llm: structured completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	if method == MethodToolCalling {
		calls := resp.Choices[0].Message.ToolCalls
		if len(calls) == 0 {
			return fmt.Errorf("llm: structured completion returned no tool call")
		}
		raw = calls[0].Function.Arguments
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("llm: decode structured response: %w", err)
	}
	return nil
}
