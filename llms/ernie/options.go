package ernie

import (
	"net/http"
	"os"

	"github.com/tmc/langchaingo/callbacks"
)

// ModelName represents the model identifier for Baidu Qianfan (Ernie) API.
type ModelName string

// This deployment's workers only ever do two things with a model: run a
// chat completion (planner, intent-detect, response writer,
// simple-response) or embed text for the vector store. The Qianfan
// catalog is much larger than this (vision, OCR, image generation,
// reranking model IDs all exist) but nothing in this module calls those
// endpoints, so only the chat and embedding identifiers it actually
// issues requests against are declared here.
const (
	// Chat-completion models.
	ModelNameERNIE5ThinkingPreview ModelName = "ernie-5.0-thinking-preview" // 128k context
	ModelNameERNIE45Turbo128K      ModelName = "ernie-4.5-turbo-128k"       // 128k context

	ModelNameERNIESpeed8K ModelName = "ernie-speed-8k" // 8k context, the default
	ModelNameERNIELite8K  ModelName = "ernie-lite-8k"  // 8k context
	ModelNameERNIETiny8K  ModelName = "ernie-tiny-8k"  // 8k context, lightweight

	ModelNameDeepSeekR1  ModelName = "deepseek-r1"   // 144k context, reasoning
	ModelNameDeepSeekV3  ModelName = "deepseek-v3"   // 128k context
	ModelNameDeepSeekV32 ModelName = "deepseek-v3.2" // 128k context

	ModelNameQwen38B  ModelName = "qwen3-8b"  // 32k context
	ModelNameQwen332B ModelName = "qwen3-32b" // 32k context

	// Embedding models, consumed by rag.Embedder implementations that
	// wrap this client.
	ModelNameEmbeddingV1       ModelName = "embedding-v1"         // 384 dims, 384 tokens, max 16 texts
	ModelNameBgeLargeZh        ModelName = "bge-large-zh"         // 1024 dims, 512 tokens, max 16 texts
	ModelNameBgeLargeEn        ModelName = "bge-large-en"         // 1024 dims, 512 tokens, max 16 texts
	ModelNameTao8k             ModelName = "tao-8k"               // 1024 dims, 8192 tokens, max 1 text
	ModelNameQwen3Embedding06B ModelName = "qwen3-embedding-0.6b" // 1024 dims, 8192 tokens
	ModelNameQwen3Embedding4B  ModelName = "qwen3-embedding-4b"   // 2560 dims, 8192 tokens

	// Deprecated: Use ModelNameERNIESpeed8K. Kept for callers still on
	// the pre-rename Ernie Bot identifiers.
	ModelNameERNIEBot      ModelName = "ernie-speed-8k"
	ModelNameERNIEBotTurbo ModelName = "ernie-speed-8k"
)

type options struct {
	apiKey           string
	modelName        ModelName
	httpClient       *http.Client
	callbacksHandler callbacks.Handler
	baseURL          string
}

// Option is a function that configures an LLM.
type Option func(*options)

// WithAPIKey sets the API key for the LLM.
func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = apiKey
	}
}

// WithModel sets the model name for the LLM.
func WithModel(model ModelName) Option {
	return func(opts *options) {
		opts.modelName = model
	}
}

// WithHTTPClient sets the HTTP client for the LLM.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithCallbacks sets the callbacks handler for the LLM.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *options) {
		opts.callbacksHandler = handler
	}
}

// WithBaseURL sets the base URL for the LLM API.
// Default is "https://qianfan.baidubce.com".
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// getEnvOrDefault retrieves an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
