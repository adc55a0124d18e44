// Package config loads the server's environment-driven configuration,
// following showcases/ai-pdf-chatbot/backend/config.go's
// getEnv-with-default shape, generalized to this module's provider and
// storage options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
)

// PlannerMethod selects how the Planner binds to the LLM for
// structured output, per spec's STRUCTURED_PLANNER_METHOD.
type PlannerMethod string

const (
	PlannerAuto        PlannerMethod = "auto"
	PlannerToolCalling PlannerMethod = "tool_calling"
	PlannerJSONMode    PlannerMethod = "json_mode"
	PlannerJSONSchema  PlannerMethod = "json_schema"
	PlannerDisabled    PlannerMethod = "disabled"
)

// Config holds every environment-driven setting the server reads at
// startup. Fields are grouped the way showcases/ai-pdf-chatbot's
// Config groups Server/LLM/VectorStore/Graph settings.
type Config struct {
	ServerHost string
	ServerPort string

	// LLM selects and configures the provider the rest of the graph
	// talks to through internal/llm.Client.
	LLMProvider string // "deepseek", "openai", or "ernie"
	LLM         llm.Config

	StructuredPlannerMethod PlannerMethod

	// PGDSN backs the thread store, always required: thread/message
	// ownership checks run as Postgres row-level-security predicates
	// (threadstore.Store.setUserContext), which only a real Postgres
	// connection can enforce.
	PGDSN string

	// CheckpointBackend selects the durable Store checkpoint.Saver
	// writes through: "postgres" (default, reuses PGDSN) or "sqlite"
	// (CheckpointSQLitePath), for a single-process dev deployment with
	// no separate checkpoint database.
	CheckpointBackend   string
	CheckpointSQLitePath string

	JWTSecret   string
	CORSOrigins []string

	TraceEvents      bool
	DebugGraphEvents bool

	LogLevel string

	// LogBackend selects the Logger implementation cmd/server builds:
	// "stdlib" (default, log.NewDefaultLogger) or "golog"
	// (log.NewGologLogger, for deployments that already ship
	// kataras/golog's level-colored console output elsewhere).
	LogBackend string

	RedisAddr     string
	RedisPassword string

	// KGDatabaseURL selects the knowledge-graph backend rag/store.NewKnowledgeGraph
	// dispatches on: "memory://" (default, in-process) or a
	// "falkordb://" connection string.
	KGDatabaseURL string
}

// Load reads Config from the process environment, applying the same
// defaults the teacher's LoadConfig does for anything not domain
// security-sensitive (ports, hosts, log level); credentials and DSNs
// have no default and are validated by Validate.
func Load() Config {
	cfg := Config{
		ServerHost:  getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "openai")),

		StructuredPlannerMethod: PlannerMethod(getEnv("STRUCTURED_PLANNER_METHOD", string(PlannerAuto))),

		PGDSN: os.Getenv("PG_DSN"),

		CheckpointBackend:    strings.ToLower(getEnv("CHECKPOINT_BACKEND", "postgres")),
		CheckpointSQLitePath: getEnv("CHECKPOINT_SQLITE_PATH", "./smart-agent-checkpoints.db"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),

		TraceEvents:      getEnvBool("TRACE_EVENTS", false),
		DebugGraphEvents: getEnvBool("DEBUG_GRAPH_EVENTS", false),

		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogBackend: strings.ToLower(getEnv("LOG_BACKEND", "stdlib")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KGDatabaseURL: getEnv("KG_DATABASE_URL", "memory://"),
	}
	cfg.LLM = resolveLLM(cfg.LLMProvider)
	return cfg
}

// resolveLLM maps LLM_PROVIDER to the per-provider credential triple
// and the internal/llm.Config shape a Client is built from. "deepseek"
// talks to an OpenAI-compatible endpoint under a different base
// URL/model, so it resolves to llm.Config{Provider: "openai", ...}
// exactly like "openai" does -- only the credential envs differ.
func resolveLLM(provider string) llm.Config {
	switch provider {
	case "deepseek":
		return llm.Config{
			Provider: "openai",
			APIKey:   os.Getenv("DEEPSEEK_API_KEY"),
			BaseURL:  getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
			Model:    getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		}
	case "ernie":
		return llm.Config{
			Provider: "ernie",
			APIKey:   os.Getenv("ERNIE_API_KEY"),
			Model:    getEnv("ERNIE_MODEL", ""),
		}
	default: // "openai", and anything else falls through to the same shape
		return llm.Config{
			Provider: "openai",
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
			Model:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		}
	}
}

// Validate checks that the credentials the selected provider needs
// are present, and that STRUCTURED_PLANNER_METHOD and PG_DSN-adjacent
// settings are internally consistent. It mirrors
// showcases/ai-pdf-chatbot's ValidateConfig, but returns an error
// instead of calling log.Fatal so cmd/server controls the exit.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "deepseek":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("config: DEEPSEEK_API_KEY is required when LLM_PROVIDER=deepseek")
		}
	case "openai", "":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "ernie":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("config: ERNIE_API_KEY is required when LLM_PROVIDER=ernie")
		}
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.StructuredPlannerMethod {
	case PlannerAuto, PlannerToolCalling, PlannerJSONMode, PlannerJSONSchema, PlannerDisabled:
	default:
		return fmt.Errorf("config: unknown STRUCTURED_PLANNER_METHOD %q", c.StructuredPlannerMethod)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}

	if c.PGDSN == "" {
		return fmt.Errorf("config: PG_DSN is required (thread ownership checks run as Postgres row-level-security predicates)")
	}

	switch c.CheckpointBackend {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown CHECKPOINT_BACKEND %q", c.CheckpointBackend)
	}

	switch c.LogBackend {
	case "stdlib", "golog":
	default:
		return fmt.Errorf("config: unknown LOG_BACKEND %q", c.LogBackend)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
