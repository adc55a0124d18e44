// Command server assembles the full request graph (intent detection,
// planning, fan-out workers, aggregation, response writing) behind the
// HTTP API and runs it to completion, with a graceful-shutdown path
// mirroring showcases/chat's.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kataras/golog"

	"github.com/xiaomayi-ant/smart-agent-go/internal/aggregator"
	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint"
	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint/postgres"
	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint/sqlite"
	"github.com/xiaomayi-ant/smart-agent-go/internal/config"
	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/httpapi"
	"github.com/xiaomayi-ant/smart-agent-go/internal/intent"
	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/orchestrator"
	"github.com/xiaomayi-ant/smart-agent-go/internal/planner"
	"github.com/xiaomayi-ant/smart-agent-go/internal/retrieval"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
	"github.com/xiaomayi-ant/smart-agent-go/internal/threadstore"
	"github.com/xiaomayi-ant/smart-agent-go/internal/writer"
	applog "github.com/xiaomayi-ant/smart-agent-go/log"
	"github.com/xiaomayi-ant/smart-agent-go/rag"
	"github.com/xiaomayi-ant/smart-agent-go/rag/retriever"
	"github.com/xiaomayi-ant/smart-agent-go/rag/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := buildLogger(cfg)
	logger.Info("server: starting with provider=%s planner_method=%s", cfg.LLMProvider, cfg.StructuredPlannerMethod)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	llmClient, err := llm.New(cfg.LLM)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}

	plannerInstance := planner.New(structuredClient(cfg), structuredMethod(cfg), logger)

	saver, closeCheckpoint := buildCheckpointSaver(ctx, cfg, logger)
	defer closeCheckpoint()

	threads, err := threadstore.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("threadstore: %v", err)
	}
	defer threads.Close()

	businessPool, err := pgxpool.New(ctx, threadstore.NormalizeDSN(cfg.PGDSN))
	if err != nil {
		log.Fatalf("sql_worker: connect: %v", err)
	}
	defer businessPool.Close()

	registry := streaming.NewRegistry()

	var redisBus *streaming.RedisBus
	if cfg.RedisAddr != "" {
		redisBus = streaming.NewRedisBus(streaming.RedisBusOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisBus.Ping(ctx); err != nil {
			logger.Warn("streaming: redis at %s unreachable, cross-instance fan-out disabled: %v", cfg.RedisAddr, err)
			redisBus = nil
		} else {
			defer redisBus.Close()
			logger.Info("streaming: cross-instance event bus connected at %s", cfg.RedisAddr)
		}
	}

	kgExecutor := buildKGExecutor(cfg, logger)
	vectorSearcher := buildVectorSearcher()
	rewriter := retrieval.NewLLMQueryRewriter(llmClient)

	sqlExecutor := orchestrator.NewPgxSQLExecutor(businessPool)

	runnable, err := buildGraph(llmClient, plannerInstance, registry, sqlExecutor, vectorSearcher, rewriter, kgExecutor, logger)
	if err != nil {
		log.Fatalf("graph: %v", err)
	}

	srv := httpapi.NewServer(cfg, runnable, saver, threads, registry, kgExecutor, logger)

	httpServer := &http.Server{
		Addr:    cfg.ServerHost + ":" + cfg.ServerPort,
		Handler: srv.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server: listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("server: received shutdown signal %v", sig)
	case err := <-serverErr:
		logger.Error("server: listen error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: graceful shutdown failed, forcing exit: %v", err)
		os.Exit(1)
	}
	logger.Info("server: shutdown complete")
}

// buildLogger constructs the Logger every node/adapter in the graph
// receives, backed by either the stdlib-based DefaultLogger or a
// kataras/golog instance per cfg.LogBackend -- the two
// log.Logger implementations this module ships.
func buildLogger(cfg config.Config) applog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.LogBackend != "golog" {
		return applog.NewDefaultLogger(level)
	}
	g := golog.New()
	logger := applog.NewGologLogger(g)
	logger.SetLevel(level)
	return logger
}

// parseLogLevel maps the LOG_LEVEL environment setting to a
// applog.LogLevel, defaulting to info for an empty or unrecognized value.
func parseLogLevel(level string) applog.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return applog.LogLevelDebug
	case "info", "":
		return applog.LogLevelInfo
	case "warn", "warning":
		return applog.LogLevelWarn
	case "error":
		return applog.LogLevelError
	case "none":
		return applog.LogLevelNone
	default:
		return applog.LogLevelInfo
	}
}

// structuredClient builds the raw structured-output client the
// Planner uses, or nil when STRUCTURED_PLANNER_METHOD=disabled -- a
// nil client makes Planner.Plan skip straight to the deterministic
// keyword router (spec §4.3/§9).
func structuredClient(cfg config.Config) *llm.StructuredClient {
	if cfg.StructuredPlannerMethod == config.PlannerDisabled {
		return nil
	}
	return llm.NewStructuredClient(llm.StructuredConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
}

// structuredMethod resolves STRUCTURED_PLANNER_METHOD=auto to a
// concrete method per provider: tool_calling for the OpenAI-compatible
// endpoints (openai, deepseek), json_mode for ernie, which langchaingo's
// Ernie integration doesn't expose function calling for.
func structuredMethod(cfg config.Config) llm.StructuredMethod {
	switch cfg.StructuredPlannerMethod {
	case config.PlannerToolCalling:
		return llm.MethodToolCalling
	case config.PlannerJSONMode:
		return llm.MethodJSONMode
	case config.PlannerJSONSchema:
		return llm.MethodJSONSchema
	case config.PlannerDisabled:
		return ""
	default: // PlannerAuto
		if cfg.LLMProvider == "ernie" {
			return llm.MethodJSONMode
		}
		return llm.MethodToolCalling
	}
}

// buildCheckpointSaver wires Layer A (connection lifecycle) under
// Layer B (serialization) per cfg.CheckpointBackend, returning a
// cleanup func the caller defers.
func buildCheckpointSaver(ctx context.Context, cfg config.Config, logger applog.Logger) (*checkpoint.Saver, func()) {
	var connector checkpoint.Connector
	switch cfg.CheckpointBackend {
	case "sqlite":
		connector = sqlite.NewConnector(sqlite.Options{Path: cfg.CheckpointSQLitePath})
	default:
		connector = postgres.NewConnector(postgres.Options{ConnString: cfg.PGDSN})
	}

	autoReconnect := checkpoint.NewAutoReconnectStore(connector, checkpoint.DefaultConnectionMaxAge, 3, logger)
	saver := checkpoint.NewSaver(autoReconnect, logger)
	return saver, autoReconnect.Close
}

// buildKGExecutor wires the knowledge-graph backend KG_DATABASE_URL
// selects (memory:// or falkordb://) as the orchestrator's KGExecutor.
func buildKGExecutor(cfg config.Config, logger applog.Logger) orchestrator.KGExecutor {
	graph, err := store.NewKnowledgeGraph(cfg.KGDatabaseURL)
	if err != nil {
		logger.Warn("retrieval: knowledge graph backend %q unavailable, kg_worker will error every call: %v", cfg.KGDatabaseURL, err)
		return nil
	}
	return retrieval.NewKGAdapter(graph)
}

// buildVectorSearcher wires the document retriever the vector_worker
// searches against. No real embedding provider is configured in this
// deployment yet (see DESIGN.md), so the in-memory store runs on a
// deterministic mock embedder -- swapping in a hosted embeddings API
// only requires a different rag.Embedder here.
func buildVectorSearcher() orchestrator.VectorSearcher {
	embedder := store.NewMockEmbedder(256)
	vectorStore := store.NewInMemoryVectorStore(embedder)
	r := retriever.NewVectorRetriever(vectorStore, embedder, rag.RetrievalConfig{K: 4})
	return retrieval.NewVectorAdapter(r)
}

// buildGraph assembles the full engine.Graph spec §4 describes:
// intent classification and the direct-answer fast path, planning,
// the Set-Barrier/Orchestrator fan-out, the three workers, the
// Aggregator's more/fast/done routing, and the Response Writer.
func buildGraph(
	client *llm.Client,
	plan *planner.Planner,
	registry *streaming.Registry,
	sqlExecutor orchestrator.SQLExecutor,
	vectorSearcher orchestrator.VectorSearcher,
	rewriter orchestrator.QueryRewriter,
	kgExecutor orchestrator.KGExecutor,
	logger applog.Logger,
) (*engine.Runnable, error) {
	const (
		nodeIntentSlot   = "intent_slot"
		nodeIntentDetect = "intent_detect"
		nodeCollectBase  = "collect_base"
		nodePlanner      = "planner"
		nodeWriter       = "writer"
	)

	g := engine.New(logger)

	g.AddNode(nodeIntentSlot, intent.NewIntentSlot(logger))
	g.AddNode(nodeIntentDetect, intent.NewIntentDetect(client, logger))
	g.AddNode(nodeCollectBase, intent.NewCollectBase(client, registry, logger))
	g.AddNode(nodePlanner, planNodeFunc(plan))
	g.AddNode(orchestrator.NodeSetBarrier, orchestrator.SetBarrierNode)
	g.AddNode(orchestrator.NodeOrchestrator, orchestrator.OrchestratorNode)
	g.AddNode(orchestrator.NodeSQLWorker, orchestrator.NewSQLWorker(sqlExecutor, logger))
	g.AddNode(orchestrator.NodeVectorWorker, orchestrator.NewVectorWorker(vectorSearcher, rewriter, orchestrator.VectorWorkerConfig{MinScore: 0.5, TopK: 4}, logger))
	g.AddNode(orchestrator.NodeKGWorker, orchestrator.NewKGWorker(kgExecutor, logger))
	g.AddNode(orchestrator.NodeAggregator, aggregator.Node)
	g.AddNode(nodeWriter, writer.New(client, registry, logger))

	g.SetEntryPoint(nodeIntentSlot)
	g.AddEdge(nodeIntentSlot, nodeIntentDetect)
	g.AddEdge(nodeIntentDetect, nodeCollectBase)
	g.AddConditionalEdge(nodeCollectBase, intent.NewRoute(nodePlanner))
	g.AddEdge(nodePlanner, orchestrator.NodeSetBarrier)
	g.AddEdge(orchestrator.NodeSetBarrier, orchestrator.NodeOrchestrator)
	g.AddConditionalEdge(orchestrator.NodeOrchestrator, orchestrator.Route)
	g.AddEdge(orchestrator.NodeSQLWorker, orchestrator.NodeAggregator)
	g.AddEdge(orchestrator.NodeVectorWorker, orchestrator.NodeAggregator)
	g.AddEdge(orchestrator.NodeKGWorker, orchestrator.NodeAggregator)
	g.AddConditionalEdge(orchestrator.NodeAggregator, aggregatorRoute(nodeWriter))
	g.AddEdge(nodeWriter, engine.End)

	return g.Compile()
}

// planNodeFunc adapts planner.Planner.Plan (no error, not a
// NodeFunc) into one: it reads the last user utterance and the slots
// Intent-Slot produced, and always succeeds (Plan itself never
// errors, falling back to the keyword router instead).
func planNodeFunc(p *planner.Planner) engine.NodeFunc {
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		utterance := lastUserText(turn)
		result := p.Plan(ctx, utterance, turn.IntentSlots)
		return state.Delta{Plan: state.Ptr(result), StageIndex: state.Ptr(0)}, nil
	}
}

func lastUserText(turn state.Turn) string {
	for i := len(turn.Messages) - 1; i >= 0; i-- {
		if turn.Messages[i].Role == state.RoleUser {
			return turn.Messages[i].Text
		}
	}
	return ""
}

// aggregatorRoute maps the Aggregator's verdict to the next node:
// AggMore loops back to Set-Barrier for another stage, AggFast/AggDone
// both proceed to the Response Writer. Mirrors intent.NewRoute's shape
// -- the aggregator package itself stays state.AggRoute-only so it
// doesn't need to know graph node names.
func aggregatorRoute(writerNode string) engine.RouteFunc {
	return func(ctx context.Context, turn state.Turn) []engine.Send {
		if turn.AggRoute == state.AggMore {
			return []engine.Send{{Node: orchestrator.NodeSetBarrier}}
		}
		return []engine.Send{{Node: writerNode}}
	}
}
