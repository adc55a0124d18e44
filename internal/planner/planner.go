// Package planner turns a user utterance plus intent slots into a
// validated state.Plan, preferring constrained LLM output and falling
// back to a deterministic keyword router when that output is missing
// or invalid.
package planner

import (
	"context"
	"strings"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// planSchema is the JSON Schema handed to the structured client; it
// mirrors state.Plan's wire shape exactly (spec §4.3).
var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"stages": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"parallel": map[string]any{"type": "boolean"},
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"call": map[string]any{"type": "string", "enum": []string{"sql", "vec", "kg"}},
								"args": map[string]any{"type": "object"},
								"when": map[string]any{"type": "boolean"},
							},
							"required": []string{"call", "args"},
						},
					},
				},
				"required": []string{"parallel", "steps"},
			},
		},
		"fast_path": map[string]any{"type": "boolean"},
	},
	"required": []string{"stages", "fast_path"},
}

const planSchemaName = "submit_plan"

const jsonModeSystemSuffix = `
Respond with a single JSON object matching this schema, and nothing else --
no prose, no markdown code fences:
` + `{"stages":[{"parallel":bool,"steps":[{"call":"sql"|"vec"|"kg","args":{...},"when"?:bool}]}],"fast_path":bool}`

// businessDataLexicon and knowledgeGraphLexicon are the deterministic
// keyword lists the fallback router consults, in that priority order
// (spec §4.3: business-data lexicon wins over knowledge-graph
// lexicon, which wins over the vector default).
var businessDataLexicon = []string{
	"order", "invoice", "revenue", "price", "sku", "inventory",
	"customer", "account balance", "transaction", "sales", "refund",
}

var knowledgeGraphLexicon = []string{
	"related to", "connected to", "relationship between", "who works with",
	"reports to", "part of", "depends on", "graph", "entity", "episode",
}

// Planner composes structured-output generation with the validation
// and fallback rules from spec §4.3.
type Planner struct {
	structured *llm.StructuredClient
	method     llm.StructuredMethod
	logger     log.Logger
}

// New builds a Planner. method selects how the structured-output
// constraint is communicated to the provider (spec §4.3: strict by
// provider -- callers pick the method matching their configured LLM).
func New(structured *llm.StructuredClient, method llm.StructuredMethod, logger log.Logger) *Planner {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Planner{structured: structured, method: method, logger: logger}
}

// Plan produces a validated state.Plan for utterance. It always
// returns a valid plan: a structured-output failure or an invalid
// candidate falls through to the deterministic keyword router rather
// than propagating an error to the caller.
func (p *Planner) Plan(ctx context.Context, utterance string, slots state.IntentSlots) state.Plan {
	if p.structured != nil {
		if candidate, ok := p.tryStructured(ctx, utterance, slots); ok {
			return candidate
		}
	}
	p.logger.Info("planner: falling back to keyword router for utterance %q", utterance)
	return fallbackPlan(utterance)
}

func (p *Planner) tryStructured(ctx context.Context, utterance string, slots state.IntentSlots) (state.Plan, bool) {
	systemPrompt := "You are a planning component for a retrieval system. Decide which data sources (sql, vec, kg) must be queried to answer the user, and in what order, emitting a Plan."
	if p.method == llm.MethodJSONMode {
		systemPrompt += jsonModeSystemSuffix
	}

	var candidate state.Plan
	if err := p.structured.Complete(ctx, p.method, systemPrompt, utterance, planSchemaName, planSchema, &candidate); err != nil {
		p.logger.Warn("planner: structured completion failed: %v", err)
		return state.Plan{}, false
	}
	if !candidate.Valid() {
		p.logger.Warn("planner: structured candidate failed validation, discarding")
		return state.Plan{}, false
	}
	return candidate, true
}

// fallbackPlan implements the deterministic keyword router: business-
// data lexicon beats knowledge-graph lexicon beats the vector default,
// each producing a single-step, single-stage plan.
func fallbackPlan(utterance string) state.Plan {
	lower := strings.ToLower(utterance)

	switch {
	case containsAny(lower, businessDataLexicon):
		return singleStepPlan(state.CallSQL, defaultSQLArgs())
	case containsAny(lower, knowledgeGraphLexicon):
		return singleStepPlan(state.CallKG, map[string]any{"call_type": "graph.search", "query": utterance})
	default:
		return singleStepPlan(state.CallVector, map[string]any{"query": utterance})
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// defaultSQLArgs is the "safe default query" spec §4.3 requires for
// the business-data fallback: a bounded read with no caller-supplied
// predicates.
func defaultSQLArgs() map[string]any {
	return map[string]any{
		"table":  "orders",
		"fields": []string{"id", "status", "created_at"},
		"limit":  20,
	}
}

func singleStepPlan(call state.CallType, args map[string]any) state.Plan {
	return state.Plan{
		Stages: []state.Stage{
			{
				Parallel: false,
				Steps: []state.Step{
					{Call: call, Args: args},
				},
			},
		},
	}
}
