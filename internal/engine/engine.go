// Package engine is a small superstep-based graph execution engine,
// specialized to state.Turn: each node receives the Turn as it stood
// at the start of the current superstep and returns a state.Delta:
// all deltas produced in one superstep are merged, in deterministic
// node-name order, before the next superstep's routing decision runs.
//
// This specializes (rather than generalizes over an S type parameter)
// the teacher's StateGraph[S]/Command/StateSchemaTyped[S] trio, which
// this codebase's own graph package references but never defines --
// see DESIGN.md. Fixing that gap here means node authors get a
// correctly-typed Delta instead of a map[string]any, and dynamic
// fan-out (Send) can target the same node more than once in a single
// superstep, which a plain map[string]bool next-node set cannot
// express.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// End is the sentinel target name that terminates a run.
const End = "END"

var (
	ErrEntryPointNotSet = errors.New("engine: entry point not set")
	ErrNodeNotFound     = errors.New("engine: node not found")
	ErrNoOutgoingEdge   = errors.New("engine: no outgoing edge from node")
)

// NodeFunc is one unit of work in the graph. It observes the Turn as
// of the start of the superstep and returns the partial update it
// wants applied.
type NodeFunc func(ctx context.Context, in state.Turn) (state.Delta, error)

// Send is one scheduled invocation of a node, optionally carrying a
// per-branch argument (e.g. the Plan Step a worker should execute).
// Multiple Sends may target the same node name within one superstep;
// each runs as an independent goroutine with its own Arg.
type Send struct {
	Node string
	Arg  any
}

// RouteFunc decides what runs next after a node, given the
// post-superstep Turn. Returning nil or an empty slice is an error --
// every non-terminal node must route somewhere, even if that's just
// []Send{{Node: End}}.
type RouteFunc func(ctx context.Context, t state.Turn) []Send

type edge struct{ from, to string }

// Graph is a builder for a superstep graph over state.Turn.
type Graph struct {
	nodes      map[string]NodeFunc
	edges      []edge
	cond       map[string]RouteFunc
	entryPoint string
	logger     log.Logger
}

// New creates an empty graph. A nil logger installs a no-op logger.
func New(logger log.Logger) *Graph {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Graph{
		nodes:  make(map[string]NodeFunc),
		cond:   make(map[string]RouteFunc),
		logger: logger,
	}
}

// AddNode registers a node function under name.
func (g *Graph) AddNode(name string, fn NodeFunc) { g.nodes[name] = fn }

// AddEdge adds a static, unconditional edge. Multiple static edges
// from the same node fan out to all of them every time (no Arg).
func (g *Graph) AddEdge(from, to string) { g.edges = append(g.edges, edge{from, to}) }

// AddConditionalEdge registers a dynamic router for a node, overriding
// any static edges from that node.
func (g *Graph) AddConditionalEdge(from string, route RouteFunc) { g.cond[from] = route }

// SetEntryPoint sets the first node(s) to run.
func (g *Graph) SetEntryPoint(name string) { g.entryPoint = name }

// Compile validates the graph and returns a Runnable.
func (g *Graph) Compile() (*Runnable, error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	return &Runnable{graph: g}, nil
}

// Runnable is a compiled Graph ready to Invoke.
type Runnable struct {
	graph *Graph
}

// Invoke runs the graph to completion starting from initial, applying
// supersteps until no Send targets a non-END node. It returns the
// final Turn.
func (r *Runnable) Invoke(ctx context.Context, initial state.Turn) (state.Turn, error) {
	turn := initial
	current := []Send{{Node: r.graph.entryPoint}}

	for len(current) > 0 {
		active := current[:0:0]
		for _, s := range current {
			if s.Node != End {
				active = append(active, s)
			}
		}
		current = active
		if len(current) == 0 {
			break
		}

		r.graph.logger.Debug("engine: superstep dispatching %d send(s): %v", len(current), sendNodeNames(current))

		deltas, names, err := r.executeSuperstep(ctx, current, turn)
		if err != nil {
			r.graph.logger.Error("engine: superstep failed: %v", err)
			return turn, err
		}

		// Deterministic merge order: alphabetical by node name, ties
		// broken by schedule order, per spec's reducer-application rule.
		order := make([]int, len(deltas))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool { return names[order[i]] < names[order[j]] })
		for _, idx := range order {
			turn = state.Merge(turn, deltas[idx])
		}

		next, err := r.route(ctx, current, turn)
		if err != nil {
			return turn, err
		}
		current = next
	}
	return turn, nil
}

func sendNodeNames(sends []Send) []string {
	names := make([]string, len(sends))
	for i, s := range sends {
		names[i] = s.Node
	}
	return names
}

func (r *Runnable) executeSuperstep(ctx context.Context, sends []Send, turn state.Turn) ([]state.Delta, []string, error) {
	type result struct {
		delta state.Delta
		err   error
	}
	results := make([]result, len(sends))
	names := make([]string, len(sends))

	done := make(chan int, len(sends))
	for i, s := range sends {
		i, s := i, s
		names[i] = s.Node
		go func() {
			defer func() {
				if p := recover(); p != nil {
					r.graph.logger.Error("engine: node %s panicked: %v", s.Node, p)
					results[i] = result{err: fmt.Errorf("panic in node %s: %v", s.Node, p)}
				}
				done <- i
			}()
			node, ok := r.graph.nodes[s.Node]
			if !ok {
				results[i] = result{err: fmt.Errorf("%w: %s", ErrNodeNotFound, s.Node)}
				return
			}
			nodeCtx := WithSendArg(ctx, s.Arg)
			delta, err := node(nodeCtx, turn)
			results[i] = result{delta: delta, err: err}
		}()
	}
	for range sends {
		<-done
	}

	deltas := make([]state.Delta, len(sends))
	for i, res := range results {
		if res.err != nil {
			return nil, nil, fmt.Errorf("node %s: %w", names[i], res.err)
		}
		deltas[i] = res.delta
	}
	return deltas, names, nil
}

func (r *Runnable) route(ctx context.Context, ran []Send, turn state.Turn) ([]Send, error) {
	var next []Send
	seenStatic := make(map[string]bool)
	for _, s := range ran {
		if route, ok := r.graph.cond[s.Node]; ok {
			sends := route(ctx, turn)
			if len(sends) == 0 {
				return nil, fmt.Errorf("conditional edge from %s returned no targets", s.Node)
			}
			next = append(next, sends...)
			continue
		}
		found := false
		for _, e := range r.graph.edges {
			if e.from == s.Node {
				found = true
				if !seenStatic[s.Node+"->"+e.to] {
					seenStatic[s.Node+"->"+e.to] = true
					next = append(next, Send{Node: e.to})
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, s.Node)
		}
	}
	return next, nil
}
