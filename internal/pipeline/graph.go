// Package pipeline runs the narrative graph: named nodes that read a shared
// state and return patches, plus the scene writer and critic used for
// scene-by-scene generation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// End terminates a run when returned by an edge.
const End = ""

// Patch is a change to the shared state. Nodes build patches; only the
// runtime applies them.
type Patch func(*State)

// Node reads a copy of the state and returns a patch. A nil patch changes
// nothing.
type Node func(ctx context.Context, s State) (Patch, error)

// Router picks the next node from the state after a node ran.
type Router func(s State) string

// Graph is a set of named nodes joined by linear or conditional edges.
type Graph struct {
	name    string
	start   string
	nodes   map[string]Node
	next    map[string]Router
	order   []string
	maxStep int
	logger  *slog.Logger
	observe func(node string, d time.Duration, err error)
}

// NewGraph creates an empty graph.
func NewGraph(name string, logger *slog.Logger) *Graph {
	return &Graph{
		name:    name,
		nodes:   map[string]Node{},
		next:    map[string]Router{},
		maxStep: 64,
		logger:  logger,
	}
}

// AddNode registers a node. The first node added is the entry point.
func (g *Graph) AddNode(name string, n Node) *Graph {
	if g.start == "" {
		g.start = name
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return g
}

// AddEdge makes from always continue to to.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.next[from] = func(State) string { return to }
	return g
}

// AddConditionalEdge lets r pick the successor of from.
func (g *Graph) AddConditionalEdge(from string, r Router) *Graph {
	g.next[from] = r
	return g
}

// Chain links the named nodes in order.
func (g *Graph) Chain(names ...string) *Graph {
	for i := 0; i+1 < len(names); i++ {
		g.AddEdge(names[i], names[i+1])
	}
	return g
}

// OnNode installs a hook called after every node.
func (g *Graph) OnNode(fn func(node string, d time.Duration, err error)) *Graph {
	g.observe = fn
	return g
}

// Nodes lists node names in registration order.
func (g *Graph) Nodes() []string { return append([]string(nil), g.order...) }

// Validate checks every edge target exists.
func (g *Graph) Validate() error {
	if g.start == "" {
		return fmt.Errorf("graph %s has no nodes", g.name)
	}
	for from := range g.next {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("graph %s: edge from unknown node %q", g.name, from)
		}
	}
	return nil
}

// Run executes the graph from its entry node until an edge returns End or
// a node has no outgoing edge. The returned state includes every patch.
func (g *Graph) Run(ctx context.Context, s State) (State, error) {
	if err := g.Validate(); err != nil {
		return s, err
	}
	cur := g.start
	for step := 0; cur != End; step++ {
		if step >= g.maxStep {
			return s, fmt.Errorf("graph %s exceeded %d steps", g.name, g.maxStep)
		}
		if err := ctx.Err(); err != nil {
			return s, err
		}
		node, ok := g.nodes[cur]
		if !ok {
			return s, fmt.Errorf("graph %s: unknown node %q", g.name, cur)
		}

		start := time.Now()
		patch, err := node(ctx, s.snapshot())
		d := time.Since(start)
		if g.observe != nil {
			g.observe(cur, d, err)
		}
		if err != nil {
			return s, fmt.Errorf("node %s: %w", cur, err)
		}
		if patch != nil {
			patch(&s)
		}
		s.Trace = append(s.Trace, cur)
		g.logger.Debug("Node finished", "graph", g.name, "node", cur, "duration", d)

		r, ok := g.next[cur]
		if !ok {
			break
		}
		cur = r(s)
	}
	return s, nil
}
