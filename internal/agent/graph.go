package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/goal-architect/internal/config"
	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/llm"
	"github.com/ashureev/goal-architect/internal/metrics"
)

// DefaultMaxHops bounds how many nodes a single turn may run.
const DefaultMaxHops = 6

// Graph holds one node per stage and advances a thread through them.
type Graph struct {
	nodes   map[domain.Stage]*Node
	maxHops int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGraph builds a graph from nodes. Every stage must have exactly one node.
func NewGraph(nodes []*Node, maxHops int, m *metrics.Metrics, logger *slog.Logger) (*Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	g := &Graph{
		nodes:   make(map[domain.Stage]*Node, len(nodes)),
		maxHops: maxHops,
		metrics: m,
		logger:  logger,
	}
	for _, n := range nodes {
		if _, dup := g.nodes[n.Stage()]; dup {
			return nil, fmt.Errorf("duplicate node for stage %s", n.Stage())
		}
		g.nodes[n.Stage()] = n
	}
	for _, s := range domain.AllStages() {
		if _, ok := g.nodes[s]; !ok {
			return nil, fmt.Errorf("missing node for stage %s", s)
		}
	}
	return g, nil
}

// Run executes one turn. It enters at state.Stage and keeps going while
// each node moves the thread along a defined edge, then yields. Once the
// user message has been answered, the stage handed off to runs once to
// introduce itself and the turn ends there, even if that stage routes on
// along another edge. This departs from plain auto-advance, which would
// keep following edges until a node stays put. On error the last state
// produced before the failing node is returned with it.
func (g *Graph) Run(ctx context.Context, state *domain.PlanState) (*domain.PlanState, error) {
	if _, ok := g.nodes[state.Stage]; !ok {
		state.Stage = domain.StageOrchestrator
	}

	current := state
	for hop := 0; hop < g.maxHops; hop++ {
		from := current.Stage
		answered := current.UserMessageConsumed
		next, err := g.nodes[from].Run(ctx, current)
		if err != nil {
			return current, err
		}
		if next.Stage == from {
			return next, nil
		}

		g.metrics.Transition(from.String(), next.Stage.String())
		if answered {
			return next, nil
		}
		if !HasEdge(from, next.Stage) {
			g.logger.Warn("No edge for transition, yielding",
				"thread_id", next.ThreadID, "from", from.String(), "to", next.Stage.String())
			return next, nil
		}
		current = next
	}

	g.logger.Warn("Hop limit reached, yielding",
		"thread_id", current.ThreadID, "stage", current.Stage.String(), "max_hops", g.maxHops)
	return current, nil
}

// BuildGraph creates one node per stage sharing client and env. Per-stage
// model settings come from stages; timeout bounds each model call.
func BuildGraph(client llm.Client, env *Env, stages config.StageSettings, timeout time.Duration, maxHops int, logger *slog.Logger) (*Graph, error) {
	variants := Variants()
	nodes := make([]*Node, 0, len(variants))
	for _, v := range variants {
		nodes = append(nodes, NewNode(v, client, env, NodeConfig{
			Model:   stages.For(v.Stage().String()),
			Timeout: timeout,
		}, logger))
	}
	return NewGraph(nodes, maxHops, env.Metrics, logger)
}
