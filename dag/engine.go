package dag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/mindboggle123/errors"
)

// Hook observes every node result as soon as the node finishes. Hooks run on
// the goroutine that executed the node and must be safe for concurrent use.
type Hook func(ctx context.Context, nr NodeResult)

// Engine executes a graph in dependency order.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
	// StopOnFirstCrash prevents any node from starting once one has failed.
	StopOnFirstCrash bool
	// Hooks are called with each finished, failed or skipped node.
	Hooks []Hook
}

// ExecuteBatch runs all nodes in dependency order, one-shot. Node failures are
// reported in the Result; the returned error is reserved for an invalid graph
// or a canceled context.
func (e *Engine) ExecuteBatch(ctx context.Context, g *Graph, state *State) (*Result, error) {
	start := time.Now()

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}

	for key, value := range g.Seeds {
		if _, exists := state.Get(key); !exists {
			state.Set(key, value)
		}
	}

	run := &execution{
		engine:   e,
		graph:    g,
		state:    state,
		result:   &Result{NodeResults: make(map[string]NodeResult)},
		upstream: upstreamOf(g),
	}

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			run.skipAll(ctx, level, "run canceled")
			continue
		}
		run.executeLevel(ctx, level)
	}

	run.result.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return run.result, errors.Canceled(err)
	}
	return run.result, nil
}

type execution struct {
	engine   *Engine
	graph    *Graph
	state    *State
	upstream map[string][]string

	mu     sync.Mutex
	result *Result
	halted atomic.Bool
}

func (x *execution) executeLevel(ctx context.Context, names []string) {
	var eg errgroup.Group
	eg.SetLimit(x.engine.concurrency(len(names)))

	for _, name := range names {
		eg.Go(func() error {
			if reason := x.blocked(ctx, name); reason != "" {
				x.record(ctx, NodeResult{Name: name, Status: StatusSkipped, Reason: reason})
				return nil
			}
			nr := executeNode(ctx, x.graph.Nodes[name], x.state)
			if nr.Status == StatusFailed && x.engine.StopOnFirstCrash {
				x.halted.Store(true)
			}
			x.record(ctx, nr)
			return nil
		})
	}

	_ = eg.Wait()
}

// blocked returns why name must not start, or "" when it may run.
func (x *execution) blocked(ctx context.Context, name string) string {
	if ctx.Err() != nil {
		return "run canceled"
	}
	if x.halted.Load() {
		return "stopped after first crash"
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, dep := range x.upstream[name] {
		if nr, ok := x.result.NodeResults[dep]; ok && !nr.Status.Done() {
			return fmt.Sprintf("upstream node %s %s", dep, nr.Status)
		}
	}
	return ""
}

func (x *execution) skipAll(ctx context.Context, names []string, reason string) {
	for _, name := range names {
		x.record(ctx, NodeResult{Name: name, Status: StatusSkipped, Reason: reason})
	}
}

func (x *execution) record(ctx context.Context, nr NodeResult) {
	x.mu.Lock()
	x.result.NodeResults[nr.Name] = nr
	x.result.Order = append(x.result.Order, nr.Name)
	x.mu.Unlock()

	for _, hook := range x.engine.Hooks {
		hook(ctx, nr)
	}
}

func executeNode(ctx context.Context, node Node, state *State) NodeResult {
	start := time.Now()
	output, err := node.Run(ctx, state)
	duration := time.Since(start)

	if err != nil {
		return NodeResult{
			Name:     node.Name(),
			Status:   StatusFailed,
			Duration: duration,
			Error:    err,
		}
	}

	status := StatusCompleted
	if c, ok := output.(Cached); ok {
		status = StatusCached
		output = c.Output
	}
	return NodeResult{
		Name:     node.Name(),
		Status:   status,
		Duration: duration,
		Output:   output,
	}
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}

func upstreamOf(g *Graph) map[string][]string {
	up := make(map[string][]string, len(g.Nodes))
	for name := range g.Nodes {
		up[name] = g.Dependencies(name)
	}
	return up
}
