package dag

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/observability"
)

// WithTracing wraps a Node with OpenTelemetry span creation.
// Each execution creates a span named "{prefix}.{nodeName}".
func WithTracing(node Node, prefix string) Node {
	return &tracingNode{inner: node, prefix: prefix}
}

type tracingNode struct {
	inner  Node
	prefix string
}

func (n *tracingNode) Name() string { return n.inner.Name() }
func (n *tracingNode) Unwrap() Node { return n.inner }

func (n *tracingNode) Run(ctx context.Context, state *State) (any, error) {
	ctx, span := observability.StartSpan(ctx, n.prefix+"."+n.inner.Name())
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrNode, n.inner.Name()))

	result, err := n.inner.Run(ctx, state)
	span.SetAttributes(attribute.String(observability.AttrStatus, string(statusOf(result, err))))
	if err != nil {
		observability.SetSpanError(ctx, err)
	}

	return result, err
}

// WithMetrics wraps a Node with metric recording.
// Records operation count, duration, and errors.
func WithMetrics(node Node, metrics *observability.Metrics, service string) Node {
	return &metricsNode{inner: node, metrics: metrics, service: service}
}

type metricsNode struct {
	inner   Node
	metrics *observability.Metrics
	service string
}

func (n *metricsNode) Name() string { return n.inner.Name() }
func (n *metricsNode) Unwrap() Node { return n.inner }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	n.metrics.RecordNodeStart(ctx)
	defer n.metrics.RecordNodeEnd(ctx)

	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	duration := time.Since(start)

	if err != nil {
		code := string(errors.ErrCodeInternal)
		if appErr, ok := errors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		n.metrics.RecordError(ctx, code, n.inner.Name())
	}
	n.metrics.RecordOperation(ctx, n.service, n.inner.Name(), string(statusOf(result, err)), duration)

	return result, err
}

// WithLogging wraps a Node with execution logging.
// Logs: node name, duration, and final status.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }
func (n *loggingNode) Unwrap() Node { return n.inner }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	n.log.Info("node started", logger.Fields(logger.FieldNode, n.inner.Name()))

	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	fields := logger.NodeFields(n.inner.Name(), string(statusOf(result, err)), time.Since(start))

	if err != nil {
		n.log.Error("node failed", logger.MergeWithError(fields, err))
	} else {
		n.log.Info("node finished", fields)
	}

	return result, err
}

func statusOf(result any, err error) Status {
	switch {
	case err != nil:
		return StatusFailed
	case isCached(result):
		return StatusCached
	default:
		return StatusCompleted
	}
}

func isCached(result any) bool {
	_, ok := result.(Cached)
	return ok
}
