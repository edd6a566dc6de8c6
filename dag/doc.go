// Package dag provides the workflow engine that executes a task graph in
// dependency order.
//
// A Graph holds named nodes and port-labelled edges. Connecting two nodes
// checks that the port exists on both sides with the same value type and that
// the edge keeps the graph acyclic, so wiring mistakes surface while the graph
// is built instead of half way through a run. Values that no node produces
// are seeded into the graph with Provide.
//
// The Engine groups nodes into levels with Kahn's algorithm and runs each
// level with bounded parallelism. A failed node marks its dependents skipped.
// Optional decorators add content-hash caching (WithCache), logging, tracing
// and metrics per node; hooks observe every finished node, which is how crash
// reports are written.
package dag
