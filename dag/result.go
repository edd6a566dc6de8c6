package dag

import "time"

// Status is the final state of a node in one execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCached    Status = "cached"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Done reports whether the node produced its outputs.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusCached
}

// Result holds the outcome of a graph execution.
type Result struct {
	NodeResults map[string]NodeResult
	// Order lists nodes in the order they finished.
	Order    []string
	Duration time.Duration
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name     string
	Status   Status
	Duration time.Duration
	Output   any
	Error    error
	// Reason explains a skip.
	Reason string
}

// Failed returns failed nodes in the order they finished.
func (r *Result) Failed() []NodeResult {
	var failed []NodeResult
	for _, name := range r.Order {
		if nr := r.NodeResults[name]; nr.Status == StatusFailed {
			failed = append(failed, nr)
		}
	}
	return failed
}

// Err returns the error of the first node that failed, or nil.
func (r *Result) Err() error {
	if failed := r.Failed(); len(failed) > 0 {
		return failed[0].Error
	}
	return nil
}

// Count returns how many nodes ended with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, nr := range r.NodeResults {
		if nr.Status == s {
			n++
		}
	}
	return n
}
