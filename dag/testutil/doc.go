// Package testutil provides test helpers for code built on the dag package.
//
// It includes mock nodes with declared ports, a graph builder that fails the
// test on any wiring error, and fake command-line tools installed into a
// temporary PATH so command nodes can run without the real binaries.
//
// Example:
//
//	func TestPipeline(t *testing.T) {
//	    g := testutil.NewGraphBuilder(t, "test").
//	        AddNode(testutil.NewMockNode("extract", "raw", nil).Writes(raw.Spec())).
//	        AddNode(testutil.NewMockNode("transform", "done", nil).Reads(raw.Spec())).
//	        Connect("extract", "transform", raw.Spec()).
//	        Build()
//
//	    result, err := (&dag.Engine{}).ExecuteBatch(ctx, g, dag.NewState())
//	}
package testutil
