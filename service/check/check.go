// Package check implements the pre-facilitation check chain: ordered gates
// run before a node is allowed to execute.  A gate that denies progress
// short-circuits the remaining chain and the facilitator dispatcher is never
// invoked for the node.
package check

import (
	"context"

	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
)

// Result reports whether a node may proceed to facilitation.
type Result struct {
	Proceed bool
	Reason  string
}

// Check is a single pre-facilitation gate.
type Check interface {
	Name() string

	Check(ctx context.Context, nodeExecution *execution.NodeExecution, node *plan.Node) (Result, error)
}

// proceed is the affirmative result shared by all checkers.
var proceed = Result{Proceed: true}
