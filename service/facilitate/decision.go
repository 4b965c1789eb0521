// Package facilitate selects the execution mode for a node once the
// pre-facilitation checks pass.  Facilitators are resolved from a registry
// keyed by obtainment type; the dispatcher returns the first non-nil
// decision and never executes it itself - mode-specific bookkeeping is the
// orchestration driver's job.
package facilitate

import (
	"time"
)

// Mode is a terminal execution mode decision; modes form a flat set, not a
// hierarchy.
type Mode string

const (
	// ModeSync runs the node inline; the result is available immediately.
	ModeSync Mode = "SYNC"
	// ModeAsync parks the node; the result arrives via a future callback.
	ModeAsync Mode = "ASYNC"
	// ModeTask hands a unit of work to an external executor and parks the
	// node awaiting the task callback.
	ModeTask Mode = "TASK"
	// ModeTaskChain is a sequence of dependent external tasks.
	ModeTaskChain Mode = "TASK_CHAIN"
	// ModeChild spawns exactly one child subtree and waits.
	ModeChild Mode = "CHILD"
	// ModeChildChain spawns children sequentially, output of one feeding the
	// next.
	ModeChildChain Mode = "CHILD_CHAIN"
	// ModeChildren spawns multiple children concurrently and waits for all.
	ModeChildren Mode = "CHILDREN"
)

// IsWaiting reports whether the mode parks the node instead of running it
// inline.
func (m Mode) IsWaiting() bool {
	return m != ModeSync
}

// Decision is the chosen execution mode plus whatever the orchestration
// driver needs to act on it.
type Decision struct {
	Mode        Mode                   `json:"mode"`
	InitialWait time.Duration          `json:"initialWait,omitempty"`
	ChildNodeID string                 `json:"childNodeId,omitempty"`
	ChildNodeIDs []string              `json:"childNodeIds,omitempty"`
	PassThrough map[string]interface{} `json:"passThrough,omitempty"`
}
