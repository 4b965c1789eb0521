// Package progress aggregates node execution counters per plan execution.
// The tracker plugs into the event fan-out as an observer, so any component
// holding a reference can inspect plan progress without touching the engine
// internals.
package progress
