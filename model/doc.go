// Package model contains the in-memory representation of plan
// definitions, runtime state and supporting types used by the engine.
//
// A plan is typically loaded from a YAML document into the structures
// defined in the `plan`, `execution` and `state` sub-packages.  The root
// model package simply aggregates those building blocks so that they can
// be referenced from other parts of the code base with a single import.
package model
