package facilitate

import "fmt"

// ConfigurationError signals a plan authoring problem that no retry can
// fix; callers fail the node with a configuration failure.
type ConfigurationError struct {
	NodeID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("facilitation configuration error for node %v: %v", e.NodeID, e.Reason)
}

func unknownFacilitatorError(nodeID, obtainmentType string) error {
	return &ConfigurationError{NodeID: nodeID, Reason: fmt.Sprintf("unknown facilitator type %q", obtainmentType)}
}

func noDecisionError(nodeID string) error {
	return &ConfigurationError{NodeID: nodeID, Reason: "no facilitator produced a decision"}
}
