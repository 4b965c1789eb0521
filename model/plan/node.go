package plan

import (
	"github.com/viant/facilitor/model/state"
)

// Node groups recognised by audit and notification rules.
const (
	GroupPipeline = "pipeline"
	GroupStage    = "stage"
	GroupStep     = "step"
)

type (
	// Obtainment declares one facilitator candidate for a node; the dispatcher
	// tries obtainments in order and uses the first non-nil decision.
	Obtainment struct {
		Type       string                 `json:"type" yaml:"type"`
		Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	}

	// Node is a single plan node definition.  When and Skip hold boolean
	// expressions evaluated against the ambiance before facilitation.
	Node struct {
		ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
		Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
		Identifier  string           `json:"identifier,omitempty" yaml:"identifier,omitempty"`
		StepType    string           `json:"stepType,omitempty" yaml:"stepType,omitempty"`
		Group       string           `json:"group,omitempty" yaml:"group,omitempty"`
		When        string           `json:"when,omitempty" yaml:"when,omitempty"`
		Skip        string           `json:"skip,omitempty" yaml:"skip,omitempty"`
		Obtainments []*Obtainment    `json:"obtainments,omitempty" yaml:"obtainments,omitempty"`
		Init        state.Parameters `json:"init,omitempty" yaml:"init,omitempty"`
		Nodes       []*Node          `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	}
)

// WithObtainment appends a facilitator obtainment to the node.
func (n *Node) WithObtainment(facilitatorType string, parameters map[string]interface{}) *Node {
	n.Obtainments = append(n.Obtainments, &Obtainment{Type: facilitatorType, Parameters: parameters})
	return n
}

// WithWhen sets the run condition for the node.
func (n *Node) WithWhen(expr string) *Node {
	n.When = expr
	return n
}

// WithSkip sets the skip condition for the node.
func (n *Node) WithSkip(expr string) *Node {
	n.Skip = expr
	return n
}

// IsLeaf reports whether the node has no child definitions.
func (n *Node) IsLeaf() bool {
	return len(n.Nodes) == 0
}

// Clone creates a deep copy of the node definition tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Obtainments != nil {
		clone.Obtainments = make([]*Obtainment, 0, len(n.Obtainments))
		for _, obtainment := range n.Obtainments {
			copied := *obtainment
			if obtainment.Parameters != nil {
				copied.Parameters = make(map[string]interface{}, len(obtainment.Parameters))
				for k, v := range obtainment.Parameters {
					copied.Parameters[k] = v
				}
			}
			clone.Obtainments = append(clone.Obtainments, &copied)
		}
	}
	if n.Nodes != nil {
		clone.Nodes = make([]*Node, 0, len(n.Nodes))
		for _, child := range n.Nodes {
			clone.Nodes = append(clone.Nodes, child.Clone())
		}
	}
	return &clone
}
