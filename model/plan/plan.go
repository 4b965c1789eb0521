package plan

import (
	"fmt"
)

// Source provides information about the origin of a plan definition.
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Plan represents a plan definition: a tree of nodes rooted at Root.
type Plan struct {
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`

	// Name is the unique identifier for the plan
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description of the plan
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version specifies the plan version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Root defines the execution tree of the plan
	Root *Node `json:"root,omitempty" yaml:"root,omitempty"`

	allNodes map[string]*Node
}

// AllNodes returns a lookup map of every node in the plan keyed by id (and by
// identifier when one is set).  The map is computed lazily and cached.
func (p *Plan) AllNodes() map[string]*Node {
	if p.allNodes != nil {
		return p.allNodes
	}
	nodes := map[string]*Node{}
	var walk func(node *Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		nodes[node.ID] = node
		if node.Identifier != "" {
			nodes[node.Identifier] = node
		}
		for _, child := range node.Nodes {
			walk(child)
		}
	}
	walk(p.Root)
	p.allNodes = nodes
	return nodes
}

// LookupNode returns a node by id or identifier.
func (p *Plan) LookupNode(id string) *Node {
	return p.AllNodes()[id]
}

// Validate performs a best-effort structural validation of the plan.  The
// returned slice is empty when the plan is sound; it only verifies static
// properties and never evaluates any expression.
func (p *Plan) Validate() []error {
	var issues []error
	if p.Root == nil {
		issues = append(issues, fmt.Errorf("plan root is nil"))
		return issues
	}

	seen := map[string]bool{}
	var walk func(node *Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		if node.ID == "" {
			issues = append(issues, fmt.Errorf("node %q has empty id", node.Name))
		} else if seen[node.ID] {
			issues = append(issues, fmt.Errorf("duplicate node id %s", node.ID))
		}
		seen[node.ID] = true
		for i, obtainment := range node.Obtainments {
			if obtainment == nil || obtainment.Type == "" {
				issues = append(issues, fmt.Errorf("node %s obtainment[%d] has empty type", node.ID, i))
			}
		}
		if !node.IsLeaf() && len(node.Obtainments) == 0 {
			issues = append(issues, fmt.Errorf("node %s has children but no obtainment", node.ID))
		}
		for _, child := range node.Nodes {
			walk(child)
		}
	}
	walk(p.Root)
	return issues
}
