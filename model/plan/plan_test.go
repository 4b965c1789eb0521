package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTestPlan() *Plan {
	leafA := (&Node{ID: "build", Group: GroupStep}).WithObtainment("sync", nil)
	leafB := (&Node{ID: "deploy", Identifier: "deploy-prod", Group: GroupStep}).
		WithObtainment("sync", nil).
		WithWhen("${channel == 'stable'}")
	stage := (&Node{ID: "release", Group: GroupStage, Nodes: []*Node{leafA, leafB}}).
		WithObtainment("childChain", map[string]interface{}{"nodeIds": []string{"build", "deploy"}})
	return &Plan{
		Name: "release",
		Root: &Node{ID: "release-plan", Group: GroupPipeline, Nodes: []*Node{stage},
			Obtainments: []*Obtainment{{Type: "childChain", Parameters: map[string]interface{}{"nodeIds": []string{"release"}}}}},
	}
}

func TestPlan_AllNodes(t *testing.T) {
	aPlan := buildTestPlan()
	nodes := aPlan.AllNodes()

	assert.NotNil(t, nodes["release-plan"])
	assert.NotNil(t, nodes["release"])
	assert.NotNil(t, nodes["build"])
	// identifier aliases the same node
	assert.Same(t, nodes["deploy"], nodes["deploy-prod"])
	assert.Same(t, nodes["build"], aPlan.LookupNode("build"))
	assert.Nil(t, aPlan.LookupNode("unknown"))
}

func TestPlan_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(p *Plan)
		expect      int
	}{
		{
			description: "valid plan",
			mutate:      func(p *Plan) {},
			expect:      0,
		},
		{
			description: "nil root",
			mutate:      func(p *Plan) { p.Root = nil },
			expect:      1,
		},
		{
			description: "duplicate node id",
			mutate: func(p *Plan) {
				p.Root.Nodes[0].Nodes[1].ID = "build"
			},
			expect: 1,
		},
		{
			description: "empty node id",
			mutate: func(p *Plan) {
				p.Root.Nodes[0].Nodes[0].ID = ""
			},
			expect: 1,
		},
		{
			description: "obtainment without type",
			mutate: func(p *Plan) {
				p.Root.Nodes[0].Nodes[0].Obtainments[0].Type = ""
			},
			expect: 1,
		},
		{
			description: "container without obtainment",
			mutate: func(p *Plan) {
				p.Root.Nodes[0].Obtainments = nil
			},
			expect: 1,
		},
	}

	for _, testCase := range testCases {
		aPlan := buildTestPlan()
		testCase.mutate(aPlan)
		issues := aPlan.Validate()
		assert.Len(t, issues, testCase.expect, testCase.description)
	}
}
