// Package plan loads plan definitions from YAML documents.  The format
// mirrors the node tree: mapping keys that are not recognised properties
// become child nodes, and nodes without an explicit obtainment get a
// sensible default so that concise documents stay valid.
package plan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/facilitor/internal/yml"
	model "github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/model/state"
	"github.com/viant/facilitor/service/dao/plan/parameters"
	"gopkg.in/yaml.v3"
)

type Service struct {
	fs           afs.Service
	baseURL      string
	rootNodeName string
}

// RootNodeName returns the document key holding the node tree.
func (s *Service) RootNodeName() string {
	return s.rootNodeName
}

// DecodeYAML decodes a plan from YAML
func (s *Service) DecodeYAML(encoded []byte) (*model.Plan, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(expandEnvExpr(string(encoded))), &node); err != nil {
		return nil, err
	}
	return s.ParsePlan("", &node)
}

// Load loads a plan from YAML at the specified URL
func (s *Service) Load(ctx context.Context, URL string) (*model.Plan, error) {
	ext := filepath.Ext(URL)
	if ext == "" {
		URL += ".yaml"
	}
	if s.baseURL != "" && !strings.Contains(URL, "://") {
		URL = url.Join(s.baseURL, URL)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan from %s: %w", URL, err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(expandEnvExpr(string(data))), &node); err != nil {
		return nil, fmt.Errorf("failed to decode plan from %s: %w", URL, err)
	}
	return s.ParsePlan(URL, &node)
}

func (s *Service) ParsePlan(URL string, node *yaml.Node) (*model.Plan, error) {
	aPlan := &model.Plan{
		Name: getPlanNameFromURL(URL),
	}
	if URL != "" {
		aPlan.Source = &model.Source{URL: URL}
	}
	if err := s.parsePlan((*yml.Node)(node), aPlan); err != nil {
		return nil, fmt.Errorf("failed to parse plan from %s: %w", URL, err)
	}
	if aPlan.Root != nil {
		if aPlan.Root.ID == "" {
			aPlan.Root.ID = aPlan.Name
		}
		if aPlan.Root.Group == "" {
			aPlan.Root.Group = model.GroupPipeline
		}
		applyDefaultObtainments(aPlan.Root)
	}
	if issues := aPlan.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return aPlan, nil
}

// getPlanNameFromURL extracts plan name from URL (file name without extension)
func getPlanNameFromURL(URL string) string {
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// applyDefaultObtainments fills missing obtainments: a container node chains
// its children in document order, a leaf runs inline.
func applyDefaultObtainments(node *model.Node) {
	if len(node.Obtainments) == 0 {
		if node.IsLeaf() {
			node.WithObtainment("sync", nil)
		} else {
			childIDs := make([]string, 0, len(node.Nodes))
			for _, child := range node.Nodes {
				childIDs = append(childIDs, child.ID)
			}
			node.WithObtainment("childChain", map[string]interface{}{"nodeIds": childIDs})
		}
	}
	for _, child := range node.Nodes {
		applyDefaultObtainments(child)
	}
}

// parsePlan converts a YAML document to the plan model
func (s *Service) parsePlan(node *yml.Node, aPlan *model.Plan) error {
	rootNode := node
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		rootNode = (*yml.Node)(node.Content[0])
	}
	rootNodeName := strings.ToLower(s.rootNodeName)
	return rootNode.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "name":
			if valueNode.Kind == yaml.ScalarNode {
				aPlan.Name = valueNode.Value
			}
		case "description":
			if valueNode.Kind == yaml.ScalarNode {
				aPlan.Description = valueNode.Value
			}
		case "version":
			if valueNode.Kind == yaml.ScalarNode {
				aPlan.Version = valueNode.Value
			}
		case rootNodeName:
			root, err := s.parseRootNode(valueNode)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", s.rootNodeName, err)
			}
			aPlan.Root = root
		}
		return nil
	})
}

// parseRootNode wraps the top-level node mappings into the root container
func (s *Service) parseRootNode(node *yml.Node) (*model.Node, error) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s node should be a mapping", s.rootNodeName)
	}
	root := &model.Node{}
	var nodes []*model.Node
	err := node.Pairs(func(key string, childNode *yml.Node) error {
		child, err := s.parseNode(key, childNode)
		if err != nil {
			return err
		}
		nodes = append(nodes, child)
		return nil
	})
	if err != nil {
		return nil, err
	}
	root.Nodes = nodes
	return root, nil
}

// parseNode converts a YAML node to a plan node
func (s *Service) parseNode(id string, node *yml.Node) (*model.Node, error) {
	aNode := &model.Node{
		ID:   id,
		Name: id,
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("node %s should be a mapping", id)
	}
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "name":
			if valueNode.Kind == yaml.ScalarNode {
				aNode.Name = valueNode.Value
			}
		case "identifier":
			if valueNode.Kind == yaml.ScalarNode {
				aNode.Identifier = valueNode.Value
			}
		case "steptype":
			if valueNode.Kind == yaml.ScalarNode {
				aNode.StepType = valueNode.Value
			}
		case "group":
			if valueNode.Kind == yaml.ScalarNode {
				aNode.Group = valueNode.Value
			}
		case "when":
			if valueNode.Kind == yaml.ScalarNode {
				aNode.When = valueNode.Value
			}
		case "skip":
			if valueNode.Kind == yaml.ScalarNode {
				aNode.Skip = valueNode.Value
			}
		case "init":
			params, err := parseParameters(valueNode)
			if err != nil {
				return fmt.Errorf("failed to parse init of node %s: %w", id, err)
			}
			aNode.Init = params
		case "obtain":
			obtainments, err := parseObtainments(valueNode)
			if err != nil {
				return fmt.Errorf("failed to parse obtainments of node %s: %w", id, err)
			}
			aNode.Obtainments = obtainments
		default:
			// a mapping value defines a child node
			if valueNode.Kind == yaml.MappingNode {
				child, err := s.parseNode(key, valueNode)
				if err != nil {
					return err
				}
				aNode.Nodes = append(aNode.Nodes, child)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if aNode.Group == "" {
		if aNode.IsLeaf() {
			aNode.Group = model.GroupStep
		} else {
			aNode.Group = model.GroupStage
		}
	}
	return aNode, nil
}

// parseObtainments accepts a scalar type name, a single mapping or a
// sequence of either.
func parseObtainments(node *yml.Node) ([]*model.Obtainment, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []*model.Obtainment{{Type: node.Value}}, nil
	case yaml.MappingNode:
		obtainment, err := parseObtainment(node)
		if err != nil {
			return nil, err
		}
		return []*model.Obtainment{obtainment}, nil
	case yaml.SequenceNode:
		var obtainments []*model.Obtainment
		err := node.Items(func(_ int, item *yml.Node) error {
			if item.Kind == yaml.ScalarNode {
				obtainments = append(obtainments, &model.Obtainment{Type: item.Value})
				return nil
			}
			obtainment, err := parseObtainment(item)
			if err != nil {
				return err
			}
			obtainments = append(obtainments, obtainment)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return obtainments, nil
	}
	return nil, fmt.Errorf("obtain should be a scalar, mapping or sequence")
}

func parseObtainment(node *yml.Node) (*model.Obtainment, error) {
	obtainment := &model.Obtainment{}
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "type":
			obtainment.Type = valueNode.Value
		case "parameters":
			value := valueNode.Interface()
			mapped, ok := value.(map[string]interface{})
			if !ok {
				return fmt.Errorf("obtainment parameters should be a mapping")
			}
			obtainment.Parameters = mapped
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if obtainment.Type == "" {
		return nil, fmt.Errorf("obtainment type is required")
	}
	return obtainment, nil
}

// parseParameters converts a YAML mapping to state parameters; keys carrying
// a type declaration (name[type](kind/location)) go through the typed parser.
func parseParameters(node *yml.Node) (state.Parameters, error) {
	var params state.Parameters
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameters node should be a mapping")
	}
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		if strings.Contains(key, "[") && !strings.HasSuffix(key, "[]") {
			parameter, err := parameters.Parse([]byte(key))
			if err != nil {
				return fmt.Errorf("failed to parse parameter: %w", err)
			}
			parameter.Value = valueNode.Interface()
			params = append(params, parameter)
			return nil
		}
		params = append(params, &state.Parameter{Name: key, Value: valueNode.Interface()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

// New creates a new plan loader instance
func New(opts ...Option) *Service {
	ret := &Service{
		fs:           afs.New(),
		rootNodeName: "pipeline",
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}
