package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/registry"
)

// graphSchema describes the shape of the editor's graph payload. Payloads
// failing this check are rejected before any structural analysis.
var graphSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"registryVersion": map[string]any{"type": "string"},
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{"type": "string", "minLength": 1},
					"position": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"x": map[string]any{"type": "number"},
							"y": map[string]any{"type": "number"},
						},
					},
					"data": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"label":  map[string]any{"type": "string"},
							"config": map[string]any{"type": "object"},
						},
					},
				},
				"required": []any{"id", "type"},
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":           map[string]any{"type": "string", "minLength": 1},
					"source":       map[string]any{"type": "string", "minLength": 1},
					"target":       map[string]any{"type": "string", "minLength": 1},
					"sourceHandle": map[string]any{"type": "string"},
					"targetHandle": map[string]any{"type": "string"},
				},
				"required": []any{"id", "source", "target"},
			},
		},
		"meta": map[string]any{"type": "object"},
	},
	"required": []any{"nodes", "edges"},
}

// Result is the outcome of validating an untyped graph payload. OK is false
// only when the payload could not be parsed at all; a parsed graph with
// structural issues still yields OK=true plus the issue list.
type Result struct {
	OK     bool          `json:"ok"`
	Graph  *models.Graph `json:"graph,omitempty"`
	Issues []Issue       `json:"issues"`
}

// Validator checks graph payloads against a node-type registry.
type Validator struct {
	registry *registry.Registry
}

func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate parses and checks an untyped graph payload. It never mutates the
// input and has no side effects.
func (v *Validator) Validate(data []byte) Result {
	graph, parseIssues := ParseGraph(data)
	if graph == nil {
		return Result{OK: false, Issues: parseIssues}
	}

	return Result{OK: true, Graph: graph, Issues: v.Check(graph)}
}

// Check runs all structural and per-node checks on a parsed graph and returns
// the accumulated issues. An empty slice means the graph is compilable.
func (v *Validator) Check(graph *models.Graph) []Issue {
	issues := v.StructuralIssues(graph)
	issues = append(issues, v.checkReachability(graph)...)

	return issues
}

// StructuralIssues runs the checks shared with the compiler: start/end
// counts, node types and configs, edge endpoints and handles. Reachability is
// a validator-only concern; unreachable nodes compile to dead blocks.
func (v *Validator) StructuralIssues(graph *models.Graph) []Issue {
	issues := make([]Issue, 0)

	issues = append(issues, v.checkStartEndCounts(graph)...)
	issues = append(issues, v.checkNodes(graph)...)
	issues = append(issues, v.checkEdges(graph)...)

	return issues
}

// ParseGraph decodes an untyped payload into a graph. A nil graph is returned
// with a single graph.parse issue carrying the schema diff.
func ParseGraph(data []byte) (*models.Graph, []Issue) {
	schemaLoader := gojsonschema.NewGoLoader(graphSchema)
	dataLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, []Issue{{
			Type:    IssueGraphParse,
			Message: fmt.Sprintf("payload is not a graph: %v", err),
		}}
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, []Issue{{
			Type:    IssueGraphParse,
			Message: "payload does not match the graph schema: " + strings.Join(details, "; "),
		}}
	}

	var graph models.Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, []Issue{{
			Type:    IssueGraphParse,
			Message: fmt.Sprintf("failed to decode graph: %v", err),
		}}
	}

	return &graph, nil
}

func (v *Validator) checkStartEndCounts(graph *models.Graph) []Issue {
	issues := make([]Issue, 0)

	starts := 0
	ends := 0

	for _, node := range graph.Nodes {
		switch node.Type {
		case registry.TypeStart:
			starts++
		case registry.TypeEnd:
			ends++
		}
	}

	if starts != 1 {
		issues = append(issues, Issue{
			Type:    IssueStartCount,
			Message: fmt.Sprintf("graph must have exactly one start node, found %d", starts),
		})
	}

	if ends < 1 {
		issues = append(issues, Issue{
			Type:    IssueEndCount,
			Message: "graph must have at least one end node",
		})
	}

	return issues
}

func (v *Validator) checkNodes(graph *models.Graph) []Issue {
	issues := make([]Issue, 0)

	for _, node := range graph.Nodes {
		if _, ok := v.registry.Lookup(node.Type); !ok {
			issues = append(issues, Issue{
				Type:    IssueUnknownType,
				Message: fmt.Sprintf("node type %q is not registered", node.Type),
				NodeID:  node.ID,
			})

			continue
		}

		if err := v.registry.ValidateConfig(node.Type, node.Data.Config); err != nil {
			issues = append(issues, Issue{
				Type:    IssueInvalidProps,
				Message: err.Error(),
				NodeID:  node.ID,
			})
		}
	}

	return issues
}

func (v *Validator) checkEdges(graph *models.Graph) []Issue {
	issues := make([]Issue, 0)

	for _, edge := range graph.Edges {
		source := graph.NodeByID(edge.Source)
		target := graph.NodeByID(edge.Target)

		if source == nil {
			issues = append(issues, Issue{
				Type:    IssueMissingNode,
				Message: fmt.Sprintf("edge source %q does not exist", edge.Source),
				EdgeID:  edge.ID,
			})
		}

		if target == nil {
			issues = append(issues, Issue{
				Type:    IssueMissingNode,
				Message: fmt.Sprintf("edge target %q does not exist", edge.Target),
				EdgeID:  edge.ID,
			})
		}

		if source != nil {
			if sourceType, ok := v.registry.Lookup(source.Type); ok && !sourceType.HasOutput(edge.SourceHandle) {
				issues = append(issues, Issue{
					Type:    IssueInvalidHandle,
					Message: fmt.Sprintf("node type %q has no output port %q", source.Type, edge.SourceHandle),
					EdgeID:  edge.ID,
				})
			}
		}

		if target != nil {
			if targetType, ok := v.registry.Lookup(target.Type); ok && !targetType.HasInput(edge.TargetHandle) {
				issues = append(issues, Issue{
					Type:    IssueInvalidHandle,
					Message: fmt.Sprintf("node type %q has no input port %q", target.Type, edge.TargetHandle),
					EdgeID:  edge.ID,
				})
			}
		}
	}

	return issues
}

// checkReachability flags nodes a forward walk from the start node(s) never
// reaches. Skipped entirely when the graph has no start node.
func (v *Validator) checkReachability(graph *models.Graph) []Issue {
	visited := make(map[string]bool)
	stack := make([]string, 0)

	for _, node := range graph.Nodes {
		if node.Type == registry.TypeStart {
			stack = append(stack, node.ID)
		}
	}

	if len(stack) == 0 {
		return nil
	}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}

		visited[current] = true

		for _, edge := range graph.Edges {
			if edge.Source == current && !visited[edge.Target] {
				stack = append(stack, edge.Target)
			}
		}
	}

	issues := make([]Issue, 0)

	for _, node := range graph.Nodes {
		if !visited[node.ID] {
			issues = append(issues, Issue{
				Type:    IssueUnreachable,
				Message: fmt.Sprintf("node %q is not reachable from the start node", node.ID),
				NodeID:  node.ID,
			})
		}
	}

	return issues
}
