package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/registry"
)

func node(id, nodeType string, config map[string]any) *models.Node {
	return &models.Node{
		ID:   id,
		Type: nodeType,
		Data: models.NodeData{Config: config},
	}
}

func edge(id, source, sourceHandle, target string) *models.Edge {
	return &models.Edge{
		ID:           id,
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: registry.PortIn,
	}
}

// searchGraph is a minimal valid plate search: start -> open -> type -> end.
func searchGraph() *models.Graph {
	return &models.Graph{
		RegistryVersion: registry.CoreVersion,
		Nodes: []*models.Node{
			node("start", registry.TypeStart, nil),
			node("open", registry.TypeOpenPage, map[string]any{"url": "https://plates.springfield.gov/search"}),
			node("type", registry.TypeTypeText, map[string]any{"selector": "#plate", "text": "WRX 555"}),
			node("end", registry.TypeEnd, map[string]any{"outcome": "available"}),
		},
		Edges: []*models.Edge{
			edge("e1", "start", registry.PortNext, "open"),
			edge("e2", "open", registry.PortNext, "type"),
			edge("e3", "type", registry.PortNext, "end"),
		},
	}
}

func issueTypes(issues []Issue) []IssueType {
	types := make([]IssueType, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}

	return types
}

func TestCheckValidGraph(t *testing.T) {
	v := NewValidator(registry.NewCore())

	assert.Empty(t, v.Check(searchGraph()))
}

func TestCheckStartEndCounts(t *testing.T) {
	v := NewValidator(registry.NewCore())

	graph := searchGraph()
	graph.Nodes = append(graph.Nodes, node("start2", registry.TypeStart, nil))

	issues := v.Check(graph)
	assert.Contains(t, issueTypes(issues), IssueStartCount)

	graph = &models.Graph{
		Nodes: []*models.Node{node("start", registry.TypeStart, nil)},
		Edges: []*models.Edge{},
	}

	issues = v.Check(graph)
	assert.Contains(t, issueTypes(issues), IssueEndCount)
}

func TestCheckUnknownNodeType(t *testing.T) {
	v := NewValidator(registry.NewCore())

	graph := searchGraph()
	graph.Nodes[1].Type = "core.teleport"

	issues := v.Check(graph)
	require.NotEmpty(t, issues)
	assert.Contains(t, issueTypes(issues), IssueUnknownType)

	var flagged *Issue

	for i := range issues {
		if issues[i].Type == IssueUnknownType {
			flagged = &issues[i]
		}
	}

	require.NotNil(t, flagged)
	assert.Equal(t, "open", flagged.NodeID)
}

func TestCheckInvalidNodeConfig(t *testing.T) {
	v := NewValidator(registry.NewCore())

	graph := searchGraph()
	graph.Nodes[1].Data.Config = map[string]any{}

	issues := v.Check(graph)
	assert.Contains(t, issueTypes(issues), IssueInvalidProps)
}

func TestCheckEdgeEndpoints(t *testing.T) {
	v := NewValidator(registry.NewCore())

	graph := searchGraph()
	graph.Edges = append(graph.Edges, edge("bad", "ghost", registry.PortNext, "end"))

	issues := v.Check(graph)
	assert.Contains(t, issueTypes(issues), IssueMissingNode)
}

func TestCheckInvalidHandles(t *testing.T) {
	v := NewValidator(registry.NewCore())

	graph := searchGraph()
	graph.Edges[0].SourceHandle = registry.PortTrue

	issues := v.Check(graph)
	assert.Contains(t, issueTypes(issues), IssueInvalidHandle)
}

func TestCheckUnreachableNodes(t *testing.T) {
	v := NewValidator(registry.NewCore())

	graph := searchGraph()
	graph.Nodes = append(graph.Nodes, node("orphan", registry.TypeClick, map[string]any{"selector": "#x"}))

	issues := v.Check(graph)
	require.NotEmpty(t, issues)

	found := false

	for _, issue := range issues {
		if issue.Type == IssueUnreachable {
			found = true

			assert.Equal(t, "orphan", issue.NodeID)
		}
	}

	assert.True(t, found)
}

func TestValidateParsesPayload(t *testing.T) {
	v := NewValidator(registry.NewCore())

	payload := []byte(`{
		"registryVersion": "core/v1",
		"nodes": [
			{"id": "start", "type": "core.start", "position": {"x": 0, "y": 0}, "data": {"label": "Start"}},
			{"id": "end", "type": "core.end", "data": {"config": {"outcome": "unavailable"}}}
		],
		"edges": [
			{"id": "e1", "source": "start", "sourceHandle": "next", "target": "end", "targetHandle": "in"}
		]
	}`)

	result := v.Validate(payload)
	assert.True(t, result.OK)
	require.NotNil(t, result.Graph)
	assert.Empty(t, result.Issues)
	assert.Len(t, result.Graph.Nodes, 2)
}

func TestValidateRejectsMalformedPayloads(t *testing.T) {
	v := NewValidator(registry.NewCore())

	for _, payload := range []string{
		`not json`,
		`{"nodes": "nope", "edges": []}`,
		`{"edges": []}`,
		`{"nodes": [{"type": "core.start"}], "edges": []}`,
	} {
		result := v.Validate([]byte(payload))
		assert.False(t, result.OK, payload)
		assert.Nil(t, result.Graph, payload)
		require.Len(t, result.Issues, 1, payload)
		assert.Equal(t, IssueGraphParse, result.Issues[0].Type, payload)
	}
}

func TestValidateParsedGraphWithIssuesStillOK(t *testing.T) {
	v := NewValidator(registry.NewCore())

	// parses fine but has no start node
	payload := []byte(`{
		"nodes": [{"id": "end", "type": "core.end", "data": {}}],
		"edges": []
	}`)

	result := v.Validate(payload)
	assert.True(t, result.OK)
	assert.NotEmpty(t, result.Issues)
}

func TestIssueString(t *testing.T) {
	assert.Equal(t,
		"node.unknownType (node n1): bad type",
		Issue{Type: IssueUnknownType, NodeID: "n1", Message: "bad type"}.String())
	assert.Equal(t,
		"edge.missingNode (edge e1): gone",
		Issue{Type: IssueMissingNode, EdgeID: "e1", Message: "gone"}.String())
	assert.Equal(t,
		"graph.parse: nope",
		Issue{Type: IssueGraphParse, Message: "nope"}.String())
}
