package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewatch/platewatch/pkg/eventbus"
	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence/file"
	"github.com/platewatch/platewatch/pkg/registry"
)

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func testNode(id, nodeType string, config map[string]any) *models.Node {
	return &models.Node{
		ID:   id,
		Type: nodeType,
		Data: models.NodeData{Config: config},
	}
}

func testEdge(id, source, sourceHandle, target string) *models.Edge {
	return &models.Edge{
		ID:           id,
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: registry.PortIn,
	}
}

// plateSearchGraph is a complete, publishable availability check graph.
func plateSearchGraph() *models.Graph {
	return &models.Graph{
		RegistryVersion: registry.CoreVersion,
		Nodes: []*models.Node{
			testNode("start", registry.TypeStart, nil),
			testNode("open", registry.TypeOpenPage, map[string]any{"url": "https://plates.springfield.gov/search"}),
			testNode("type", registry.TypeTypeText, map[string]any{"selector": "#plate", "text": "{{.plate}}"}),
			testNode("submit", registry.TypeClick, map[string]any{"selector": "#submit"}),
			testNode("branch", registry.TypeConditional, map[string]any{
				"operator": "textIncludes",
				"selector": ".result",
				"value":    "is available",
			}),
			testNode("yes", registry.TypeEnd, map[string]any{"outcome": "available"}),
			testNode("no", registry.TypeEnd, map[string]any{"outcome": "unavailable"}),
		},
		Edges: []*models.Edge{
			testEdge("e1", "start", registry.PortNext, "open"),
			testEdge("e2", "open", registry.PortNext, "type"),
			testEdge("e3", "type", registry.PortNext, "submit"),
			testEdge("e4", "submit", registry.PortNext, "branch"),
			testEdge("e5", "branch", registry.PortTrue, "yes"),
			testEdge("e6", "branch", registry.PortFalse, "no"),
		},
	}
}

func newTestWorkflowService(t *testing.T) (*Workflow, *capturingPublisher) {
	t.Helper()

	publisher := &capturingPublisher{}
	service := NewWorkflow(file.NewPersistence(t.TempDir()), registry.NewCore(), publisher)

	return service, publisher
}

func TestWorkflowCreate(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Springfield plate search",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestWorkflowCreateRequiresName(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	_, err := service.Create(t.Context(), &models.Workflow{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = service.Create(t.Context(), nil)
	require.Error(t, err)
}

func TestWorkflowFetchByID(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{Name: "Fetch me"})
	require.NoError(t, err)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	_, err = service.FetchByID(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflowListDefaultsAndFilters(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := service.Create(t.Context(), &models.Workflow{Name: name, Owner: "team-plates"})
		require.NoError(t, err)
	}

	result, err := service.ListWorkflows(t.Context(), ListWorkflowsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)
	assert.False(t, result.HasNextPage)

	result, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{Owner: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalCount)

	_, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{SortBy: "owner"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestWorkflowUpdate(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{Name: "Draft"})
	require.NoError(t, err)

	created.Name = "Renamed"
	created.Graph = plateSearchGraph()

	updated, err := service.Update(t.Context(), created)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	require.NotNil(t, updated.Graph)
}

func TestWorkflowUpdatePublishedFails(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "To publish",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	_, err = service.Publish(t.Context(), created.ID)
	require.NoError(t, err)

	created.Name = "Should not change"
	_, err = service.Update(t.Context(), created)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotModifyPublished)
}

func TestWorkflowValidateGraph(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Valid graph",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	result, err := service.ValidateGraph(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Issues)
}

func TestWorkflowValidateGraphReportsIssues(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	graph := plateSearchGraph()
	graph.Nodes[1].Data.Config = map[string]any{}

	created, err := service.Create(t.Context(), &models.Workflow{Name: "Broken graph", Graph: graph})
	require.NoError(t, err)

	result, err := service.ValidateGraph(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.NotEmpty(t, result.Issues)
}

func TestWorkflowCompile(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Compilable",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	program, err := service.Compile(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "blk:start", program.EntryBlockID)
	assert.Len(t, program.Blocks, 7)
}

func TestWorkflowPublish(t *testing.T) {
	service, publisher := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Publishable",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	published, err := service.Publish(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	require.Len(t, publisher.published, 1)
	event, ok := publisher.published[0].(events.WorkflowPublished)
	require.True(t, ok)
	assert.Equal(t, created.ID, event.WorkflowID)
}

func TestWorkflowPublishRejectsBrokenGraph(t *testing.T) {
	service, publisher := newTestWorkflowService(t)

	graph := plateSearchGraph()
	graph.Edges = graph.Edges[:4] // sever both branch arms

	created, err := service.Create(t.Context(), &models.Workflow{Name: "Broken", Graph: graph})
	require.NoError(t, err)

	_, err = service.Publish(t.Context(), created.ID)
	require.Error(t, err)
	assert.Empty(t, publisher.published)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, fetched.Status)
}

func TestWorkflowPublishRequiresGraph(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{Name: "No graph"})
	require.NoError(t, err)

	_, err = service.Publish(t.Context(), created.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphRequired)
}

func TestWorkflowUnpublish(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Retire me",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	_, err = service.Unpublish(t.Context(), created.ID)
	require.Error(t, err)

	_, err = service.Publish(t.Context(), created.ID)
	require.NoError(t, err)

	unpublished, err := service.Unpublish(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusUnpublished, unpublished.Status)
}

func TestWorkflowDelete(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{Name: "Delete me"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflowNodeTypes(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	types := service.NodeTypes()
	assert.Len(t, types, 8)
	assert.Equal(t, registry.TypeStart, types[0].Type)
}

func TestWorkflowHealthCheck(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	message, healthy := service.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)
}
