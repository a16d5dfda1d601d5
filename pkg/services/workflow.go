package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/platewatch/platewatch/pkg/compiler"
	"github.com/platewatch/platewatch/pkg/eventbus"
	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/ir"
	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
	"github.com/platewatch/platewatch/pkg/registry"
	"github.com/platewatch/platewatch/pkg/validation"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow is the authoring service: CRUD, validation and the publish gate.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validation.Validator
	compiler    *compiler.Compiler
	publisher   eventbus.EventPublisher
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, reg *registry.Registry, publisher eventbus.EventPublisher) *Workflow {
	return &Workflow{
		persistence: p,
		registry:    reg,
		validator:   validation.NewValidator(reg),
		compiler:    compiler.New(reg),
		publisher:   publisher,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit     int
	Offset    int
	Owner     string
	Status    *models.WorkflowStatus
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int                `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, err
	}

	result, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		Owner:     req.Owner,
		Status:    req.Status,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, err
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	switch req.SortBy {
	case "", "created_at", "updated_at", "name":
	default:
		return NewValidationError("ListWorkflows", "invalid_sort", "sort field must be one of created_at, updated_at, name", ErrInvalidSortField)
	}

	switch req.SortOrder {
	case "", "asc", "desc":
	default:
		return NewValidationError("ListWorkflows", "invalid_sort", "sort order must be asc or desc", ErrInvalidSortOrder)
	}

	if req.Status != nil {
		switch *req.Status {
		case models.WorkflowStatusDraft, models.WorkflowStatusPublished, models.WorkflowStatusUnpublished:
		default:
			return NewValidationError("ListWorkflows", "invalid_status", "unknown workflow status", ErrInvalidStatus)
		}
	}

	return nil
}

// FetchByID retrieves a single workflow.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create stores a new draft workflow.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, NewValidationError("Create", "workflow_nil", "workflow is required", ErrWorkflowNil)
	}

	if workflow.Name == "" {
		return nil, NewValidationError("Create", "name_required", "workflow name is required", ErrWorkflowNameRequired)
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	workflow.Status = models.WorkflowStatusDraft

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces the name, description and graph of a draft workflow.
// Published workflows are immutable.
func (w *Workflow) Update(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, NewValidationError("Update", "workflow_nil", "workflow is required", ErrWorkflowNil)
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.WorkflowStatusPublished {
		return nil, &ServiceError{Op: "Update", Code: "published_immutable", Message: "published workflows cannot be edited", Err: ErrCannotModifyPublished}
	}

	existing.Name = workflow.Name
	existing.Description = workflow.Description
	existing.Graph = workflow.Graph

	if err := w.persistence.WorkflowRepository().Save(ctx, existing); err != nil {
		return nil, err
	}

	return existing, nil
}

// Delete soft deletes a workflow.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	return w.persistence.WorkflowRepository().Delete(ctx, workflowID)
}

// ValidateGraph runs the full validation pass over the workflow's stored
// graph and reports issues as data.
func (w *Workflow) ValidateGraph(ctx context.Context, workflowID string) (*validation.Result, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Graph == nil {
		return nil, NewValidationError("ValidateGraph", "graph_required", "workflow has no graph", ErrGraphRequired)
	}

	issues := w.validator.Check(workflow.Graph)

	return &validation.Result{
		OK:     len(issues) == 0,
		Graph:  workflow.Graph,
		Issues: issues,
	}, nil
}

// Compile lowers the workflow's graph to an executable program without
// publishing it. A failed compile carries the full issue list.
func (w *Workflow) Compile(ctx context.Context, workflowID string) (*ir.Program, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Graph == nil {
		return nil, NewValidationError("Compile", "graph_required", "workflow has no graph", ErrGraphRequired)
	}

	return w.compiler.CompileGraph(workflow.Graph)
}

// Publish gates a draft behind validation and compilation, then marks it
// published and emits a workflow.published event.
func (w *Workflow) Publish(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Graph == nil {
		return nil, NewValidationError("Publish", "graph_required", "workflow has no graph", ErrGraphRequired)
	}

	if issues := w.validator.Check(workflow.Graph); len(issues) > 0 {
		return nil, &compiler.CompileError{Issues: issues}
	}

	if _, err := w.compiler.CompileGraph(workflow.Graph); err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, compileErr
		}

		return nil, err
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusPublished
	workflow.PublishedAt = &now

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	if w.publisher != nil {
		event := events.WorkflowPublished{
			BaseEvent:   events.NewBaseEvent(events.WorkflowPublishedEvent, ""),
			WorkflowID:  workflow.ID,
			PublishedAt: now,
		}
		if err := w.publisher.Publish(ctx, workflow.ID, event); err != nil {
			return nil, err
		}
	}

	return workflow, nil
}

// Unpublish retires a published workflow without deleting it.
func (w *Workflow) Unpublish(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusPublished {
		return nil, &ServiceError{Op: "Unpublish", Code: "not_published", Message: "workflow is not published", Err: ErrWorkflowNotExecutable}
	}

	workflow.Status = models.WorkflowStatusUnpublished

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// NodeTypes exposes the registry palette for the authoring UI.
func (w *Workflow) NodeTypes() []registry.NodeType {
	return w.registry.Types()
}
