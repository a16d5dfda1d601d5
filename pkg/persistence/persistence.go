// Package persistence provides the data storage abstraction for workflows,
// checks, schedules and cities.
package persistence

import (
	"context"
	"time"

	"github.com/platewatch/platewatch/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	CheckRepository() CheckRepository
	ScheduleRepository() ScheduleRepository
	CityRepository() CityRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters and paginates workflow listings.
type ListWorkflowsOptions struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
	Owner     string
	Status    *models.WorkflowStatus
}

// WorkflowListResult is one page of workflows plus pagination metadata.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int
	HasNextPage bool
}

type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error

	// Delete soft deletes the workflow; it disappears from listings but the
	// record is kept.
	Delete(ctx context.Context, id string) error
}

type CheckRepository interface {
	GetByID(ctx context.Context, id string) (*models.Check, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Check, error)
	ListByStatus(ctx context.Context, status models.CheckStatus) ([]*models.Check, error)
	Save(ctx context.Context, check *models.Check) error
	Delete(ctx context.Context, id string) error
}

type ScheduleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Schedule, error)

	// ListDue returns active schedules whose next due time is at or before
	// now.
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	Save(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

type CityRepository interface {
	GetByID(ctx context.Context, id string) (*models.City, error)
	List(ctx context.Context) ([]*models.City, error)
	Save(ctx context.Context, city *models.City) error
}
