package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/platewatch/platewatch/pkg/compiler"
	"github.com/platewatch/platewatch/pkg/eventbus"
	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/executor"
	"github.com/platewatch/platewatch/pkg/ir"
	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
	"github.com/platewatch/platewatch/pkg/ratelimit"
	"github.com/platewatch/platewatch/pkg/registry"
	"github.com/platewatch/platewatch/pkg/template"
)

const callbackTimeout = 10 * time.Second

// RateLimiter gates browser runs per municipal domain.
type RateLimiter interface {
	Allow(ctx context.Context, domain string) error
}

// Runner executes a compiled program in a browser session.
type Runner interface {
	Execute(ctx context.Context, program *ir.Program, opts executor.Options) executor.ExecutionResult
}

// Check orchestrates plate availability checks: it accepts check requests,
// runs the published workflow for a check in a browser session and reports
// the outcome through events and the optional webhook callback.
type Check struct {
	persistence persistence.Persistence
	compiler    *compiler.Compiler
	runner      Runner
	limiter     RateLimiter
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewCheck creates a new check service.
func NewCheck(
	p persistence.Persistence,
	reg *registry.Registry,
	runner Runner,
	limiter RateLimiter,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Check {
	return &Check{
		persistence: p,
		compiler:    compiler.New(reg),
		runner:      runner,
		limiter:     limiter,
		publisher:   publisher,
		validate:    validator.New(),
		httpClient:  &http.Client{Timeout: callbackTimeout},
		logger:      logger.With("module", "services.check"),
	}
}

// RequestCheck validates and stores a pending check, then emits a
// check.requested event for a worker to pick up.
func (c *Check) RequestCheck(ctx context.Context, check *models.Check) (*models.Check, error) {
	if check == nil {
		return nil, NewValidationError("RequestCheck", "check_nil", "check is required", ErrInvalidRequest)
	}

	if err := c.validate.Struct(check); err != nil {
		return nil, NewValidationError("RequestCheck", "invalid_check", err.Error(), ErrInvalidRequest)
	}

	workflow, err := c.persistence.WorkflowRepository().GetByID(ctx, check.WorkflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusPublished {
		return nil, &ServiceError{
			Op:      "RequestCheck",
			Code:    "workflow_not_executable",
			Message: fmt.Sprintf("workflow %s is %s, only published workflows run checks", workflow.ID, workflow.Status),
			Err:     ErrWorkflowNotExecutable,
		}
	}

	if _, err := c.persistence.CityRepository().GetByID(ctx, check.CityID); err != nil {
		return nil, err
	}

	if check.ID == "" {
		check.ID = uuid.New().String()
	}

	check.Status = models.CheckStatusPending
	check.LastError = ""

	if err := c.persistence.CheckRepository().Save(ctx, check); err != nil {
		return nil, err
	}

	if c.publisher != nil {
		event := events.CheckRequested{
			BaseEvent:  events.NewBaseEvent(events.CheckRequestedEvent, check.ID),
			WorkflowID: check.WorkflowID,
			CityID:     check.CityID,
			PlateText:  check.PlateText,
		}
		if err := c.publisher.Publish(ctx, check.ID, event); err != nil {
			return nil, err
		}
	}

	c.logger.InfoContext(ctx, "Check requested",
		"check_id", check.ID,
		"workflow_id", check.WorkflowID,
		"city_id", check.CityID,
	)

	return check, nil
}

// FetchByID retrieves a single check.
func (c *Check) FetchByID(ctx context.Context, id string) (*models.Check, error) {
	return c.persistence.CheckRepository().GetByID(ctx, id)
}

// ListByWorkflow retrieves all checks requested for a workflow.
func (c *Check) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Check, error) {
	return c.persistence.CheckRepository().ListByWorkflow(ctx, workflowID)
}

// Run executes a requested check end to end: it renders the workflow graph
// with the check's plate and city, compiles it, runs the program in a browser
// restricted to the city's domains and persists the resulting status.
//
// A rate limited domain returns ratelimit.ErrLimited with the check left
// pending so the caller can retry after the window passes. Execution
// failures never return an error: they land on the check as
// ERROR_DURING_CHECK.
func (c *Check) Run(ctx context.Context, checkID, workerID string) (*models.Check, error) {
	check, err := c.persistence.CheckRepository().GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}

	workflow, err := c.persistence.WorkflowRepository().GetByID(ctx, check.WorkflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusPublished {
		return nil, &ServiceError{
			Op:      "Run",
			Code:    "workflow_not_executable",
			Message: fmt.Sprintf("workflow %s is no longer published", workflow.ID),
			Err:     ErrWorkflowNotExecutable,
		}
	}

	if workflow.Graph == nil {
		return nil, NewValidationError("Run", "graph_required", "workflow has no graph", ErrGraphRequired)
	}

	city, err := c.persistence.CityRepository().GetByID(ctx, check.CityID)
	if err != nil {
		return nil, err
	}

	program, err := c.prepareProgram(workflow, city, check)
	if err != nil {
		return c.finishCheck(ctx, check, city, executor.ExecutionResult{
			Success: false,
			Error:   err.Error(),
		}, 0, workerID)
	}

	if c.limiter != nil {
		for _, domain := range city.Domains {
			if err := c.limiter.Allow(ctx, domain); err != nil {
				var limited *ratelimit.ErrLimited
				if errors.As(err, &limited) {
					c.logger.WarnContext(ctx, "Check deferred, domain rate limited",
						"check_id", check.ID,
						"domain", limited.Domain,
						"retry_after", limited.RetryAfter,
					)
				}

				return nil, err
			}
		}
	}

	check.Status = models.CheckStatusRunning
	if err := c.persistence.CheckRepository().Save(ctx, check); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Running check",
		"check_id", check.ID,
		"workflow_id", workflow.ID,
		"city_id", city.ID,
		"worker_id", workerID,
	)

	started := time.Now()
	result := c.runner.Execute(ctx, program, executor.Options{AllowedDomains: city.Domains})

	return c.finishCheck(ctx, check, city, result, time.Since(started), workerID)
}

// prepareProgram renders the workflow graph with the check's variables and
// lowers it to an executable program.
func (c *Check) prepareProgram(workflow *models.Workflow, city *models.City, check *models.Check) (*ir.Program, error) {
	rendered, err := template.RenderGraph(workflow.Graph, template.Variables{
		PlateText: check.PlateText,
		CityID:    city.ID,
		CityName:  city.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering workflow graph: %w", err)
	}

	program, err := c.compiler.CompileGraph(rendered)
	if err != nil {
		return nil, fmt.Errorf("compiling workflow graph: %w", err)
	}

	return program, nil
}

func (c *Check) finishCheck(
	ctx context.Context,
	check *models.Check,
	city *models.City,
	result executor.ExecutionResult,
	duration time.Duration,
	workerID string,
) (*models.Check, error) {
	now := time.Now().UTC()
	check.LastRunAt = &now
	check.Status, check.LastError = checkStatusOf(result)

	if err := c.persistence.CheckRepository().Save(ctx, check); err != nil {
		return nil, err
	}

	if result.Success {
		c.logger.InfoContext(ctx, "Check finished",
			"check_id", check.ID,
			"status", check.Status,
			"duration", duration,
		)
	} else {
		c.logger.ErrorContext(ctx, "Check failed",
			"check_id", check.ID,
			"error", check.LastError,
			"duration", duration,
		)
	}

	c.publishResult(ctx, check, result, duration, workerID)

	if check.CallbackURL != "" {
		if err := c.deliverCallback(ctx, check, city); err != nil {
			c.logger.WarnContext(ctx, "Callback delivery failed",
				"check_id", check.ID,
				"callback_url", check.CallbackURL,
				"error", err,
			)
		}
	}

	return check, nil
}

// checkStatusOf maps an execution result to the check's terminal status.
func checkStatusOf(result executor.ExecutionResult) (models.CheckStatus, string) {
	if !result.Success {
		return models.CheckStatusError, result.Error
	}

	if result.Outcome == ir.OutcomeAvailable {
		return models.CheckStatusAvailable, ""
	}

	return models.CheckStatusUnavailable, ""
}

func (c *Check) publishResult(ctx context.Context, check *models.Check, result executor.ExecutionResult, duration time.Duration, workerID string) {
	if c.publisher == nil {
		return
	}

	var event eventbus.Event

	if result.Success {
		completed := events.CheckCompleted{
			BaseEvent:  events.NewBaseEvent(events.CheckCompletedEvent, check.ID),
			WorkflowID: check.WorkflowID,
			Status:     check.Status,
			Duration:   duration,
		}
		completed.WorkerID = workerID
		event = completed
	} else {
		failed := events.CheckFailed{
			BaseEvent:  events.NewBaseEvent(events.CheckFailedEvent, check.ID),
			WorkflowID: check.WorkflowID,
			Error:      check.LastError,
			Duration:   duration,
		}
		failed.WorkerID = workerID
		event = failed
	}

	if err := c.publisher.Publish(ctx, check.ID, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish check result event",
			"check_id", check.ID,
			"error", err,
		)
	}
}

// callbackPayload is the JSON body POSTed to a check's callback URL.
type callbackPayload struct {
	CheckID    string             `json:"check_id"`
	WorkflowID string             `json:"workflow_id"`
	CityID     string             `json:"city_id"`
	CityName   string             `json:"city_name"`
	PlateText  string             `json:"plate_text"`
	Status     models.CheckStatus `json:"status"`
	LastError  string             `json:"last_error,omitempty"`
	CheckedAt  *time.Time         `json:"checked_at,omitempty"`
}

func (c *Check) deliverCallback(ctx context.Context, check *models.Check, city *models.City) error {
	payload := callbackPayload{
		CheckID:    check.ID,
		WorkflowID: check.WorkflowID,
		CityID:     check.CityID,
		CityName:   city.Name,
		PlateText:  check.PlateText,
		Status:     check.Status,
		LastError:  check.LastError,
		CheckedAt:  check.LastRunAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, check.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building callback request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivering callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}

	return nil
}
