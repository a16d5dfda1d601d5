package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/executor"
	"github.com/platewatch/platewatch/pkg/ir"
	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
	"github.com/platewatch/platewatch/pkg/persistence/file"
	"github.com/platewatch/platewatch/pkg/ratelimit"
	"github.com/platewatch/platewatch/pkg/registry"
)

type stubRunner struct {
	result   executor.ExecutionResult
	lastOpts executor.Options
	program  *ir.Program
	runs     int
}

func (r *stubRunner) Execute(_ context.Context, program *ir.Program, opts executor.Options) executor.ExecutionResult {
	r.runs++
	r.program = program
	r.lastOpts = opts

	return r.result
}

type stubLimiter struct {
	err   error
	calls []string
}

func (l *stubLimiter) Allow(_ context.Context, domain string) error {
	l.calls = append(l.calls, domain)

	return l.err
}

type checkFixture struct {
	service   *Check
	persist   persistence.Persistence
	publisher *capturingPublisher
	runner    *stubRunner
	limiter   *stubLimiter
	workflow  *models.Workflow
	city      *models.City
}

func newCheckFixture(t *testing.T, result executor.ExecutionResult) *checkFixture {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	publisher := &capturingPublisher{}
	runner := &stubRunner{result: result}
	limiter := &stubLimiter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewCore()

	city := &models.City{
		ID:      "springfield",
		Name:    "Springfield",
		Domains: []string{"plates.springfield.gov"},
	}
	require.NoError(t, persist.CityRepository().Save(t.Context(), city))

	workflowService := NewWorkflow(persist, reg, nil)
	workflow, err := workflowService.Create(t.Context(), &models.Workflow{
		Name:  "Springfield plate search",
		Graph: plateSearchGraph(),
	})
	require.NoError(t, err)

	workflow, err = workflowService.Publish(t.Context(), workflow.ID)
	require.NoError(t, err)

	return &checkFixture{
		service:   NewCheck(persist, reg, runner, limiter, publisher, logger),
		persist:   persist,
		publisher: publisher,
		runner:    runner,
		limiter:   limiter,
		workflow:  workflow,
		city:      city,
	}
}

func (f *checkFixture) requestCheck(t *testing.T, plate string) *models.Check {
	t.Helper()

	check, err := f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID: f.workflow.ID,
		CityID:     f.city.ID,
		PlateText:  plate,
	})
	require.NoError(t, err)

	return check
}

func TestRequestCheck(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})

	check := f.requestCheck(t, "WRX 555")

	assert.NotEmpty(t, check.ID)
	assert.Equal(t, models.CheckStatusPending, check.Status)

	require.Len(t, f.publisher.published, 1)
	event, ok := f.publisher.published[0].(events.CheckRequested)
	require.True(t, ok)
	assert.Equal(t, check.ID, event.CheckID)
	assert.Equal(t, "WRX 555", event.PlateText)
}

func TestRequestCheckValidation(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})

	_, err := f.service.RequestCheck(t.Context(), nil)
	require.Error(t, err)

	_, err = f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID: f.workflow.ID,
		CityID:     f.city.ID,
		PlateText:  "X", // below minimum length
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID: "missing",
		CityID:     f.city.ID,
		PlateText:  "WRX 555",
	})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID: f.workflow.ID,
		CityID:     "gotham",
		PlateText:  "WRX 555",
	})
	assert.True(t, persistence.IsCityNotFound(err))
}

func TestRequestCheckRejectsUnpublishedWorkflow(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})

	draft := &models.Workflow{
		ID:     "draft-workflow",
		Name:   "Still a draft",
		Status: models.WorkflowStatusDraft,
		Graph:  plateSearchGraph(),
	}
	require.NoError(t, f.persist.WorkflowRepository().Save(t.Context(), draft))

	_, err := f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID: draft.ID,
		CityID:     f.city.ID,
		PlateText:  "WRX 555",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowNotExecutable)
}

func TestRunAvailableOutcome(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{
		Success: true,
		Outcome: ir.OutcomeAvailable,
	})

	check := f.requestCheck(t, "WRX 555")
	f.publisher.published = nil

	ran, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.NoError(t, err)

	assert.Equal(t, models.CheckStatusAvailable, ran.Status)
	assert.Empty(t, ran.LastError)
	require.NotNil(t, ran.LastRunAt)

	assert.Equal(t, 1, f.runner.runs)
	assert.Equal(t, []string{"plates.springfield.gov"}, f.runner.lastOpts.AllowedDomains)
	assert.Equal(t, []string{"plates.springfield.gov"}, f.limiter.calls)

	require.Len(t, f.publisher.published, 1)
	event, ok := f.publisher.published[0].(events.CheckCompleted)
	require.True(t, ok)
	assert.Equal(t, models.CheckStatusAvailable, event.Status)
	assert.Equal(t, "worker-1", event.WorkerID)
}

func TestRunUnavailableOutcome(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{
		Success: true,
		Outcome: ir.OutcomeUnavailable,
	})

	check := f.requestCheck(t, "WRX 555")

	ran, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, models.CheckStatusUnavailable, ran.Status)
}

func TestRunRendersPlateIntoProgram(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{
		Success: true,
		Outcome: ir.OutcomeAvailable,
	})

	check := f.requestCheck(t, "KWIK-E 1")

	_, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.NoError(t, err)

	require.NotNil(t, f.runner.program)

	typeBlock, ok := f.runner.program.Blocks["blk:type"].(*ir.ActionBlock)
	require.True(t, ok)
	assert.Equal(t, ir.TypeText{Selector: "#plate", Text: "KWIK-E 1"}, typeBlock.Op)
}

func TestRunExecutionFailureMarksError(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{
		Success: false,
		Error:   "element #submit not found",
	})

	check := f.requestCheck(t, "WRX 555")
	f.publisher.published = nil

	ran, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.NoError(t, err)

	assert.Equal(t, models.CheckStatusError, ran.Status)
	assert.Equal(t, "element #submit not found", ran.LastError)

	require.Len(t, f.publisher.published, 1)
	event, ok := f.publisher.published[0].(events.CheckFailed)
	require.True(t, ok)
	assert.Equal(t, "element #submit not found", event.Error)
}

func TestRunRateLimitedLeavesCheckPending(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})
	f.limiter.err = &ratelimit.ErrLimited{
		Domain:     "plates.springfield.gov",
		RetryAfter: 30 * time.Second,
	}

	check := f.requestCheck(t, "WRX 555")

	_, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.Error(t, err)

	var limited *ratelimit.ErrLimited
	assert.ErrorAs(t, err, &limited)
	assert.Equal(t, 0, f.runner.runs)

	stored, err := f.service.FetchByID(t.Context(), check.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckStatusPending, stored.Status)
}

func TestRunUnpublishedWorkflowFails(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})

	check := f.requestCheck(t, "WRX 555")

	f.workflow.Status = models.WorkflowStatusUnpublished
	require.NoError(t, f.persist.WorkflowRepository().Save(t.Context(), f.workflow))

	_, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowNotExecutable)
}

func TestRunMissingCheck(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})

	_, err := f.service.Run(t.Context(), "missing", "worker-1")
	require.Error(t, err)
	assert.True(t, persistence.IsCheckNotFound(err))
}

func TestRunDeliversCallback(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{
		Success: true,
		Outcome: ir.OutcomeAvailable,
	})

	var payload callbackPayload

	received := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		close(received)
	}))
	defer server.Close()

	check, err := f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID:  f.workflow.ID,
		CityID:      f.city.ID,
		PlateText:   "WRX 555",
		CallbackURL: server.URL,
	})
	require.NoError(t, err)

	_, err = f.service.Run(t.Context(), check.ID, "worker-1")
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("callback was not delivered")
	}

	assert.Equal(t, check.ID, payload.CheckID)
	assert.Equal(t, "Springfield", payload.CityName)
	assert.Equal(t, models.CheckStatusAvailable, payload.Status)
}

func TestRunCallbackFailureDoesNotFailCheck(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{
		Success: true,
		Outcome: ir.OutcomeUnavailable,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	check, err := f.service.RequestCheck(t.Context(), &models.Check{
		WorkflowID:  f.workflow.ID,
		CityID:      f.city.ID,
		PlateText:   "WRX 555",
		CallbackURL: server.URL,
	})
	require.NoError(t, err)

	ran, err := f.service.Run(t.Context(), check.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, models.CheckStatusUnavailable, ran.Status)
}

func TestListByWorkflow(t *testing.T) {
	f := newCheckFixture(t, executor.ExecutionResult{Success: true})

	first := f.requestCheck(t, "WRX 555")
	second := f.requestCheck(t, "EX-1 23")

	checks, err := f.service.ListByWorkflow(t.Context(), f.workflow.ID)
	require.NoError(t, err)
	require.Len(t, checks, 2)

	ids := []string{checks[0].ID, checks[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
