package persistence_test

import (
	"errors"
	"testing"

	"github.com/platewatch/platewatch/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error constants are available", func(t *testing.T) {
		assert.NotNil(t, persistence.ErrWorkflowNotFound)
		assert.NotNil(t, persistence.ErrWorkflowAlreadyExists)
		assert.NotNil(t, persistence.ErrCheckNotFound)
		assert.NotNil(t, persistence.ErrScheduleNotFound)
		assert.NotNil(t, persistence.ErrCityNotFound)
	})

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		checkErr := persistence.NewCheckError("UpdateStatus", "check-456", persistence.ErrCheckNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsCheckNotFound(checkErr))

		// Test error unwrapping
		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.True(t, errors.Is(checkErr, persistence.ErrCheckNotFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("UpdateWorkflow", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "UpdateWorkflow")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})

	t.Run("check error contains context", func(t *testing.T) {
		err := persistence.NewCheckError("GetByID", "check-456", persistence.ErrCheckNotFound)

		assert.Contains(t, err.Error(), "GetByID")
		assert.Contains(t, err.Error(), "check-456")
		assert.Contains(t, err.Error(), "check not found")
	})
}
