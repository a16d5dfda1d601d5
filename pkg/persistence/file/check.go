package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
)

const checksCollection = "checks"

// CheckRepository handles check-related file operations.
type CheckRepository struct {
	root string
}

func NewCheckRepository(root string) *CheckRepository {
	return &CheckRepository{root: root}
}

func (cr *CheckRepository) GetByID(_ context.Context, checkID string) (*models.Check, error) {
	var check models.Check

	found, err := readDocument(cr.root, checksCollection, checkID, &check)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewCheckError("GetByID", checkID, persistence.ErrCheckNotFound)
	}

	return &check, nil
}

func (cr *CheckRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Check, error) {
	return cr.list(ctx, func(check *models.Check) bool {
		return check.WorkflowID == workflowID
	})
}

func (cr *CheckRepository) ListByStatus(ctx context.Context, status models.CheckStatus) ([]*models.Check, error) {
	return cr.list(ctx, func(check *models.Check) bool {
		return check.Status == status
	})
}

func (cr *CheckRepository) list(_ context.Context, keep func(*models.Check) bool) ([]*models.Check, error) {
	ids, err := listDocumentIDs(cr.root, checksCollection)
	if err != nil {
		return nil, err
	}

	checks := make([]*models.Check, 0, len(ids))

	for _, id := range ids {
		var check models.Check

		found, err := readDocument(cr.root, checksCollection, id, &check)
		if err != nil {
			return nil, fmt.Errorf("failed to load check %s: %w", id, err)
		}

		if found && keep(&check) {
			checks = append(checks, &check)
		}
	}

	sort.Slice(checks, func(i, j int) bool {
		return checks[i].CreatedAt.Before(checks[j].CreatedAt)
	})

	return checks, nil
}

func (cr *CheckRepository) Save(_ context.Context, check *models.Check) error {
	now := time.Now().UTC()
	if check.CreatedAt.IsZero() {
		check.CreatedAt = now
	}

	check.UpdatedAt = now

	return writeDocument(cr.root, checksCollection, check.ID, check)
}

func (cr *CheckRepository) Delete(_ context.Context, id string) error {
	return removeDocument(cr.root, checksCollection, id)
}
