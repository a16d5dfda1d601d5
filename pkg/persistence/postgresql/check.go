package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
)

// CheckRepository handles check-related database operations.
type CheckRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCheckRepository creates a new check repository.
func NewCheckRepository(db *sql.DB, logger *slog.Logger) *CheckRepository {
	return &CheckRepository{db: db, logger: logger}
}

const checkColumns = `
			id
		  , workflow_id
		  , city_id
		  , plate_text
		  , status
		  , last_error
		  , callback_url
		  , last_run_at
		  , created_at
		  , updated_at
`

func (r *CheckRepository) GetByID(ctx context.Context, id string) (*models.Check, error) {
	query := "SELECT " + checkColumns + " FROM checks WHERE id = $1"

	check, err := scanCheck(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCheckError("GetByID", id, persistence.ErrCheckNotFound)
		}

		return nil, fmt.Errorf("failed to scan check: %w", err)
	}

	return check, nil
}

func (r *CheckRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Check, error) {
	query := "SELECT " + checkColumns + " FROM checks WHERE workflow_id = $1 ORDER BY created_at"

	return r.queryChecks(ctx, query, workflowID)
}

func (r *CheckRepository) ListByStatus(ctx context.Context, status models.CheckStatus) ([]*models.Check, error) {
	query := "SELECT " + checkColumns + " FROM checks WHERE status = $1 ORDER BY created_at"

	return r.queryChecks(ctx, query, status)
}

func (r *CheckRepository) queryChecks(ctx context.Context, query string, args ...any) ([]*models.Check, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	checks := make([]*models.Check, 0)

	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}

		checks = append(checks, check)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating checks: %w", err)
	}

	return checks, nil
}

// Save upserts a check, generating an ID when missing.
func (r *CheckRepository) Save(ctx context.Context, check *models.Check) error {
	now := time.Now().UTC()

	if check.CreatedAt.IsZero() {
		check.CreatedAt = now
	}

	check.UpdatedAt = now

	if check.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate check ID: %w", err)
		}

		check.ID = id.String()
	}

	query := `
		INSERT INTO checks (id, workflow_id, city_id, plate_text, status, last_error, callback_url, last_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			city_id = EXCLUDED.city_id,
			plate_text = EXCLUDED.plate_text,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			callback_url = EXCLUDED.callback_url,
			last_run_at = EXCLUDED.last_run_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		check.ID,
		check.WorkflowID,
		check.CityID,
		check.PlateText,
		check.Status,
		check.LastError,
		check.CallbackURL,
		check.LastRunAt,
		check.CreatedAt,
		check.UpdatedAt,
	)
	if err != nil {
		return persistence.NewCheckError("Save", check.ID, err)
	}

	return nil
}

func (r *CheckRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM checks WHERE id = $1", id)
	if err != nil {
		return persistence.NewCheckError("Delete", id, err)
	}

	return nil
}

func scanCheck(row interface{ Scan(...any) error }) (*models.Check, error) {
	var check models.Check

	err := row.Scan(
		&check.ID,
		&check.WorkflowID,
		&check.CityID,
		&check.PlateText,
		&check.Status,
		&check.LastError,
		&check.CallbackURL,
		&check.LastRunAt,
		&check.CreatedAt,
		&check.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &check, nil
}
