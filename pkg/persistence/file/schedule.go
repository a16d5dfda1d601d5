package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
)

const schedulesCollection = "schedules"

// ScheduleRepository handles schedule-related file operations.
type ScheduleRepository struct {
	root string
}

func NewScheduleRepository(root string) *ScheduleRepository {
	return &ScheduleRepository{root: root}
}

func (sr *ScheduleRepository) GetByID(_ context.Context, scheduleID string) (*models.Schedule, error) {
	var schedule models.Schedule

	found, err := readDocument(sr.root, schedulesCollection, scheduleID, &schedule)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, &persistence.ScheduleError{Op: "GetByID", ScheduleID: scheduleID, Err: persistence.ErrScheduleNotFound}
	}

	return &schedule, nil
}

func (sr *ScheduleRepository) ListDue(_ context.Context, now time.Time) ([]*models.Schedule, error) {
	ids, err := listDocumentIDs(sr.root, schedulesCollection)
	if err != nil {
		return nil, err
	}

	due := make([]*models.Schedule, 0)

	for _, id := range ids {
		var schedule models.Schedule

		found, err := readDocument(sr.root, schedulesCollection, id, &schedule)
		if err != nil {
			return nil, fmt.Errorf("failed to load schedule %s: %w", id, err)
		}

		if found && schedule.IsDue(now) {
			due = append(due, &schedule)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextDueAt.Before(due[j].NextDueAt)
	})

	return due, nil
}

func (sr *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	return writeDocument(sr.root, schedulesCollection, schedule.ID, schedule)
}

func (sr *ScheduleRepository) Delete(_ context.Context, id string) error {
	return removeDocument(sr.root, schedulesCollection, id)
}
