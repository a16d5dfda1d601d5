package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule represents a recurring check stored in the database. It carries the
// cron expression and the precomputed next execution time so the scheduler can
// poll for due entries without keeping per-schedule timers.
type Schedule struct {
	// ID uniquely identifies this schedule entry
	ID string `json:"id" validate:"required"`

	// CheckID identifies the check this schedule re-enqueues
	CheckID string `json:"check_id" validate:"required"`

	// CronExpression defines when this schedule fires, standard 5-field format
	CronExpression string `json:"cron_expression" validate:"required"`

	// NextDueAt is the precomputed next execution time
	NextDueAt time.Time `json:"next_due_at" validate:"required"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Active indicates if this schedule is processed by the poller
	Active bool `json:"active"`
}

// NewSchedule creates a schedule with its first due time computed.
func NewSchedule(id, checkID, cronExpression string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:             id,
		CheckID:        checkID,
		CronExpression: cronExpression,
		CreatedAt:      now,
		UpdatedAt:      now,
		Active:         true,
	}

	if err := schedule.Advance(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Advance recomputes NextDueAt from the given reference time.
func (s *Schedule) Advance(from time.Time) error {
	if s.CronExpression == "" {
		return errors.New("schedule cron expression is required")
	}

	sched, err := cron.ParseStandard(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = sched.Next(from.UTC())
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether the schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.After(now)
}
