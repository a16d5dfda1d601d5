package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platewatch/platewatch/pkg/eventbus"
	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
)

// Scheduler polls the database for due schedules and re-enqueues their checks
// by publishing check.requested events. A single poller handles all schedules
// regardless of their individual cron expressions.
type Scheduler struct {
	persistence  persistence.Persistence
	publisher    eventbus.EventPublisher
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewScheduler(
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	pollInterval time.Duration,
) *Scheduler {
	return &Scheduler{
		persistence:  p,
		publisher:    publisher,
		logger:       logger.With("module", "scheduler"),
		pollInterval: pollInterval,
	}
}

// Start runs the poll loop until the context is cancelled or a termination
// signal arrives.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting schedule poller", "poll_interval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-quit:
			s.logger.InfoContext(ctx, "Received shutdown signal", "signal", sig.String())

			return nil
		case <-ticker.C:
			s.processDueSchedules(ctx)
		}
	}
}

// processDueSchedules fires every schedule that is due at the moment of the
// poll. Failures on individual schedules are logged and skipped so one broken
// entry cannot stall the rest.
func (s *Scheduler) processDueSchedules(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.persistence.ScheduleRepository().ListDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list due schedules", "error", err)

		return
	}

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "Processing due schedules", "count", len(due))
	}

	for _, schedule := range due {
		if err := s.fireSchedule(ctx, schedule); err != nil {
			s.logger.ErrorContext(ctx, "Failed to fire schedule",
				"schedule_id", schedule.ID,
				"check_id", schedule.CheckID,
				"error", err)

			continue
		}

		if err := s.advanceSchedule(ctx, schedule, now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to advance schedule",
				"schedule_id", schedule.ID,
				"error", err)
		}
	}
}

// fireSchedule loads the schedule's check and publishes a check.requested
// event for it. Checks that no longer exist deactivate their schedule instead
// of failing forever.
func (s *Scheduler) fireSchedule(ctx context.Context, schedule *models.Schedule) error {
	check, err := s.persistence.CheckRepository().GetByID(ctx, schedule.CheckID)
	if errors.Is(err, persistence.ErrCheckNotFound) {
		s.logger.WarnContext(ctx, "Schedule references missing check, deactivating",
			"schedule_id", schedule.ID,
			"check_id", schedule.CheckID)

		schedule.Active = false

		return s.persistence.ScheduleRepository().Save(ctx, schedule)
	}

	if err != nil {
		return err
	}

	event := events.CheckRequested{
		BaseEvent:  events.NewBaseEvent(events.CheckRequestedEvent, check.ID),
		WorkflowID: check.WorkflowID,
		CityID:     check.CityID,
		PlateText:  check.PlateText,
	}

	if err := s.publisher.Publish(ctx, check.ID, event); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Schedule fired",
		"schedule_id", schedule.ID,
		"check_id", check.ID,
		"cron_expression", schedule.CronExpression)

	return nil
}

func (s *Scheduler) advanceSchedule(ctx context.Context, schedule *models.Schedule, from time.Time) error {
	if err := schedule.Advance(from); err != nil {
		return err
	}

	return s.persistence.ScheduleRepository().Save(ctx, schedule)
}
