// Package main provides the Platewatch worker: it consumes check.requested
// events and runs each check in a browser session.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platewatch/platewatch/pkg/eventbus"
	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/otelhelper"
	"github.com/platewatch/platewatch/pkg/ratelimit"
	"github.com/platewatch/platewatch/pkg/services"
)

type WorkerManager struct {
	id           string
	logger       *slog.Logger
	checkService *services.Check
	eventBus     eventbus.EventBus
	tracer       trace.Tracer
}

func NewWorkerManager(
	id string,
	checkService *services.Check,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:           id,
		logger:       logger.With("module", "platewatch-worker", "worker_id", id),
		checkService: checkService,
		eventBus:     eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	tracer, err := otelhelper.NewTracer(ctx, "platewatch-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		w.tracer = tracer
	}

	if err := w.eventBus.Handle(events.CheckRequestedEvent, w.handleCheckRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleCheckRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.CheckRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for CheckRequested")

		return nil
	}

	logger := w.logger.With(
		"check_id", requested.CheckID,
		"workflow_id", requested.WorkflowID,
		"city_id", requested.CityID,
	)
	logger.InfoContext(ctx, "Processing check request")

	if w.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "check.run",
			attribute.String(otelhelper.CheckIDKey, requested.CheckID),
			attribute.String(otelhelper.WorkflowIDKey, requested.WorkflowID),
			attribute.String(otelhelper.CityIDKey, requested.CityID),
			attribute.String(otelhelper.PlateTextKey, requested.PlateText),
			attribute.String(otelhelper.WorkerIDKey, w.id),
		)
		defer span.End()
	}

	check, err := w.checkService.Run(ctx, requested.CheckID, w.id)
	if err != nil {
		var limited *ratelimit.ErrLimited
		if errors.As(err, &limited) {
			// Nack so the message redelivers after the window passes.
			logger.WarnContext(ctx, "Domain rate limited, requeueing",
				"domain", limited.Domain,
				"retry_after", limited.RetryAfter,
			)

			return err
		}

		logger.ErrorContext(ctx, "Check run failed", "error", err)

		if w.tracer != nil {
			span := trace.SpanFromContext(ctx)
			otelhelper.SetError(span, err)
		}

		return err
	}

	logger.InfoContext(ctx, "Check finished", "status", check.Status)

	return nil
}
