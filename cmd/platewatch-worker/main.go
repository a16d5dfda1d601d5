package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/platewatch/platewatch/pkg/browser"
	"github.com/platewatch/platewatch/pkg/cmd"
	"github.com/platewatch/platewatch/pkg/executor"
	"github.com/platewatch/platewatch/pkg/log"
	"github.com/platewatch/platewatch/pkg/ratelimit"
	"github.com/platewatch/platewatch/pkg/registry"
	"github.com/platewatch/platewatch/pkg/services"
)

const (
	defaultRateLimit  = 10
	defaultRateWindow = time.Minute
)

func main() {
	command := &cli.Command{
		Name:                  "platewatch-worker",
		EnableShellCompletion: true,
		Usage:                 "Run plate availability checks in a browser session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the per-domain rate limiter (disabled if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "rate-limit",
				Usage:   "Maximum browser runs per domain per window",
				Value:   defaultRateLimit,
				Sources: cli.EnvVars("RATE_LIMIT"),
			},
			&cli.DurationFlag{
				Name:    "rate-window",
				Usage:   "Rate limiter window size",
				Value:   defaultRateWindow,
				Sources: cli.EnvVars("RATE_WINDOW"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("platewatch-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Platewatch Worker")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "platewatch-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			chrome, err := browser.NewChromeManager(ctx, logger)
			if err != nil {
				return err
			}
			defer chrome.Close()

			var limiter services.RateLimiter

			if redisURL := command.String("redis-url"); redisURL != "" {
				redisLimiter, err := ratelimit.NewLimiter(
					ctx,
					logger,
					redisURL,
					command.Int("rate-limit"),
					command.Duration("rate-window"),
				)
				if err != nil {
					return err
				}

				defer func() {
					if err := redisLimiter.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close rate limiter", "error", err)
					}
				}()

				limiter = redisLimiter
			}

			checkService := services.NewCheck(
				persistence,
				registry.NewCore(),
				executor.NewExecutor(chrome, logger),
				limiter,
				eventBus,
				logger,
			)

			worker := NewWorkerManager(workerID, checkService, eventBus, logger)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Worker stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
