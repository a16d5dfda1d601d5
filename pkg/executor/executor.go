// Package executor interprets compiled workflow programs against a live
// browser session. Execute never returns an error to the caller; every
// failure mode ends up inside the ExecutionResult.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/platewatch/platewatch/pkg/browser"
	"github.com/platewatch/platewatch/pkg/ir"
	"github.com/platewatch/platewatch/pkg/netpolicy"
)

const (
	// defaultStepLimit bounds block transitions per run so a cyclic program
	// cannot spin forever.
	defaultStepLimit = 1000

	// defaultInterActionDelay is applied after every successful action to
	// avoid tripping bot defenses on the target site.
	defaultInterActionDelay = 500 * time.Millisecond
)

// Options carries the per-execution safety context. AllowedDomains feeds the
// network policy; empty means unrestricted and is meant for tests only.
type Options struct {
	AllowedDomains []string
}

type Executor struct {
	factory browser.Factory
	logger  *slog.Logger

	// InterActionDelay and StepLimit are tunable for tests; zero values fall
	// back to the defaults.
	InterActionDelay time.Duration
	StepLimit        int
}

func NewExecutor(factory browser.Factory, logger *slog.Logger) *Executor {
	return &Executor{
		factory:          factory,
		logger:           logger.With("module", "executor"),
		InterActionDelay: defaultInterActionDelay,
		StepLimit:        defaultStepLimit,
	}
}

// Execute walks the program from its entry block until an end block or a
// failure. The browser session is released on every exit path.
func (e *Executor) Execute(ctx context.Context, program *ir.Program, opts Options) ExecutionResult {
	run := &execution{
		executor: e,
		program:  program,
		opts:     opts,
		logger:   e.logger,
	}

	driver, err := e.factory.NewDriver(ctx, func(url string) error {
		return netpolicy.ValidateURL(url, opts.AllowedDomains)
	})
	if err != nil {
		run.log(LogLevelError, "Failed to open browser session", map[string]any{"error": err.Error()})

		return ExecutionResult{Success: false, Error: fmt.Sprintf("failed to open browser session: %v", err), Logs: run.trail}
	}

	defer func() {
		if closeErr := driver.Close(ctx); closeErr != nil {
			e.logger.Warn("Failed to close browser session", "error", closeErr)
		}
	}()

	run.driver = driver

	outcome, err := run.walk(ctx)
	if err != nil {
		run.log(LogLevelError, "Execution failed", map[string]any{"error": err.Error()})

		return ExecutionResult{Success: false, Error: err.Error(), Logs: run.trail}
	}

	run.log(LogLevelInfo, "Execution completed", map[string]any{"outcome": string(outcome)})

	return ExecutionResult{Success: true, Outcome: outcome, Logs: run.trail}
}

// execution is the mutable state of one run: the current driver and the
// append-only log trail.
type execution struct {
	executor *Executor
	program  *ir.Program
	opts     Options
	driver   browser.Driver
	logger   *slog.Logger
	trail    []LogEntry
}

func (r *execution) log(level LogLevel, message string, details map[string]any) {
	r.trail = append(r.trail, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Details:   details,
	})

	attrs := make([]any, 0, len(details)*2)
	for k, v := range details {
		attrs = append(attrs, k, v)
	}

	switch level {
	case LogLevelError:
		r.logger.Error(message, attrs...)
	case LogLevelWarn:
		r.logger.Warn(message, attrs...)
	default:
		r.logger.Info(message, attrs...)
	}
}

func (r *execution) stepLimit() int {
	if r.executor.StepLimit > 0 {
		return r.executor.StepLimit
	}

	return defaultStepLimit
}

// walk drives the current-block pointer from the entry until an end block
// terminates the loop.
func (r *execution) walk(ctx context.Context) (ir.Outcome, error) {
	currentID := r.program.EntryBlockID

	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if steps >= r.stepLimit() {
			return "", fmt.Errorf("execution exceeded %d block transitions, aborting (cyclic program?)", r.stepLimit())
		}

		block, ok := r.program.Blocks[currentID]
		if !ok {
			return "", fmt.Errorf("block %s not found in program", currentID)
		}

		switch b := block.(type) {
		case *ir.StartBlock:
			r.log(LogLevelInfo, "Starting workflow run", map[string]any{"block": currentID})
			currentID = b.Next

		case *ir.EndBlock:
			return b.Outcome, nil

		case *ir.ActionBlock:
			if err := r.executeAction(ctx, currentID, b.Op); err != nil {
				return "", err
			}

			if err := r.pause(ctx); err != nil {
				return "", err
			}

			currentID = b.Next

		case *ir.BranchBlock:
			result, err := r.evaluateCondition(ctx, currentID, b.Condition)
			if err != nil {
				return "", err
			}

			r.log(LogLevelInfo, "Branch evaluated", map[string]any{"block": currentID, "result": result})

			if result {
				currentID = b.WhenTrue
			} else {
				currentID = b.WhenFalse
			}

		default:
			return "", fmt.Errorf("unknown block kind %q at block %s", block.Kind(), currentID)
		}
	}
}

// pause applies the inter-action delay, aborting early on cancellation.
func (r *execution) pause(ctx context.Context) error {
	return r.sleep(ctx, r.executor.InterActionDelay)
}

func (r *execution) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *execution) executeAction(ctx context.Context, blockID string, action ir.Action) error {
	switch op := action.(type) {
	case ir.OpenPage:
		r.log(LogLevelInfo, "Opening page", map[string]any{"block": blockID, "url": op.URL})

		if err := netpolicy.ValidateURL(op.URL, r.opts.AllowedDomains); err != nil {
			return fmt.Errorf("navigation to %s refused: %w", op.URL, err)
		}

		if err := r.driver.Navigate(ctx, op.URL); err != nil {
			return fmt.Errorf("failed to open page %s: %w", op.URL, err)
		}

	case ir.Click:
		r.log(LogLevelInfo, "Clicking element", map[string]any{"block": blockID, "selector": op.Selector})

		if err := r.driver.Click(ctx, op.Selector); err != nil {
			return fmt.Errorf("failed to click %q: %w", op.Selector, err)
		}

	case ir.TypeText:
		r.log(LogLevelInfo, "Typing text", map[string]any{"block": blockID, "selector": op.Selector})

		if err := r.driver.Fill(ctx, op.Selector, op.Text); err != nil {
			return fmt.Errorf("failed to type into %q: %w", op.Selector, err)
		}

	case ir.WaitDuration:
		r.log(LogLevelInfo, "Waiting", map[string]any{"block": blockID, "seconds": op.Seconds})

		if err := r.sleep(ctx, time.Duration(op.Seconds*float64(time.Second))); err != nil {
			return err
		}

	case ir.WaitSelector:
		r.log(LogLevelInfo, "Waiting for element", map[string]any{"block": blockID, "selector": op.Selector, "timeoutMs": op.TimeoutMs})

		if err := r.driver.WaitForSelector(ctx, op.Selector, time.Duration(op.TimeoutMs)*time.Millisecond); err != nil {
			return fmt.Errorf("failed waiting for %q: %w", op.Selector, err)
		}

	case ir.WaitNewTab:
		r.log(LogLevelInfo, "Waiting for new tab", map[string]any{"block": blockID, "timeoutMs": op.TimeoutMs})

		if err := r.driver.WaitForNewTab(ctx, time.Duration(op.TimeoutMs)*time.Millisecond); err != nil {
			return fmt.Errorf("failed waiting for new tab: %w", err)
		}

	case ir.SelectByText:
		r.log(LogLevelInfo, "Selecting option by text", map[string]any{"block": blockID, "selector": op.Selector, "text": op.Text})

		if err := r.driver.SelectByText(ctx, op.Selector, op.Text); err != nil {
			return fmt.Errorf("failed to select option on %q: %w", op.Selector, err)
		}

	case ir.SelectByValue:
		r.log(LogLevelInfo, "Selecting option by value", map[string]any{"block": blockID, "selector": op.Selector, "value": op.Value})

		if err := r.driver.SelectByValue(ctx, op.Selector, op.Value); err != nil {
			return fmt.Errorf("failed to select option on %q: %w", op.Selector, err)
		}

	case ir.SelectByIndex:
		r.log(LogLevelInfo, "Selecting option by index", map[string]any{"block": blockID, "selector": op.Selector, "index": op.Index})

		if err := r.driver.SelectByIndex(ctx, op.Selector, op.Index); err != nil {
			return fmt.Errorf("failed to select option on %q: %w", op.Selector, err)
		}

	default:
		return fmt.Errorf("unknown action type %q at block %s", action.ActionType(), blockID)
	}

	return nil
}

func (r *execution) evaluateCondition(ctx context.Context, blockID string, condition ir.Condition) (bool, error) {
	switch c := condition.(type) {
	case ir.Exists:
		r.log(LogLevelInfo, "Checking element presence", map[string]any{"block": blockID, "selector": c.Selector})

		count, err := r.driver.SelectorCount(ctx, c.Selector)
		if err != nil {
			return false, fmt.Errorf("failed to count matches of %q: %w", c.Selector, err)
		}

		return count > 0, nil

	case ir.TextIncludes:
		r.log(LogLevelInfo, "Checking element text", map[string]any{"block": blockID, "selector": c.Selector, "value": c.Value})

		text, found, err := r.driver.Text(ctx, c.Selector)
		if err != nil {
			return false, fmt.Errorf("failed to read text of %q: %w", c.Selector, err)
		}

		if !found {
			return false, nil
		}

		return strings.Contains(text, c.Value), nil

	default:
		return false, fmt.Errorf("unknown condition op %q at block %s", condition.ConditionOp(), blockID)
	}
}
