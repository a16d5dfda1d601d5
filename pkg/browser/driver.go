// Package browser abstracts the browser automation engine behind a small
// capability interface, so the executor's control flow can be tested against
// a stub without a real browser.
package browser

import (
	"context"
	"time"
)

// RequestPolicy judges the URL of an outbound request. A non-nil error means
// the request must not leave the browser.
type RequestPolicy func(url string) error

// Driver is one live browser session. A driver is owned by exactly one
// workflow execution and must be closed on every exit path.
type Driver interface {
	// Navigate opens the URL in the active page and waits for the DOM to be
	// ready.
	Navigate(ctx context.Context, url string) error

	// Click clicks the first visible match of the selector.
	Click(ctx context.Context, selector string) error

	// Fill replaces the content of the first matched input with text.
	Fill(ctx context.Context, selector, text string) error

	// SelectorCount returns how many elements currently match the selector.
	SelectorCount(ctx context.Context, selector string) (int, error)

	// Text returns the text content of the first matched element. found is
	// false when no element matches or its text content is null.
	Text(ctx context.Context, selector string) (text string, found bool, err error)

	// WaitForSelector waits until the selector matches, bounded by timeout.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// WaitForNewTab waits for a new page to open within timeout and switches
	// the active page to it. The request policy follows to the new page.
	WaitForNewTab(ctx context.Context, timeout time.Duration) error

	// SelectByText chooses the option of a select control by visible text.
	SelectByText(ctx context.Context, selector, text string) error

	// SelectByValue chooses the option of a select control by value.
	SelectByValue(ctx context.Context, selector, value string) error

	// SelectByIndex chooses the option of a select control by position.
	SelectByIndex(ctx context.Context, selector string, index int) error

	// Close tears the session down and releases the page.
	Close(ctx context.Context) error
}

// Factory creates one driver per workflow execution, with the execution's
// request policy attached before any request can escape.
type Factory interface {
	NewDriver(ctx context.Context, policy RequestPolicy) (Driver, error)
}
