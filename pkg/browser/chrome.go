package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// ChromeManager owns one headless browser process. Individual executions get
// their own session (tab) via NewDriver; the process is shared.
type ChromeManager struct {
	logger      *slog.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeManager launches the headless browser process.
func NewChromeManager(ctx context.Context, logger *slog.Logger) (*ChromeManager, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	return &ChromeManager{
		logger:      logger.With("module", "browser"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close terminates the browser process.
func (m *ChromeManager) Close() {
	m.allocCancel()
}

// NewDriver opens a fresh session with request interception wired to the
// given policy before any navigation can happen.
func (m *ChromeManager) NewDriver(ctx context.Context, policy RequestPolicy) (Driver, error) {
	pageCtx, pageCancel := chromedp.NewContext(m.allocCtx)

	d := &chromeDriver{
		logger:     m.logger,
		policy:     policy,
		rootCtx:    pageCtx,
		pageCtx:    pageCtx,
		pageCancel: pageCancel,
	}

	if err := d.attachInterception(pageCtx); err != nil {
		pageCancel()

		return nil, fmt.Errorf("failed to enable request interception: %w", err)
	}

	d.armNewTabListener()

	return d, nil
}

type chromeDriver struct {
	logger *slog.Logger
	policy RequestPolicy

	// rootCtx is the first session context; new-tab targets of the whole
	// browser are observed through it.
	rootCtx    context.Context
	pageCtx    context.Context
	pageCancel context.CancelFunc

	newTabs <-chan target.ID
}

// attachInterception pauses every outbound request of the page and aborts
// those the policy rejects. A blocked subresource does not fail the page.
func (d *chromeDriver) attachInterception(pageCtx context.Context) error {
	chromedp.ListenTarget(pageCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}

		go func() {
			c := chromedp.FromContext(pageCtx)
			execCtx := cdp.WithExecutor(pageCtx, c.Target)

			if err := d.policy(paused.Request.URL); err != nil {
				d.logger.Warn("Blocked outbound request",
					"url", paused.Request.URL,
					"reason", err.Error())

				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)

				return
			}

			_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
		}()
	})

	return chromedp.Run(pageCtx, fetch.Enable())
}

// armNewTabListener registers for the next page target opened anywhere in the
// browser. Re-armed after every switch so consecutive waitNewTab steps work.
func (d *chromeDriver) armNewTabListener() {
	d.newTabs = chromedp.WaitNewTarget(d.rootCtx, func(info *target.Info) bool {
		return info.Type == "page"
	})
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return chromedp.Run(d.pageCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (d *chromeDriver) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return chromedp.Run(d.pageCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (d *chromeDriver) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return chromedp.Run(d.pageCtx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (d *chromeDriver) SelectorCount(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int

	expr := fmt.Sprintf("document.querySelectorAll(%s).length", strconv.Quote(selector))
	if err := chromedp.Run(d.pageCtx, chromedp.Evaluate(expr, &count)); err != nil {
		return 0, err
	}

	return count, nil
}

func (d *chromeDriver) Text(ctx context.Context, selector string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var result struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}

	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.textContent === null) {
			return {found: false, text: ""};
		}
		return {found: true, text: el.textContent};
	})()`, strconv.Quote(selector))

	if err := chromedp.Run(d.pageCtx, chromedp.Evaluate(expr, &result)); err != nil {
		return "", false, err
	}

	return result.Text, result.Found, nil
}

func (d *chromeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(d.pageCtx, timeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("selector %q did not appear within %s", selector, timeout)
	}

	return err
}

func (d *chromeDriver) WaitForNewTab(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case id := <-d.newTabs:
		newCtx, newCancel := chromedp.NewContext(d.rootCtx, chromedp.WithTargetID(id))

		if err := d.attachInterception(newCtx); err != nil {
			newCancel()

			return fmt.Errorf("failed to attach interception to new tab: %w", err)
		}

		// Ownership of the active page transfers; the prior page is
		// abandoned but the browser is reused.
		oldCancel := d.pageCancel
		d.pageCtx = newCtx
		d.pageCancel = func() {
			newCancel()
			oldCancel()
		}

		d.armNewTabListener()

		return nil

	case <-time.After(timeout):
		return fmt.Errorf("no new tab opened within %s", timeout)

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *chromeDriver) SelectByText(ctx context.Context, selector, text string) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) throw new Error("no element matches selector");
		const option = Array.from(el.options).find(o => o.text === %s);
		if (!option) throw new Error("no option with matching text");
		el.value = option.value;
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`, strconv.Quote(selector), strconv.Quote(text))

	return d.evalSelect(ctx, expr)
}

func (d *chromeDriver) SelectByValue(ctx context.Context, selector, value string) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) throw new Error("no element matches selector");
		el.value = %s;
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`, strconv.Quote(selector), strconv.Quote(value))

	return d.evalSelect(ctx, expr)
}

func (d *chromeDriver) SelectByIndex(ctx context.Context, selector string, index int) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) throw new Error("no element matches selector");
		el.selectedIndex = %d;
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`, strconv.Quote(selector), index)

	return d.evalSelect(ctx, expr)
}

func (d *chromeDriver) evalSelect(ctx context.Context, expr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var ok bool

	return chromedp.Run(d.pageCtx, chromedp.Evaluate(expr, &ok))
}

func (d *chromeDriver) Close(ctx context.Context) error {
	d.pageCancel()

	return nil
}
