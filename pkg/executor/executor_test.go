package executor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewatch/platewatch/pkg/browser"
	"github.com/platewatch/platewatch/pkg/ir"
)

type stubDriver struct {
	policy browser.RequestPolicy

	navigated    []string
	clicked      []string
	filled       map[string]string
	selected     []string
	closed       bool
	counts       map[string]int
	texts        map[string]string
	failClick    error
	failWait     error
	failNavigate error
}

func newStubDriver(policy browser.RequestPolicy) *stubDriver {
	return &stubDriver{
		policy: policy,
		filled: map[string]string{},
		counts: map[string]int{},
		texts:  map[string]string{},
	}
}

func (d *stubDriver) Navigate(_ context.Context, url string) error {
	if d.failNavigate != nil {
		return d.failNavigate
	}

	d.navigated = append(d.navigated, url)

	return nil
}

func (d *stubDriver) Click(_ context.Context, selector string) error {
	if d.failClick != nil {
		return d.failClick
	}

	d.clicked = append(d.clicked, selector)

	return nil
}

func (d *stubDriver) Fill(_ context.Context, selector, text string) error {
	d.filled[selector] = text

	return nil
}

func (d *stubDriver) SelectorCount(_ context.Context, selector string) (int, error) {
	return d.counts[selector], nil
}

func (d *stubDriver) Text(_ context.Context, selector string) (string, bool, error) {
	text, ok := d.texts[selector]

	return text, ok, nil
}

func (d *stubDriver) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	if d.failWait != nil {
		return d.failWait
	}

	return nil
}

func (d *stubDriver) WaitForNewTab(_ context.Context, _ time.Duration) error {
	return nil
}

func (d *stubDriver) SelectByText(_ context.Context, selector, _ string) error {
	d.selected = append(d.selected, selector)

	return nil
}

func (d *stubDriver) SelectByValue(_ context.Context, selector, _ string) error {
	d.selected = append(d.selected, selector)

	return nil
}

func (d *stubDriver) SelectByIndex(_ context.Context, selector string, _ int) error {
	d.selected = append(d.selected, selector)

	return nil
}

func (d *stubDriver) Close(_ context.Context) error {
	d.closed = true

	return nil
}

type stubFactory struct {
	driver *stubDriver
}

func (f *stubFactory) NewDriver(_ context.Context, policy browser.RequestPolicy) (browser.Driver, error) {
	f.driver = newStubDriver(policy)

	return f.driver, nil
}

func newTestExecutor(factory browser.Factory) *Executor {
	e := NewExecutor(factory, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	e.InterActionDelay = 0

	return e
}

// checkProgram mirrors the compiled form of a plate availability workflow:
// open the search page, type the plate, submit, then branch on the result
// banner.
func checkProgram() *ir.Program {
	return &ir.Program{
		IRVersion:       ir.Version,
		RegistryVersion: "core/v1",
		EntryBlockID:    "blk:start",
		Blocks: map[string]ir.Block{
			"blk:start": &ir.StartBlock{SourceNodeID: "start", Next: "blk:open"},
			"blk:open": &ir.ActionBlock{
				SourceNodeID: "open",
				Op:           ir.OpenPage{URL: "https://plates.springfield.gov/search"},
				Next:         "blk:type",
			},
			"blk:type": &ir.ActionBlock{
				SourceNodeID: "type",
				Op:           ir.TypeText{Selector: "#plate", Text: "WRX 555"},
				Next:         "blk:submit",
			},
			"blk:submit": &ir.ActionBlock{
				SourceNodeID: "submit",
				Op:           ir.Click{Selector: "#submit"},
				Next:         "blk:branch",
			},
			"blk:branch": &ir.BranchBlock{
				SourceNodeID: "branch",
				Condition:    ir.TextIncludes{Selector: ".result", Value: "is available"},
				WhenTrue:     "blk:yes",
				WhenFalse:    "blk:no",
			},
			"blk:yes": &ir.EndBlock{SourceNodeID: "yes", Outcome: ir.OutcomeAvailable},
			"blk:no":  &ir.EndBlock{SourceNodeID: "no", Outcome: ir.OutcomeUnavailable},
		},
	}
}

func TestExecuteBranchFalsePath(t *testing.T) {
	factory := &stubFactory{}
	e := newTestExecutor(factory)

	// stub page has no .result text, so the availability branch goes false
	result := e.Execute(context.Background(), checkProgram(), Options{
		AllowedDomains: []string{"springfield.gov"},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, ir.OutcomeUnavailable, result.Outcome)
	assert.True(t, factory.driver.closed)
}

func TestExecuteBranchTruePath(t *testing.T) {
	factory := &seededFactory{texts: map[string]string{".result": "Plate WRX 555 is available!"}}
	e := newTestExecutor(factory)

	result := e.Execute(context.Background(), checkProgram(), Options{
		AllowedDomains: []string{"springfield.gov"},
	})

	require.True(t, result.Success)
	assert.Equal(t, ir.OutcomeAvailable, result.Outcome)
	assert.Empty(t, result.Error)
	require.NotNil(t, factory.driver)
	assert.True(t, factory.driver.closed)
	assert.Equal(t, []string{"https://plates.springfield.gov/search"}, factory.driver.navigated)
	assert.Equal(t, "WRX 555", factory.driver.filled["#plate"])
	assert.Equal(t, []string{"#submit"}, factory.driver.clicked)
}

// seededFactory lets tests pre-load page state into the driver.
type seededFactory struct {
	texts  map[string]string
	counts map[string]int
	tweak  func(*stubDriver)

	driver *stubDriver
}

func (f *seededFactory) NewDriver(_ context.Context, policy browser.RequestPolicy) (browser.Driver, error) {
	d := newStubDriver(policy)

	for k, v := range f.texts {
		d.texts[k] = v
	}

	for k, v := range f.counts {
		d.counts[k] = v
	}

	if f.tweak != nil {
		f.tweak(d)
	}

	f.driver = d

	return d, nil
}

func TestExecuteActionFailureEndsRun(t *testing.T) {
	factory := &seededFactory{tweak: func(d *stubDriver) {
		d.failClick = errors.New("element not interactable")
	}}
	e := newTestExecutor(factory)

	result := e.Execute(context.Background(), checkProgram(), Options{
		AllowedDomains: []string{"springfield.gov"},
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "element not interactable")
	assert.True(t, factory.driver.closed, "driver must be closed on failure paths")
	assert.NotEmpty(t, result.Logs)
}

func TestExecuteBlockedNavigation(t *testing.T) {
	factory := &seededFactory{}
	e := newTestExecutor(factory)

	program := checkProgram()
	program.Blocks["blk:open"] = &ir.ActionBlock{
		SourceNodeID: "open",
		Op:           ir.OpenPage{URL: "https://evil.example.com/"},
		Next:         "blk:type",
	}

	result := e.Execute(context.Background(), program, Options{
		AllowedDomains: []string{"springfield.gov"},
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "refused")
	assert.Empty(t, factory.driver.navigated, "blocked navigation must never reach the driver")
	assert.True(t, factory.driver.closed)
}

func TestExecuteMissingBlock(t *testing.T) {
	factory := &seededFactory{}
	e := newTestExecutor(factory)

	program := checkProgram()
	program.Blocks["blk:start"] = &ir.StartBlock{SourceNodeID: "start", Next: "blk:gone"}

	result := e.Execute(context.Background(), program, Options{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "blk:gone")
	assert.True(t, factory.driver.closed)
}

func TestExecuteCycleHitsStepLimit(t *testing.T) {
	factory := &seededFactory{}
	e := newTestExecutor(factory)
	e.StepLimit = 10

	program := &ir.Program{
		IRVersion:    ir.Version,
		EntryBlockID: "blk:a",
		Blocks: map[string]ir.Block{
			"blk:a": &ir.StartBlock{SourceNodeID: "a", Next: "blk:b"},
			"blk:b": &ir.ActionBlock{SourceNodeID: "b", Op: ir.Click{Selector: "#x"}, Next: "blk:a"},
		},
	}

	result := e.Execute(context.Background(), program, Options{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "block transitions")
	assert.True(t, factory.driver.closed)
}

func TestExecuteWaitAndSelectActions(t *testing.T) {
	factory := &seededFactory{counts: map[string]int{"#table": 1}}
	e := newTestExecutor(factory)

	program := &ir.Program{
		IRVersion:    ir.Version,
		EntryBlockID: "blk:start",
		Blocks: map[string]ir.Block{
			"blk:start": &ir.StartBlock{SourceNodeID: "start", Next: "blk:wait"},
			"blk:wait": &ir.ActionBlock{
				SourceNodeID: "wait",
				Op:           ir.WaitSelector{Selector: "#form", TimeoutMs: 100},
				Next:         "blk:select",
			},
			"blk:select": &ir.ActionBlock{
				SourceNodeID: "select",
				Op:           ir.SelectByText{Selector: "#city", Text: "Springfield"},
				Next:         "blk:branch",
			},
			"blk:branch": &ir.BranchBlock{
				SourceNodeID: "branch",
				Condition:    ir.Exists{Selector: "#table"},
				WhenTrue:     "blk:end",
				WhenFalse:    "blk:end",
			},
			"blk:end": &ir.EndBlock{SourceNodeID: "end", Outcome: ir.OutcomeAvailable},
		},
	}

	result := e.Execute(context.Background(), program, Options{})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, []string{"#city"}, factory.driver.selected)
}

func TestExecuteLogsCaptureIntent(t *testing.T) {
	factory := &seededFactory{}
	e := newTestExecutor(factory)

	result := e.Execute(context.Background(), checkProgram(), Options{
		AllowedDomains: []string{"springfield.gov"},
	})

	require.True(t, result.Success)

	var messages []string
	for _, entry := range result.Logs {
		messages = append(messages, entry.Message)
	}

	assert.Contains(t, messages, "Opening page")
	assert.Contains(t, messages, "Typing text")
	assert.Contains(t, messages, "Clicking element")
	assert.Contains(t, messages, "Branch evaluated")

	for i := 1; i < len(result.Logs); i++ {
		assert.False(t, result.Logs[i].Timestamp.Before(result.Logs[i-1].Timestamp))
	}
}
