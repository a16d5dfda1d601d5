// Package compiler lowers validated workflow graphs into executable programs.
// Unlike the validator's soft-issue model, compilation is all-or-nothing: the
// output must be a total program, so any irregularity fails the whole compile
// with the full list of issues found in one pass.
package compiler

import (
	"fmt"
	"strings"

	"github.com/platewatch/platewatch/pkg/ir"
	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/registry"
	"github.com/platewatch/platewatch/pkg/validation"
)

// CompileError carries every issue found during one compilation pass, so the
// authoring UI can surface all problems in a single round-trip.
type CompileError struct {
	Issues []validation.Issue
}

func (e *CompileError) Error() string {
	if len(e.Issues) == 0 {
		return "compilation failed"
	}

	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.String())
	}

	return fmt.Sprintf("compilation failed with %d issue(s): %s", len(e.Issues), strings.Join(msgs, "; "))
}

// Compiler lowers graphs against a node-type registry.
type Compiler struct {
	registry  *registry.Registry
	validator *validation.Validator
}

func New(reg *registry.Registry) *Compiler {
	return &Compiler{
		registry:  reg,
		validator: validation.NewValidator(reg),
	}
}

// Compile parses an untyped graph payload and lowers it. The returned error
// is always a *CompileError.
func (c *Compiler) Compile(data []byte) (*ir.Program, error) {
	graph, parseIssues := validation.ParseGraph(data)
	if graph == nil {
		return nil, &CompileError{Issues: parseIssues}
	}

	return c.CompileGraph(graph)
}

// CompileGraph lowers a parsed graph into a program. Lowering the same graph
// twice yields identical output: nodes are processed in graph order and block
// ids derive from node ids.
func (c *Compiler) CompileGraph(graph *models.Graph) (*ir.Program, error) {
	issues := c.validator.StructuralIssues(graph)

	entry := ""

	for _, node := range graph.Nodes {
		if node.Type == registry.TypeStart {
			entry = ir.BlockIDFor(node.ID)

			break
		}
	}

	// Without an entry point there is nothing to lower into.
	if entry == "" {
		return nil, &CompileError{Issues: issues}
	}

	blocks := make(map[string]ir.Block, len(graph.Nodes))

	for _, node := range graph.Nodes {
		block, nodeIssues := c.lowerNode(graph, node)

		issues = append(issues, nodeIssues...)
		if block != nil {
			blocks[ir.BlockIDFor(node.ID)] = block
		}
	}

	if len(issues) > 0 {
		return nil, &CompileError{Issues: issues}
	}

	registryVersion := graph.RegistryVersion
	if registryVersion == "" {
		registryVersion = c.registry.Version()
	}

	return &ir.Program{
		IRVersion:       ir.Version,
		RegistryVersion: registryVersion,
		EntryBlockID:    entry,
		Blocks:          blocks,
		Meta:            graph.Meta,
	}, nil
}

// lowerNode maps one graph node onto its block. A nil block with issues means
// lowering this node was aborted; other nodes still get their pass.
func (c *Compiler) lowerNode(graph *models.Graph, node *models.Node) (ir.Block, []validation.Issue) {
	if _, known := c.registry.Lookup(node.Type); !known {
		// Already flagged by the structural checks.
		return nil, nil
	}

	switch node.Type {
	case registry.TypeStart:
		next, issue := c.nextTarget(graph, node)
		if issue != nil {
			return nil, []validation.Issue{*issue}
		}

		return &ir.StartBlock{SourceNodeID: node.ID, Next: next}, nil

	case registry.TypeEnd:
		return &ir.EndBlock{
			SourceNodeID: node.ID,
			Outcome:      ir.Outcome(stringProp(node.Data.Config, "outcome")),
		}, nil

	case registry.TypeConditional:
		return c.lowerConditional(graph, node)

	default:
		return c.lowerAction(graph, node)
	}
}

func (c *Compiler) lowerConditional(graph *models.Graph, node *models.Node) (ir.Block, []validation.Issue) {
	issues := make([]validation.Issue, 0)

	whenTrue, branchIssues := c.branchTarget(graph, node, registry.PortTrue)
	issues = append(issues, branchIssues...)

	whenFalse, branchIssues := c.branchTarget(graph, node, registry.PortFalse)
	issues = append(issues, branchIssues...)

	condition, issue := c.conditionFor(node)
	if issue != nil {
		issues = append(issues, *issue)
	}

	if len(issues) > 0 {
		return nil, issues
	}

	return &ir.BranchBlock{
		SourceNodeID: node.ID,
		Condition:    condition,
		WhenTrue:     whenTrue,
		WhenFalse:    whenFalse,
	}, nil
}

func (c *Compiler) conditionFor(node *models.Node) (ir.Condition, *validation.Issue) {
	config := node.Data.Config
	selector := stringProp(config, "selector")

	switch operator := stringProp(config, "operator"); operator {
	case "exists":
		return ir.Exists{Selector: selector}, nil
	case "textIncludes":
		value := stringProp(config, "value")
		if value == "" {
			return nil, &validation.Issue{
				Type:    validation.IssueInvalidProps,
				Message: `operator "textIncludes" requires a value`,
				NodeID:  node.ID,
			}
		}

		return ir.TextIncludes{Selector: selector, Value: value}, nil
	default:
		return nil, &validation.Issue{
			Type:    validation.IssueInvalidProps,
			Message: fmt.Sprintf("unknown conditional operator %q", operator),
			NodeID:  node.ID,
		}
	}
}

func (c *Compiler) lowerAction(graph *models.Graph, node *models.Node) (ir.Block, []validation.Issue) {
	op, issue := c.actionFor(node)
	if issue != nil {
		return nil, []validation.Issue{*issue}
	}

	next, nextIssue := c.nextTarget(graph, node)
	if nextIssue != nil {
		return nil, []validation.Issue{*nextIssue}
	}

	return &ir.ActionBlock{SourceNodeID: node.ID, Op: op, Next: next}, nil
}

func (c *Compiler) actionFor(node *models.Node) (ir.Action, *validation.Issue) {
	config := node.Data.Config

	switch node.Type {
	case registry.TypeOpenPage:
		return ir.OpenPage{URL: stringProp(config, "url")}, nil

	case registry.TypeClick:
		return ir.Click{Selector: stringProp(config, "selector")}, nil

	case registry.TypeTypeText:
		return ir.TypeText{
			Selector: stringProp(config, "selector"),
			Text:     stringProp(config, "text"),
		}, nil

	case registry.TypeWait:
		return c.waitActionFor(node)

	case registry.TypeSelectOption:
		return c.selectActionFor(node)

	default:
		// Registered in the catalog but missing from the lowering switch.
		return nil, &validation.Issue{
			Type:    validation.IssueUnknownType,
			Message: fmt.Sprintf("node type %q has no lowering", node.Type),
			NodeID:  node.ID,
		}
	}
}

const defaultWaitTimeoutMs = 30000

func (c *Compiler) waitActionFor(node *models.Node) (ir.Action, *validation.Issue) {
	config := node.Data.Config

	switch mode := stringProp(config, "mode"); mode {
	case "duration":
		seconds, ok := floatProp(config, "seconds")
		if !ok || seconds <= 0 {
			return nil, invalidProps(node, `wait mode "duration" requires positive seconds`)
		}

		return ir.WaitDuration{Seconds: seconds}, nil

	case "selector":
		selector := stringProp(config, "selector")
		if selector == "" {
			return nil, invalidProps(node, `wait mode "selector" requires a selector`)
		}

		return ir.WaitSelector{Selector: selector, TimeoutMs: timeoutProp(config)}, nil

	case "newTab":
		return ir.WaitNewTab{TimeoutMs: timeoutProp(config)}, nil

	default:
		return nil, invalidProps(node, fmt.Sprintf("unknown wait mode %q", mode))
	}
}

func (c *Compiler) selectActionFor(node *models.Node) (ir.Action, *validation.Issue) {
	config := node.Data.Config
	selector := stringProp(config, "selector")

	switch strategy := stringProp(config, "strategy"); strategy {
	case "text":
		text := stringProp(config, "text")
		if text == "" {
			return nil, invalidProps(node, `select strategy "text" requires a text`)
		}

		return ir.SelectByText{Selector: selector, Text: text}, nil

	case "value":
		value := stringProp(config, "value")
		if value == "" {
			return nil, invalidProps(node, `select strategy "value" requires a value`)
		}

		return ir.SelectByValue{Selector: selector, Value: value}, nil

	case "index":
		index, ok := intProp(config, "index")
		if !ok || index < 0 {
			return nil, invalidProps(node, `select strategy "index" requires a non-negative index`)
		}

		return ir.SelectByIndex{Selector: selector, Index: index}, nil

	default:
		return nil, invalidProps(node, fmt.Sprintf("unknown select strategy %q", strategy))
	}
}

// nextTarget resolves the single outgoing edge of a node's next port. With
// more than one edge the first in graph order wins; the editor prevents this
// from happening in practice.
func (c *Compiler) nextTarget(graph *models.Graph, node *models.Node) (string, *validation.Issue) {
	for _, edge := range graph.OutgoingEdges(node.ID) {
		if edge.SourceHandle == registry.PortNext {
			return ir.BlockIDFor(edge.Target), nil
		}
	}

	return "", &validation.Issue{
		Type:    validation.IssueMissingNext,
		Message: fmt.Sprintf("node %q has no outgoing %q edge", node.ID, registry.PortNext),
		NodeID:  node.ID,
	}
}

func (c *Compiler) branchTarget(graph *models.Graph, node *models.Node, port string) (string, []validation.Issue) {
	targets := make([]string, 0, 1)

	for _, edge := range graph.OutgoingEdges(node.ID) {
		if edge.SourceHandle == port {
			targets = append(targets, edge.Target)
		}
	}

	switch len(targets) {
	case 1:
		return ir.BlockIDFor(targets[0]), nil
	case 0:
		return "", []validation.Issue{{
			Type:    validation.IssueMissingBranch,
			Message: fmt.Sprintf("conditional node %q has no outgoing %q edge", node.ID, port),
			NodeID:  node.ID,
		}}
	default:
		return "", []validation.Issue{{
			Type:    validation.IssueDuplicateBranch,
			Message: fmt.Sprintf("conditional node %q has %d outgoing %q edges, want exactly one", node.ID, len(targets), port),
			NodeID:  node.ID,
		}}
	}
}

func invalidProps(node *models.Node, message string) *validation.Issue {
	return &validation.Issue{
		Type:    validation.IssueInvalidProps,
		Message: message,
		NodeID:  node.ID,
	}
}

func stringProp(config map[string]any, key string) string {
	value, _ := config[key].(string)

	return value
}

func floatProp(config map[string]any, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func intProp(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func timeoutProp(config map[string]any) int {
	if timeout, ok := intProp(config, "timeoutMs"); ok && timeout > 0 {
		return timeout
	}

	return defaultWaitTimeoutMs
}
