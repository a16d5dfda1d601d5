// Package validation checks workflow graphs for structural and semantic
// problems without mutating them. The compiler runs the same checks through
// this package, so validator and compiler can never disagree on what a broken
// graph looks like.
package validation

import "fmt"

// IssueType classifies a validation or compilation problem.
type IssueType string

const (
	IssueGraphParse       IssueType = "graph.parse"
	IssueStartCount       IssueType = "graph.start.count"
	IssueEndCount         IssueType = "graph.end.count"
	IssueUnreachable      IssueType = "graph.unreachable"
	IssueUnknownType      IssueType = "node.unknownType"
	IssueInvalidProps     IssueType = "node.props.invalid"
	IssueMissingNode      IssueType = "edge.missingNode"
	IssueInvalidHandle    IssueType = "edge.invalidHandle"
	IssueMissingNext      IssueType = "node.missingNext"
	IssueMissingBranch    IssueType = "node.missingBranch"
	IssueDuplicateBranch  IssueType = "node.duplicateBranchEdge"
)

// Issue is one node- or edge-addressable problem found in a graph. NodeID and
// EdgeID let the authoring UI highlight the offending element.
type Issue struct {
	Type    IssueType `json:"type"`
	Message string    `json:"message"`
	NodeID  string    `json:"nodeId,omitempty"`
	EdgeID  string    `json:"edgeId,omitempty"`
}

func (i Issue) String() string {
	switch {
	case i.NodeID != "":
		return fmt.Sprintf("%s (node %s): %s", i.Type, i.NodeID, i.Message)
	case i.EdgeID != "":
		return fmt.Sprintf("%s (edge %s): %s", i.Type, i.EdgeID, i.Message)
	default:
		return fmt.Sprintf("%s: %s", i.Type, i.Message)
	}
}
