// Package ir defines the compiled, block-addressed form of a workflow graph.
// A Program is fully self-contained and JSON-serializable so it can be
// persisted and shipped across the queue boundary to a worker.
package ir

import (
	"encoding/json"
	"fmt"
)

// Version tags the IR schema. Bump only with a migration story for persisted
// programs.
const Version = "v1"

// blockIDPrefix keeps derived block ids from colliding with raw node ids and
// makes them recognizable in logs.
const blockIDPrefix = "blk:"

// BlockIDFor derives the block id for a graph node. The mapping is
// deterministic so failures trace back to the authored node.
func BlockIDFor(nodeID string) string {
	return blockIDPrefix + nodeID
}

// Outcome is the business result attached to an end block.
type Outcome string

const (
	OutcomeAvailable   Outcome = "available"
	OutcomeUnavailable Outcome = "unavailable"
)

// BlockKind discriminates the block variants.
type BlockKind string

const (
	BlockKindStart  BlockKind = "start"
	BlockKindEnd    BlockKind = "end"
	BlockKindAction BlockKind = "action"
	BlockKindBranch BlockKind = "branch"
)

// Program is a compiled workflow: a flat map of blocks plus the entry point.
type Program struct {
	IRVersion       string           `json:"irVersion"`
	RegistryVersion string           `json:"registryVersion"`
	EntryBlockID    string           `json:"entryBlockId"`
	Blocks          map[string]Block `json:"blocks"`
	Meta            map[string]any   `json:"meta,omitempty"`
}

// Block is the closed set of IR block variants. Each block remembers the
// graph node it was lowered from.
type Block interface {
	Kind() BlockKind
	SourceNode() string
}

// StartBlock is the interpreter's entry point; exactly one per program.
type StartBlock struct {
	SourceNodeID string `json:"sourceNodeId"`
	Next         string `json:"next"`
}

func (b *StartBlock) Kind() BlockKind    { return BlockKindStart }
func (b *StartBlock) SourceNode() string { return b.SourceNodeID }

// EndBlock halts interpretation, optionally classifying the run.
type EndBlock struct {
	SourceNodeID string  `json:"sourceNodeId"`
	Outcome      Outcome `json:"outcome,omitempty"`
}

func (b *EndBlock) Kind() BlockKind    { return BlockKindEnd }
func (b *EndBlock) SourceNode() string { return b.SourceNodeID }

// ActionBlock performs one browser operation then continues unconditionally.
type ActionBlock struct {
	SourceNodeID string
	Op           Action
	Next         string
}

func (b *ActionBlock) Kind() BlockKind    { return BlockKindAction }
func (b *ActionBlock) SourceNode() string { return b.SourceNodeID }

// BranchBlock evaluates a condition against the live page and continues down
// exactly one of its two successors.
type BranchBlock struct {
	SourceNodeID string
	Condition    Condition
	WhenTrue     string
	WhenFalse    string
}

func (b *BranchBlock) Kind() BlockKind    { return BlockKindBranch }
func (b *BranchBlock) SourceNode() string { return b.SourceNodeID }

type actionBlockJSON struct {
	SourceNodeID string          `json:"sourceNodeId"`
	Op           json.RawMessage `json:"op"`
	Next         string          `json:"next"`
}

func (b *ActionBlock) MarshalJSON() ([]byte, error) {
	op, err := MarshalAction(b.Op)
	if err != nil {
		return nil, err
	}

	return json.Marshal(actionBlockJSON{
		SourceNodeID: b.SourceNodeID,
		Op:           op,
		Next:         b.Next,
	})
}

func (b *ActionBlock) UnmarshalJSON(data []byte) error {
	var raw actionBlockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	op, err := UnmarshalAction(raw.Op)
	if err != nil {
		return err
	}

	b.SourceNodeID = raw.SourceNodeID
	b.Op = op
	b.Next = raw.Next

	return nil
}

type branchBlockJSON struct {
	SourceNodeID string          `json:"sourceNodeId"`
	Condition    json.RawMessage `json:"condition"`
	WhenTrue     string          `json:"whenTrue"`
	WhenFalse    string          `json:"whenFalse"`
}

func (b *BranchBlock) MarshalJSON() ([]byte, error) {
	cond, err := MarshalCondition(b.Condition)
	if err != nil {
		return nil, err
	}

	return json.Marshal(branchBlockJSON{
		SourceNodeID: b.SourceNodeID,
		Condition:    cond,
		WhenTrue:     b.WhenTrue,
		WhenFalse:    b.WhenFalse,
	})
}

func (b *BranchBlock) UnmarshalJSON(data []byte) error {
	var raw branchBlockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cond, err := UnmarshalCondition(raw.Condition)
	if err != nil {
		return err
	}

	b.SourceNodeID = raw.SourceNodeID
	b.Condition = cond
	b.WhenTrue = raw.WhenTrue
	b.WhenFalse = raw.WhenFalse

	return nil
}

// MarshalBlock encodes a block with its "kind" discriminator.
func MarshalBlock(b Block) ([]byte, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	kind, err := json.Marshal(b.Kind())
	if err != nil {
		return nil, err
	}

	fields["kind"] = kind

	return json.Marshal(fields)
}

// UnmarshalBlock decodes a block by its "kind" discriminator.
func UnmarshalBlock(data []byte) (Block, error) {
	var envelope struct {
		Kind BlockKind `json:"kind"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	var block Block

	switch envelope.Kind {
	case BlockKindStart:
		block = &StartBlock{}
	case BlockKindEnd:
		block = &EndBlock{}
	case BlockKindAction:
		block = &ActionBlock{}
	case BlockKindBranch:
		block = &BranchBlock{}
	default:
		return nil, fmt.Errorf("unknown block kind %q", envelope.Kind)
	}

	if err := json.Unmarshal(data, block); err != nil {
		return nil, err
	}

	return block, nil
}

type programJSON struct {
	IRVersion       string                     `json:"irVersion"`
	RegistryVersion string                     `json:"registryVersion"`
	EntryBlockID    string                     `json:"entryBlockId"`
	Blocks          map[string]json.RawMessage `json:"blocks"`
	Meta            map[string]any             `json:"meta,omitempty"`
}

func (p *Program) MarshalJSON() ([]byte, error) {
	blocks := make(map[string]json.RawMessage, len(p.Blocks))

	for id, block := range p.Blocks {
		raw, err := MarshalBlock(block)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", id, err)
		}

		blocks[id] = raw
	}

	return json.Marshal(programJSON{
		IRVersion:       p.IRVersion,
		RegistryVersion: p.RegistryVersion,
		EntryBlockID:    p.EntryBlockID,
		Blocks:          blocks,
		Meta:            p.Meta,
	})
}

func (p *Program) UnmarshalJSON(data []byte) error {
	var raw programJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	blocks := make(map[string]Block, len(raw.Blocks))

	for id, rawBlock := range raw.Blocks {
		block, err := UnmarshalBlock(rawBlock)
		if err != nil {
			return fmt.Errorf("block %s: %w", id, err)
		}

		blocks[id] = block
	}

	p.IRVersion = raw.IRVersion
	p.RegistryVersion = raw.RegistryVersion
	p.EntryBlockID = raw.EntryBlockID
	p.Blocks = blocks
	p.Meta = raw.Meta

	return nil
}
