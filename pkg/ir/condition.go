package ir

import (
	"encoding/json"
	"fmt"
)

// ConditionOp discriminates the branch predicate variants.
type ConditionOp string

const (
	ConditionExists       ConditionOp = "exists"
	ConditionTextIncludes ConditionOp = "textIncludes"
)

// Condition is the closed set of predicates a branch block can evaluate
// against the live page.
type Condition interface {
	ConditionOp() ConditionOp
}

// Exists is true iff the selector currently matches at least one element.
type Exists struct {
	Selector string `json:"selector"`
}

func (Exists) ConditionOp() ConditionOp { return ConditionExists }

// TextIncludes is true iff the first matched element's text contains Value as
// a case-sensitive substring.
type TextIncludes struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

func (TextIncludes) ConditionOp() ConditionOp { return ConditionTextIncludes }

// MarshalCondition encodes a condition with its "op" discriminator.
func MarshalCondition(c Condition) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil condition")
	}

	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	tag, err := json.Marshal(c.ConditionOp())
	if err != nil {
		return nil, err
	}

	fields["op"] = tag

	return json.Marshal(fields)
}

// UnmarshalCondition decodes a condition by its "op" discriminator.
func UnmarshalCondition(data []byte) (Condition, error) {
	var envelope struct {
		Op ConditionOp `json:"op"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Op {
	case ConditionExists:
		var c Exists
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}

		return c, nil
	case ConditionTextIncludes:
		var c TextIncludes
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}

		return c, nil
	default:
		return nil, fmt.Errorf("unknown condition op %q", envelope.Op)
	}
}
