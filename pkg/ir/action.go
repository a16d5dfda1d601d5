package ir

import (
	"encoding/json"
	"fmt"
)

// ActionType discriminates the browser operation variants.
type ActionType string

const (
	ActionOpenPage      ActionType = "openPage"
	ActionClick         ActionType = "click"
	ActionTypeText      ActionType = "typeText"
	ActionWaitDuration  ActionType = "waitDuration"
	ActionWaitSelector  ActionType = "waitSelector"
	ActionWaitNewTab    ActionType = "waitNewTab"
	ActionSelectByText  ActionType = "selectByText"
	ActionSelectByValue ActionType = "selectByValue"
	ActionSelectByIndex ActionType = "selectByIndex"
)

// Action is the closed set of side-effecting browser operations an action
// block can perform.
type Action interface {
	ActionType() ActionType
}

type OpenPage struct {
	URL string `json:"url"`
}

func (OpenPage) ActionType() ActionType { return ActionOpenPage }

type Click struct {
	Selector string `json:"selector"`
}

func (Click) ActionType() ActionType { return ActionClick }

type TypeText struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

func (TypeText) ActionType() ActionType { return ActionTypeText }

type WaitDuration struct {
	Seconds float64 `json:"seconds"`
}

func (WaitDuration) ActionType() ActionType { return ActionWaitDuration }

type WaitSelector struct {
	Selector  string `json:"selector"`
	TimeoutMs int    `json:"timeoutMs"`
}

func (WaitSelector) ActionType() ActionType { return ActionWaitSelector }

type WaitNewTab struct {
	TimeoutMs int `json:"timeoutMs"`
}

func (WaitNewTab) ActionType() ActionType { return ActionWaitNewTab }

type SelectByText struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

func (SelectByText) ActionType() ActionType { return ActionSelectByText }

type SelectByValue struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

func (SelectByValue) ActionType() ActionType { return ActionSelectByValue }

type SelectByIndex struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

func (SelectByIndex) ActionType() ActionType { return ActionSelectByIndex }

// MarshalAction encodes an action with its "type" discriminator.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil action")
	}

	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	tag, err := json.Marshal(a.ActionType())
	if err != nil {
		return nil, err
	}

	fields["type"] = tag

	return json.Marshal(fields)
}

// UnmarshalAction decodes an action by its "type" discriminator.
func UnmarshalAction(data []byte) (Action, error) {
	var envelope struct {
		Type ActionType `json:"type"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	var dst Action

	switch envelope.Type {
	case ActionOpenPage:
		dst = &OpenPage{}
	case ActionClick:
		dst = &Click{}
	case ActionTypeText:
		dst = &TypeText{}
	case ActionWaitDuration:
		dst = &WaitDuration{}
	case ActionWaitSelector:
		dst = &WaitSelector{}
	case ActionWaitNewTab:
		dst = &WaitNewTab{}
	case ActionSelectByText:
		dst = &SelectByText{}
	case ActionSelectByValue:
		dst = &SelectByValue{}
	case ActionSelectByIndex:
		dst = &SelectByIndex{}
	default:
		return nil, fmt.Errorf("unknown action type %q", envelope.Type)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}

	return deref(dst), nil
}

// deref returns the value form so actions compare and switch by value.
func deref(a Action) Action {
	switch v := a.(type) {
	case *OpenPage:
		return *v
	case *Click:
		return *v
	case *TypeText:
		return *v
	case *WaitDuration:
		return *v
	case *WaitSelector:
		return *v
	case *WaitNewTab:
		return *v
	case *SelectByText:
		return *v
	case *SelectByValue:
		return *v
	case *SelectByIndex:
		return *v
	default:
		return a
	}
}
