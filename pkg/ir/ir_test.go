package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockIDFor(t *testing.T) {
	assert.Equal(t, "blk:search-form", BlockIDFor("search-form"))
}

func TestProgramRoundTrip(t *testing.T) {
	program := &Program{
		IRVersion:       Version,
		RegistryVersion: "core/v1",
		EntryBlockID:    "blk:start",
		Blocks: map[string]Block{
			"blk:start": &StartBlock{SourceNodeID: "start", Next: "blk:open"},
			"blk:open": &ActionBlock{
				SourceNodeID: "open",
				Op:           OpenPage{URL: "https://plates.springfield.gov/search"},
				Next:         "blk:branch",
			},
			"blk:branch": &BranchBlock{
				SourceNodeID: "branch",
				Condition:    TextIncludes{Selector: ".result", Value: "is available"},
				WhenTrue:     "blk:yes",
				WhenFalse:    "blk:no",
			},
			"blk:yes": &EndBlock{SourceNodeID: "yes", Outcome: OutcomeAvailable},
			"blk:no":  &EndBlock{SourceNodeID: "no", Outcome: OutcomeUnavailable},
		},
		Meta: map[string]any{"name": "springfield search"},
	}

	data, err := json.Marshal(program)
	require.NoError(t, err)

	var decoded Program
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, program, &decoded)
}

func TestBlockKindDiscriminator(t *testing.T) {
	data, err := MarshalBlock(&ActionBlock{
		SourceNodeID: "click",
		Op:           Click{Selector: "#submit"},
		Next:         "blk:end",
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "action", fields["kind"])

	block, err := UnmarshalBlock(data)
	require.NoError(t, err)

	action, ok := block.(*ActionBlock)
	require.True(t, ok)
	assert.Equal(t, Click{Selector: "#submit"}, action.Op)
	assert.Equal(t, "click", action.SourceNode())
}

func TestUnmarshalBlockUnknownKind(t *testing.T) {
	_, err := UnmarshalBlock([]byte(`{"kind": "goto"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown block kind")
}

func TestUnmarshalActionUnknownType(t *testing.T) {
	_, err := UnmarshalAction([]byte(`{"type": "screenshot"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action type")
}

func TestUnmarshalActionYieldsValues(t *testing.T) {
	raw, err := MarshalAction(SelectByIndex{Selector: "#plate-type", Index: 2})
	require.NoError(t, err)

	decoded, err := UnmarshalAction(raw)
	require.NoError(t, err)

	// value form, so a type switch on the concrete type works
	assert.Equal(t, SelectByIndex{Selector: "#plate-type", Index: 2}, decoded)
}

func TestUnmarshalConditionUnknownOp(t *testing.T) {
	_, err := UnmarshalCondition([]byte(`{"op": "regexMatch"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown condition op")
}

func TestMarshalNilActionFails(t *testing.T) {
	_, err := MarshalAction(nil)
	assert.Error(t, err)

	_, err = MarshalCondition(nil)
	assert.Error(t, err)
}
