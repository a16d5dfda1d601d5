package registry

// CoreVersion tags the built-in node catalog. Persisted graphs pin this tag
// so they can be validated against the matching catalog snapshot later.
const CoreVersion = "core/v1"

// Node type tags of the built-in catalog.
const (
	TypeStart        = "core.start"
	TypeEnd          = "core.end"
	TypeOpenPage     = "core.openPage"
	TypeClick        = "core.click"
	TypeTypeText     = "core.typeText"
	TypeConditional  = "core.conditional"
	TypeWait         = "core.wait"
	TypeSelectOption = "core.selectOption"
)

// Port names shared by the built-in node types.
const (
	PortIn    = "in"
	PortNext  = "next"
	PortTrue  = "true"
	PortFalse = "false"
)

// NewCore returns the built-in node catalog.
func NewCore() *Registry {
	r, err := New(CoreVersion, coreTypes())
	if err != nil {
		// The core catalog is static; a duplicate tag here is a bug.
		panic(err)
	}

	return r
}

func coreTypes() []NodeType {
	in := []Port{{Name: PortIn, Label: "In"}}
	next := []Port{{Name: PortNext, Label: "Next"}}

	selector := map[string]any{"type": "string", "minLength": 1}

	return []NodeType{
		{
			Type:     TypeStart,
			Label:    "Start",
			Category: "control",
			Outputs:  next,
			ConfigSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeEnd,
			Label:    "End",
			Category: "control",
			Inputs:   in,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"outcome": map[string]any{
						"type": "string",
						"enum": []any{"available", "unavailable"},
					},
				},
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeOpenPage,
			Label:    "Open Page",
			Category: "browser",
			Inputs:   in,
			Outputs:  next,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "minLength": 1, "format": "uri"},
				},
				"required":             []any{"url"},
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeClick,
			Label:    "Click",
			Category: "browser",
			Inputs:   in,
			Outputs:  next,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"selector": selector,
				},
				"required":             []any{"selector"},
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeTypeText,
			Label:    "Type Text",
			Category: "browser",
			Inputs:   in,
			Outputs:  next,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"selector": selector,
					"text":     map[string]any{"type": "string"},
				},
				"required":             []any{"selector", "text"},
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeConditional,
			Label:    "Conditional",
			Category: "control",
			Inputs:   in,
			Outputs: []Port{
				{Name: PortTrue, Label: "True"},
				{Name: PortFalse, Label: "False"},
			},
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"operator": map[string]any{
						"type": "string",
						"enum": []any{"exists", "textIncludes"},
					},
					"selector": selector,
					"value":    map[string]any{"type": "string"},
				},
				"required":             []any{"operator", "selector"},
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeWait,
			Label:    "Wait",
			Category: "browser",
			Inputs:   in,
			Outputs:  next,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mode": map[string]any{
						"type": "string",
						"enum": []any{"duration", "selector", "newTab"},
					},
					"seconds":   map[string]any{"type": "number", "exclusiveMinimum": 0},
					"selector":  selector,
					"timeoutMs": map[string]any{"type": "integer", "minimum": 1},
				},
				"required":             []any{"mode"},
				"additionalProperties": false,
			},
		},
		{
			Type:     TypeSelectOption,
			Label:    "Select Option",
			Category: "browser",
			Inputs:   in,
			Outputs:  next,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"strategy": map[string]any{
						"type": "string",
						"enum": []any{"text", "value", "index"},
					},
					"selector": selector,
					"text":     map[string]any{"type": "string"},
					"value":    map[string]any{"type": "string"},
					"index":    map[string]any{"type": "integer", "minimum": 0},
				},
				"required":             []any{"strategy", "selector"},
				"additionalProperties": false,
			},
		},
	}
}
