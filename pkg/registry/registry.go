// Package registry provides the immutable catalog of workflow node types.
// Validator, compiler and the authoring UI all resolve node metadata through
// the same Registry instance, so a node type is defined in exactly one place.
package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Port is a named connection point on a node type. Edges attach to ports by
// name (the graph payload calls them handles).
type Port struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// NodeType describes one entry of the node catalog: its ports and the JSON
// schema its configuration payload must satisfy.
type NodeType struct {
	Type         string         `json:"type"`
	Label        string         `json:"label"`
	Category     string         `json:"category"`
	Inputs       []Port         `json:"inputs"`
	Outputs      []Port         `json:"outputs"`
	ConfigSchema map[string]any `json:"configSchema"`
}

// HasInput reports whether the node type declares the named input port.
func (t NodeType) HasInput(name string) bool {
	for _, p := range t.Inputs {
		if p.Name == name {
			return true
		}
	}

	return false
}

// HasOutput reports whether the node type declares the named output port.
func (t NodeType) HasOutput(name string) bool {
	for _, p := range t.Outputs {
		if p.Name == name {
			return true
		}
	}

	return false
}

// Registry is an immutable node-type lookup table. Construct one per registry
// version and pass it by reference; there is no process-global registry.
type Registry struct {
	version string
	types   map[string]NodeType
	order   []string
}

// New builds a registry from an ordered list of node types. Duplicate type
// tags are a programming error.
func New(version string, types []NodeType) (*Registry, error) {
	r := &Registry{
		version: version,
		types:   make(map[string]NodeType, len(types)),
		order:   make([]string, 0, len(types)),
	}

	for _, t := range types {
		if _, exists := r.types[t.Type]; exists {
			return nil, fmt.Errorf("node type %q registered twice", t.Type)
		}

		r.types[t.Type] = t
		r.order = append(r.order, t.Type)
	}

	return r, nil
}

// Version returns the registry version tag carried by graphs and programs.
func (r *Registry) Version() string {
	return r.version
}

// Lookup resolves a node type by its tag.
func (r *Registry) Lookup(nodeType string) (NodeType, bool) {
	t, ok := r.types[nodeType]

	return t, ok
}

// Types returns all node types in registration order, for palette rendering.
func (r *Registry) Types() []NodeType {
	types := make([]NodeType, 0, len(r.order))
	for _, tag := range r.order {
		types = append(types, r.types[tag])
	}

	return types
}

// ValidateConfig checks a node's configuration payload against the type's
// schema. A nil config is validated as an empty object.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	t, ok := r.types[nodeType]
	if !ok {
		return fmt.Errorf("node type %q not registered", nodeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(t.ConfigSchema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("config does not match schema: %s", strings.Join(errs, "; "))
	}

	return nil
}
