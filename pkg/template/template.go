// Package template renders check variables (plate text, city fields) into
// workflow node configurations before compilation.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/platewatch/platewatch/pkg/models"
)

// Variables is the data available to node config templates.
type Variables struct {
	PlateText string
	CityID    string
	CityName  string
}

func (v Variables) asMap() map[string]any {
	return map[string]any{
		"plate": v.PlateText,
		"city": map[string]any{
			"id":   v.CityID,
			"name": v.CityName,
		},
	}
}

// NeedsTemplating checks if a string contains template expressions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Render evaluates one template string against the variables.
func Render(input string, vars Variables) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	tmpl, err := template.New("config").Option("missingkey=error").Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", input, err)
	}

	var buf bytes.Buffer

	if err := tmpl.Execute(&buf, vars.asMap()); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", input, err)
	}

	return buf.String(), nil
}

// RenderGraph returns a copy of the graph with every string config value
// rendered. The input graph is not modified.
func RenderGraph(graph *models.Graph, vars Variables) (*models.Graph, error) {
	rendered := &models.Graph{
		RegistryVersion: graph.RegistryVersion,
		Nodes:           make([]*models.Node, 0, len(graph.Nodes)),
		Edges:           graph.Edges,
		Meta:            graph.Meta,
	}

	for _, node := range graph.Nodes {
		copied := *node
		copied.Data.Config = make(map[string]any, len(node.Data.Config))

		for key, value := range node.Data.Config {
			str, ok := value.(string)
			if !ok {
				copied.Data.Config[key] = value

				continue
			}

			out, err := Render(str, vars)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", node.ID, err)
			}

			copied.Data.Config[key] = out
		}

		rendered.Nodes = append(rendered.Nodes, &copied)
	}

	return rendered, nil
}
