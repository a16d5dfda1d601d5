package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/template"
)

func TestRenderPlainStringPassesThrough(t *testing.T) {
	out, err := template.Render("#plate-input", template.Variables{})
	require.NoError(t, err)
	assert.Equal(t, "#plate-input", out)
}

func TestRenderSubstitutesVariables(t *testing.T) {
	vars := template.Variables{
		PlateText: "WRX 555",
		CityID:    "springfield",
		CityName:  "Springfield",
	}

	out, err := template.Render("{{.plate}}", vars)
	require.NoError(t, err)
	assert.Equal(t, "WRX 555", out)

	out, err = template.Render("https://plates.{{.city.id}}.gov/search", vars)
	require.NoError(t, err)
	assert.Equal(t, "https://plates.springfield.gov/search", out)
}

func TestRenderUnknownVariableFails(t *testing.T) {
	_, err := template.Render("{{.nope}}", template.Variables{})
	assert.Error(t, err)
}

func TestRenderGraphCopiesWithoutMutating(t *testing.T) {
	graph := &models.Graph{
		RegistryVersion: "core/v1",
		Nodes: []*models.Node{
			{
				ID:   "type",
				Type: "core.typeText",
				Data: models.NodeData{Config: map[string]any{
					"selector": "#plate",
					"text":     "{{.plate}}",
					"retries":  float64(3),
				}},
			},
		},
		Edges: []*models.Edge{},
	}

	rendered, err := template.RenderGraph(graph, template.Variables{PlateText: "WRX 555"})
	require.NoError(t, err)

	assert.Equal(t, "WRX 555", rendered.Nodes[0].Data.Config["text"])
	assert.Equal(t, float64(3), rendered.Nodes[0].Data.Config["retries"])

	// original stays untouched
	assert.Equal(t, "{{.plate}}", graph.Nodes[0].Data.Config["text"])
}
