// Package models defines the core domain models for browser-workflow automation.
package models

// Graph is the user-authored workflow artifact as produced by the visual
// editor. Field names follow the editor's JSON payload (camelCase), not the
// persistence conventions of the rest of the domain.
type Graph struct {
	RegistryVersion string         `json:"registryVersion"`
	Nodes           []*Node        `json:"nodes"`
	Edges           []*Edge        `json:"edges"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// Node is one visual element of a graph. Position is rendering-only and
// ignored by validation and compilation.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeData struct {
	Label  string         `json:"label"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge connects an output handle on the source node to an input handle on the
// target node.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving the given node, in graph order.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, e := range g.Edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}

	return edges
}
