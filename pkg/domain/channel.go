package domain

import "time"

// Channel is the root aggregate: one diagram per signal channel.
type Channel struct {
	ID        string    `json:"id" yaml:"id"`
	SignalID  string    `json:"signal,omitempty" yaml:"signal,omitempty"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// Node returns the node with the given id.
func (c *Channel) Node(id string) (Node, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with the given id.
func (c *Channel) Edge(id string) (Edge, bool) {
	for _, e := range c.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// NodeIndex maps node ids to nodes.
func (c *Channel) NodeIndex() map[string]Node {
	idx := make(map[string]Node, len(c.Nodes))
	for _, n := range c.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	out := *c
	out.Nodes = make([]Node, len(c.Nodes))
	for i, n := range c.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Edges = make([]Edge, len(c.Edges))
	for i, e := range c.Edges {
		out.Edges[i] = e.Clone()
	}
	return &out
}
