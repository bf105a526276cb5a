// Package rules derives edge attributes from the diagram structure.
//
// Key Rules:
//   - Auto labels: edges flagged AutoLabel (or created by a router template) are
//     labelled "IDA <neighbor>", "RETORNO <neighbor>" or "IDA/RETORNO <neighbor>".
//   - Satellite to IRD: such edges always use the satellite output, the IRD
//     input and the forward style.
//   - Router templates: a router gets five forward and five return edges to its
//     neighbors, owned by the router so they can be resynced without touching
//     manual edges.
package rules

import (
	"slices"
	"strings"

	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
)

// Label prefixes.
const (
	PrefixIda     = "IDA"
	PrefixRetorno = "RETORNO"
)

// Edge strokes per direction.
const (
	StrokeIda    = "#16a34a"
	StrokeVuelta = "#dc2626"
	StrokeBi     = "#2563eb"
)

// StyleFor returns the canonical style of a direction.
func StyleFor(d domain.Direction) domain.EdgeStyle {
	switch d {
	case domain.DirectionVuelta:
		return domain.EdgeStyle{Stroke: StrokeVuelta, StrokeWidth: 2}
	case domain.DirectionBi:
		return domain.EdgeStyle{Stroke: StrokeBi, StrokeWidth: 2}
	}
	return domain.EdgeStyle{Stroke: StrokeIda, StrokeWidth: 2}
}

// IsAutoLabelled reports whether e carries a derived label.
func IsAutoLabelled(e domain.Edge) bool {
	return e.Data.AutoLabel || e.Data.RouterTemplate != ""
}

// AutoLabelEdge recomputes the label of an auto-labelled edge. The neighbor is
// the target for forward and bidirectional edges and the source for return
// edges. Edges without the flag are returned unchanged.
func AutoLabelEdge(e domain.Edge, nodes []domain.Node) domain.Edge {
	return autoLabel(e, index(nodes))
}

func autoLabel(e domain.Edge, nodes map[string]domain.Node) domain.Edge {
	if !IsAutoLabelled(e) {
		return e
	}
	e = e.Clone()

	neighbor := e.Target
	prefix := PrefixIda
	switch e.Direction {
	case domain.DirectionVuelta:
		neighbor, prefix = e.Source, PrefixRetorno
	case domain.DirectionBi:
		prefix = PrefixIda + "/" + PrefixRetorno
	}

	name := neighbor
	if n, ok := nodes[neighbor]; ok {
		name = n.DisplayLabel()
	}
	e.Label = canon.Truncate(prefix+" "+name, domain.MaxLabelLength)
	e.Data.LabelPosition = nil
	return e
}

// EnforceSateliteToIrd pins Satellite to IRD edges to the satellite output and
// the IRD input with forward direction and style. It reports whether the rule
// applied.
func EnforceSateliteToIrd(e domain.Edge, nodes []domain.Node) (domain.Edge, bool) {
	return enforce(e, index(nodes))
}

func enforce(e domain.Edge, nodes map[string]domain.Node) (domain.Edge, bool) {
	src, okSrc := nodes[e.Source]
	dst, okDst := nodes[e.Target]
	if !okSrc || !okDst {
		return e, false
	}
	if domain.Classify(src) != domain.KindSatellite || domain.Classify(dst) != domain.KindIrd {
		return e, false
	}

	e = e.Clone()
	if out := portsOf(src, domain.HandleSource); len(out) > 0 {
		e.SourceHandle = out[0]
	}
	if in := portsOf(dst, domain.HandleTarget); len(in) > 0 {
		e.TargetHandle = in[0]
	}
	e.Direction = domain.DirectionIda
	e.Style = StyleFor(domain.DirectionIda)
	return e, true
}

// Apply runs Satellite to IRD enforcement and then auto-labelling over every
// edge of the channel.
func Apply(ch domain.Channel) domain.Channel {
	out := *ch.Clone()
	nodes := index(out.Nodes)
	for i, e := range out.Edges {
		e, _ = enforce(e, nodes)
		out.Edges[i] = autoLabel(e, nodes)
	}
	return out
}

// ApplyEdge is Apply for a single edge.
func ApplyEdge(e domain.Edge, nodes []domain.Node) domain.Edge {
	idx := index(nodes)
	e, _ = enforce(e, idx)
	return autoLabel(e, idx)
}

func index(nodes []domain.Node) map[string]domain.Node {
	idx := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		idx[n.ID] = n
	}
	return idx
}

// portsOf lists the port ids of one direction, optionally favouring sides.
func portsOf(n domain.Node, t domain.HandleType, favour ...domain.Side) []string {
	var first, rest []string
	for _, p := range handles.PortsFor(n) {
		if p.Type != t {
			continue
		}
		if slices.Contains(favour, p.Side) {
			first = append(first, p.ID)
		} else {
			rest = append(rest, p.ID)
		}
	}
	return append(first, rest...)
}

// IsTemplateEdgeOf reports whether e was generated by router's template.
func IsTemplateEdgeOf(e domain.Edge, routerID string) bool {
	return e.Data.RouterTemplate == routerID && strings.TrimSpace(routerID) != ""
}
