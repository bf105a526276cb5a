// Package allocator assigns concrete ports to diagram edges.
//
// Each edge end keeps its requested handle when that handle is valid on the
// node and still free; otherwise the first free port is taken, ranked by the
// side facing the other endpoint, then by the side the edge direction favours,
// then by index. When a node runs out of ports the requested (or first) port
// is reused, so allocation always yields a value. Use Collisions to find those
// shared ports.
package allocator

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
)

// Allocate returns a copy of edges with source and target handles assigned.
// Edges whose endpoints are not among nodes are copied unchanged. Inputs are
// never mutated and the result depends only on the order of edges.
func Allocate(nodes []domain.Node, edges []domain.Edge) []domain.Edge {
	index := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n
	}

	ledger := NewLedger()
	out := make([]domain.Edge, len(edges))
	for i, e := range edges {
		out[i] = AllocateEdge(ledger, index, e)
	}
	return out
}

// AllocateEdge assigns ports to a single edge, recording the claims in ledger.
func AllocateEdge(ledger *Ledger, index map[string]domain.Node, e domain.Edge) domain.Edge {
	e = e.Clone()
	src, okSrc := index[e.Source]
	dst, okDst := index[e.Target]
	if !okSrc || !okDst {
		return e
	}

	srcSide, dstSide := facingSides(src.Position, dst.Position)
	e.SourceHandle = pick(ledger, src, domain.HandleSource, e.SourceHandle,
		rankSides(srcSide, bias(e.Direction, domain.HandleSource)))
	e.TargetHandle = pick(ledger, dst, domain.HandleTarget, e.TargetHandle,
		rankSides(dstSide, bias(e.Direction, domain.HandleTarget)))
	return e
}

// facingSides returns the side of each endpoint that faces the other one.
// Horizontal-dominant vectors use left/right; vertical-dominant vectors and
// ties use top/bottom. Canvas y grows downwards.
func facingSides(src, dst domain.Position) (domain.Side, domain.Side) {
	dx, dy := dst.X-src.X, dst.Y-src.Y
	var side domain.Side
	switch {
	case math.Abs(dx) > math.Abs(dy) && dx > 0:
		side = domain.SideRight
	case math.Abs(dx) > math.Abs(dy):
		side = domain.SideLeft
	case dy >= 0:
		side = domain.SideBottom
	default:
		side = domain.SideTop
	}
	return side, side.Opposite()
}

// bias returns the sides the edge direction favours for one end.
func bias(d domain.Direction, end domain.HandleType) []domain.Side {
	forward := []domain.Side{domain.SideRight, domain.SideBottom}
	backward := []domain.Side{domain.SideLeft, domain.SideTop}
	switch {
	case d == domain.DirectionBi:
		return nil
	case d == domain.DirectionVuelta:
		forward, backward = backward, forward
	}
	if end == domain.HandleSource {
		return forward
	}
	return backward
}

func rankSides(first domain.Side, preferred []domain.Side) map[domain.Side]int {
	rank := make(map[domain.Side]int, len(domain.Sides))
	add := func(s domain.Side) {
		if _, ok := rank[s]; !ok {
			rank[s] = len(rank)
		}
	}
	add(first)
	for _, s := range preferred {
		add(s)
	}
	for _, s := range domain.Sides {
		add(s)
	}
	return rank
}

func pick(ledger *Ledger, n domain.Node, t domain.HandleType, requested string, rank map[domain.Side]int) string {
	var valid string
	if !handles.IsNullLike(requested) {
		if check := handles.Ensure(n, requested, t); check.OK {
			valid = check.HandleID
			if !ledger.Used(n.ID, t, valid) {
				ledger.Claim(n.ID, t, valid)
				return valid
			}
		}
	}

	candidates := candidatesFor(n, t, rank)
	for _, p := range candidates {
		if !ledger.Used(n.ID, t, p.ID) {
			ledger.Claim(n.ID, t, p.ID)
			return p.ID
		}
	}

	fallback := valid
	if fallback == "" && len(candidates) > 0 {
		fallback = candidates[0].ID
	}
	ledger.Claim(n.ID, t, fallback)
	return fallback
}

func candidatesFor(n domain.Node, t domain.HandleType, rank map[domain.Side]int) []domain.Port {
	var out []domain.Port
	for _, p := range handles.PortsFor(n) {
		if p.Type == t {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := rank[out[i].Side], rank[out[j].Side]; ri != rj {
			return ri < rj
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Collision is a port shared by more than one edge.
type Collision struct {
	NodeID   string            `json:"nodeId"`
	Type     domain.HandleType `json:"type"`
	HandleID string            `json:"handleId"`
	EdgeIDs  []string          `json:"edgeIds"`
}

// Collisions lists every (node, direction, port) used by more than one edge,
// ordered by node, direction and port.
func Collisions(edges []domain.Edge) []Collision {
	type key struct {
		node, handle string
		typ          domain.HandleType
	}
	users := make(map[key][]string)
	for _, e := range edges {
		if e.SourceHandle != "" {
			k := key{e.Source, e.SourceHandle, domain.HandleSource}
			users[k] = append(users[k], e.ID)
		}
		if e.TargetHandle != "" {
			k := key{e.Target, e.TargetHandle, domain.HandleTarget}
			users[k] = append(users[k], e.ID)
		}
	}

	var out []Collision
	for k, ids := range users {
		if len(ids) > 1 {
			out = append(out, Collision{NodeID: k.node, Type: k.typ, HandleID: k.handle, EdgeIDs: ids})
		}
	}
	slices.SortFunc(out, func(a, b Collision) int {
		switch {
		case a.NodeID != b.NodeID:
			return strings.Compare(a.NodeID, b.NodeID)
		case a.Type != b.Type:
			return strings.Compare(string(a.Type), string(b.Type))
		}
		return strings.Compare(a.HandleID, b.HandleID)
	})
	return out
}
