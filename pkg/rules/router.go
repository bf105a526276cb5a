package rules

import (
	"fmt"

	"github.com/aretw0/topograph/pkg/domain"
)

// RouterTemplateSize is the number of edges generated per direction.
const RouterTemplateSize = 5

// TemplateEdgeID returns the id of the n-th (1-based) template edge.
func TemplateEdgeID(routerID string, d domain.Direction, n int) string {
	return fmt.Sprintf("rt-%s-%s-%d", routerID, d, n)
}

// CreateRouterEdges synthesizes the router template: RouterTemplateSize
// forward edges (router output to neighbor input) followed by as many return
// edges (neighbor output to router input). Neighbors and ports are cycled when
// fewer are available. Every edge is auto-labelled and tagged with the router
// id. Without neighbors no edges are generated.
func CreateRouterEdges(router domain.Node, neighbors []domain.Node) []domain.Edge {
	if len(neighbors) == 0 {
		return nil
	}

	nodes := index(append([]domain.Node{router}, neighbors...))
	routerOut := portsOf(router, domain.HandleSource, domain.SideRight)
	routerIn := portsOf(router, domain.HandleTarget, domain.SideLeft)

	neighborIn := make([][]string, len(neighbors))
	neighborOut := make([][]string, len(neighbors))
	for i, n := range neighbors {
		neighborIn[i] = portsOf(n, domain.HandleTarget, domain.SideLeft)
		neighborOut[i] = portsOf(n, domain.HandleSource, domain.SideRight)
	}

	edges := make([]domain.Edge, 0, 2*RouterTemplateSize)
	for _, d := range []domain.Direction{domain.DirectionIda, domain.DirectionVuelta} {
		for i := 0; i < RouterTemplateSize; i++ {
			nb := i % len(neighbors)
			round := i / len(neighbors)
			neighbor := neighbors[nb]

			e := domain.Edge{
				ID:        TemplateEdgeID(router.ID, d, i+1),
				Direction: d,
				Style:     StyleFor(d),
				Data:      domain.EdgeData{AutoLabel: true, RouterTemplate: router.ID},
			}
			if d == domain.DirectionIda {
				e.Source, e.SourceHandle = router.ID, cycle(routerOut, i)
				e.Target, e.TargetHandle = neighbor.ID, cycle(neighborIn[nb], round)
			} else {
				e.Source, e.SourceHandle = neighbor.ID, cycle(neighborOut[nb], round)
				e.Target, e.TargetHandle = router.ID, cycle(routerIn, i)
			}
			edges = append(edges, autoLabel(e, nodes))
		}
	}
	return edges
}

// ResyncRouterEdges replaces the template edges owned by router with a fresh
// template, keeping every other edge in place.
func ResyncRouterEdges(edges []domain.Edge, router domain.Node, neighbors []domain.Node) []domain.Edge {
	out := make([]domain.Edge, 0, len(edges)+2*RouterTemplateSize)
	for _, e := range edges {
		if !IsTemplateEdgeOf(e, router.ID) {
			out = append(out, e.Clone())
		}
	}
	return append(out, CreateRouterEdges(router, neighbors)...)
}

func cycle(ids []string, i int) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[i%len(ids)]
}
