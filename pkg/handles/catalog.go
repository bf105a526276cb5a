package handles

import (
	"github.com/aretw0/topograph/pkg/domain"
)

const (
	// RouterPortsPerGroup is the number of ports in each router port group.
	RouterPortsPerGroup = 5
	// MaxSlotsPerSide caps the configurable slot count of one side.
	MaxSlotsPerSide = 16
)

// DefaultSlots is the layout of Default and Custom nodes without a slot config.
var DefaultSlots = domain.SlotConfig{
	Top:    domain.SideSlots{In: 1},
	Right:  domain.SideSlots{Out: 1},
	Bottom: domain.SideSlots{Out: 1},
	Left:   domain.SideSlots{In: 1},
}

// Catalog returns the fixed port set of a node kind. slots only affects
// Default and Custom nodes; nil selects DefaultSlots.
func Catalog(kind domain.NodeKind, slots *domain.SlotConfig) []domain.Port {
	var refs []Ref
	switch kind {
	case domain.KindRouter:
		refs = append(refs, series(domain.HandleSource, domain.SideRight, RouterPortsPerGroup)...)
		refs = append(refs, series(domain.HandleTarget, domain.SideBottom, RouterPortsPerGroup)...)
		refs = append(refs, series(domain.HandleSource, domain.SideBottom, RouterPortsPerGroup)...)
		refs = append(refs, series(domain.HandleTarget, domain.SideLeft, RouterPortsPerGroup)...)
	case domain.KindSatellite:
		refs = series(domain.HandleSource, domain.SideRight, 1)
	case domain.KindIrd:
		refs = series(domain.HandleTarget, domain.SideLeft, 1)
	case domain.KindSwitch:
		refs = append(refs, series(domain.HandleTarget, domain.SideTop, 1)...)
		refs = append(refs, series(domain.HandleSource, domain.SideTop, 1)...)
		refs = append(refs, series(domain.HandleTarget, domain.SideBottom, 1)...)
		refs = append(refs, series(domain.HandleSource, domain.SideBottom, 1)...)
	default:
		cfg := DefaultSlots
		if slots != nil {
			cfg = *slots
		}
		for _, side := range domain.Sides {
			s := cfg.ForSide(side)
			refs = append(refs, series(domain.HandleTarget, side, clampSlots(s.In))...)
			refs = append(refs, series(domain.HandleSource, side, clampSlots(s.Out))...)
		}
	}

	ports := make([]domain.Port, len(refs))
	for i, r := range refs {
		ports[i] = domain.Port{ID: r.String(), Type: r.Type, Side: r.Side, Index: r.Index}
	}
	layout(ports)
	return ports
}

// PortsFor returns the candidate ports of a node: its declared handles when it
// has any, the catalog of its kind otherwise.
func PortsFor(n domain.Node) []domain.Port {
	if len(n.Handles) > 0 {
		return n.Handles
	}
	return Catalog(domain.Classify(n), n.Data.Slots)
}

// Declares reports whether n enforces a declared port set.
func Declares(n domain.Node) bool {
	return len(n.Handles) > 0
}

func series(t domain.HandleType, side domain.Side, n int) []Ref {
	refs := make([]Ref, 0, n)
	for i := 1; i <= n; i++ {
		refs = append(refs, Ref{Type: t, Side: side, Index: i})
	}
	return refs
}

func clampSlots(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxSlotsPerSide:
		return MaxSlotsPerSide
	}
	return n
}
