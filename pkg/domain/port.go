package domain

// HandleType is the direction of a port relative to its node.
type HandleType string

const (
	// HandleSource ports emit a signal (edge source end).
	HandleSource HandleType = "source"
	// HandleTarget ports receive a signal (edge target end).
	HandleTarget HandleType = "target"
)

// Valid reports whether t is a known handle type.
func (t HandleType) Valid() bool {
	return t == HandleSource || t == HandleTarget
}

// Side is the node border a port sits on.
type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

// Sides lists every side in canonical order.
var Sides = []Side{SideTop, SideRight, SideBottom, SideLeft}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	switch s {
	case SideTop, SideRight, SideBottom, SideLeft:
		return true
	}
	return false
}

// Opposite returns the facing side.
func (s Side) Opposite() Side {
	switch s {
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return s
}

// Port is a named attachment point on a node.
type Port struct {
	ID    string     `json:"id" yaml:"id"`
	Type  HandleType `json:"type" yaml:"type"`
	Side  Side       `json:"position" yaml:"position"`
	Index int        `json:"index" yaml:"index"`

	// Offset is the placement along the side, as a percentage in [0,100].
	Offset float64 `json:"offset" yaml:"offset"`
}
