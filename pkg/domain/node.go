package domain

import "strings"

// Coordinate bounds applied to every node and label position.
const (
	MinCoordinate = -1e6
	MaxCoordinate = 1e6

	// MaxLabelLength is measured in runes.
	MaxLabelLength = 200
)

// Position is a point on the diagram canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// SideSlots is the number of input and output ports on one side of a node.
type SideSlots struct {
	In  int `json:"in,omitempty" yaml:"in,omitempty"`
	Out int `json:"out,omitempty" yaml:"out,omitempty"`
}

// SlotConfig configures the port layout of Default and Custom nodes.
type SlotConfig struct {
	Top    SideSlots `json:"top" yaml:"top"`
	Right  SideSlots `json:"right" yaml:"right"`
	Bottom SideSlots `json:"bottom" yaml:"bottom"`
	Left   SideSlots `json:"left" yaml:"left"`
}

// ForSide returns the slot counts configured for a side.
func (c SlotConfig) ForSide(side Side) SideSlots {
	switch side {
	case SideTop:
		return c.Top
	case SideRight:
		return c.Right
	case SideBottom:
		return c.Bottom
	case SideLeft:
		return c.Left
	}
	return SideSlots{}
}

// NodeData holds the editor-facing attributes of a node.
type NodeData struct {
	Label         string      `json:"label" yaml:"label"`
	LabelPosition *Position   `json:"labelPosition,omitempty" yaml:"labelPosition,omitempty"`
	Slots         *SlotConfig `json:"slots,omitempty" yaml:"slots,omitempty"`
}

// Node is a device placed on the diagram.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"` // raw editor type, see Classify
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`

	// Handles is the declared port set. An empty set puts the node in
	// implicit-port mode, where any handle id is accepted.
	Handles []Port `json:"handles,omitempty" yaml:"handles,omitempty"`
}

// DisplayLabel returns the node label, falling back to its id.
func (n Node) DisplayLabel() string {
	if n.Data.Label != "" {
		return n.Data.Label
	}
	return n.ID
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	if n.Data.LabelPosition != nil {
		p := *n.Data.LabelPosition
		out.Data.LabelPosition = &p
	}
	if n.Data.Slots != nil {
		s := *n.Data.Slots
		out.Data.Slots = &s
	}
	if n.Handles != nil {
		out.Handles = append([]Port(nil), n.Handles...)
	}
	return out
}

// NodeKind is the closed set of node kinds the engine understands.
type NodeKind int

const (
	KindDefault NodeKind = iota
	KindRouter
	KindSatellite
	KindIrd
	KindSwitch
	KindCustom
)

var kindNames = map[NodeKind]string{
	KindDefault:   "default",
	KindRouter:    "router",
	KindSatellite: "satellite",
	KindIrd:       "ird",
	KindSwitch:    "switch",
	KindCustom:    "custom",
}

func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "default"
}

var kindAliases = map[string]NodeKind{
	"router":     KindRouter,
	"enrutador":  KindRouter,
	"satellite":  KindSatellite,
	"satelite":   KindSatellite,
	"sat":        KindSatellite,
	"ird":        KindIrd,
	"receiver":   KindIrd,
	"receptor":   KindIrd,
	"switch":     KindSwitch,
	"custom":     KindCustom,
	"customnode": KindCustom,
	"default":    KindDefault,
}

// Classify maps the free-form editor type of a node onto its NodeKind.
// Unknown types classify as KindDefault.
func Classify(n Node) NodeKind {
	return ClassifyType(n.Type)
}

// ClassifyType is Classify for a bare type string.
func ClassifyType(raw string) NodeKind {
	key := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
	if kind, ok := kindAliases[key]; ok {
		return kind
	}
	return KindDefault
}
