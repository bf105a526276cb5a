package domain

import "strings"

// Direction is the logical signal direction of an edge.
type Direction string

const (
	// DirectionIda is the forward path ("ida").
	DirectionIda Direction = "ida"
	// DirectionVuelta is the return path ("vuelta").
	DirectionVuelta Direction = "vuelta"
	// DirectionBi carries signal both ways.
	DirectionBi Direction = "bi"
)

var directionAliases = map[string]Direction{
	"ida":           DirectionIda,
	"forward":       DirectionIda,
	"fwd":           DirectionIda,
	"vuelta":        DirectionVuelta,
	"retorno":       DirectionVuelta,
	"return":        DirectionVuelta,
	"reverse":       DirectionVuelta,
	"back":          DirectionVuelta,
	"bi":            DirectionBi,
	"both":          DirectionBi,
	"bidirectional": DirectionBi,
	"bidireccional": DirectionBi,
}

// ParseDirection resolves a loose direction spelling. Unknown or empty values
// report false.
func ParseDirection(raw string) (Direction, bool) {
	d, ok := directionAliases[strings.ToLower(strings.TrimSpace(raw))]
	return d, ok
}

// Reverse reports whether the edge flows back towards its source's side of the chain.
func (d Direction) Reverse() bool {
	return d == DirectionVuelta
}

// EdgeStyle is the visual treatment of an edge.
type EdgeStyle struct {
	Stroke      string  `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty"`
	Animated    bool    `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// EndpointLabels positions the labels drawn next to each end of an edge.
type EndpointLabels struct {
	Source *Position `json:"source,omitempty" yaml:"source,omitempty"`
	Target *Position `json:"target,omitempty" yaml:"target,omitempty"`
}

// EdgeData holds derived and editor-facing attributes of an edge.
type EdgeData struct {
	AutoLabel      bool            `json:"autoLabel,omitempty" yaml:"autoLabel,omitempty"`
	RouterTemplate string          `json:"routerTemplate,omitempty" yaml:"routerTemplate,omitempty"`
	LabelPosition  *Position       `json:"labelPosition,omitempty" yaml:"labelPosition,omitempty"`
	EndpointLabels *EndpointLabels `json:"endpointLabels,omitempty" yaml:"endpointLabels,omitempty"`

	// Tooltip fields are nil when explicitly cleared.
	TooltipTitle *string `json:"tooltipTitle" yaml:"tooltipTitle"`
	Tooltip      *string `json:"tooltip" yaml:"tooltip"`
}

// Edge is a signal link between two nodes.
type Edge struct {
	ID           string    `json:"id" yaml:"id"`
	Source       string    `json:"source" yaml:"source"`
	Target       string    `json:"target" yaml:"target"`
	SourceHandle string    `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string    `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Direction    Direction `json:"direction" yaml:"direction"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	Style        EdgeStyle `json:"style" yaml:"style"`
	Data         EdgeData  `json:"data" yaml:"data"`
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	if e.Data.LabelPosition != nil {
		p := *e.Data.LabelPosition
		out.Data.LabelPosition = &p
	}
	if e.Data.EndpointLabels != nil {
		el := EndpointLabels{}
		if e.Data.EndpointLabels.Source != nil {
			p := *e.Data.EndpointLabels.Source
			el.Source = &p
		}
		if e.Data.EndpointLabels.Target != nil {
			p := *e.Data.EndpointLabels.Target
			el.Target = &p
		}
		out.Data.EndpointLabels = &el
	}
	if e.Data.TooltipTitle != nil {
		s := *e.Data.TooltipTitle
		out.Data.TooltipTitle = &s
	}
	if e.Data.Tooltip != nil {
		s := *e.Data.Tooltip
		out.Data.Tooltip = &s
	}
	return out
}

// Touches reports whether the edge is incident on nodeID.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
