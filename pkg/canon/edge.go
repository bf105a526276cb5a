package canon

import (
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
)

type rawEdge struct {
	ID           any `mapstructure:"id"`
	Source       any `mapstructure:"source"`
	Target       any `mapstructure:"target"`
	SourceHandle any `mapstructure:"sourceHandle"`
	TargetHandle any `mapstructure:"targetHandle"`
	Direction    any `mapstructure:"direction"`
	Label        any `mapstructure:"label"`
	Animated     any `mapstructure:"animated"`
	Style        any `mapstructure:"style"`
	Data         any `mapstructure:"data"`
}

type rawEdgeData struct {
	Label          any `mapstructure:"label"`
	Direction      any `mapstructure:"direction"`
	AutoLabel      any `mapstructure:"autoLabel"`
	RouterTemplate any `mapstructure:"routerTemplate"`
	LabelPosition  any `mapstructure:"labelPosition"`
	EndpointLabels any `mapstructure:"endpointLabels"`
	TooltipTitle   any `mapstructure:"tooltipTitle"`
	Tooltip        any `mapstructure:"tooltip"`
}

// NormalizeEdge canonicalizes an editor edge. raw is a JSON-shaped map or a
// domain.Edge. Entries missing an id, source or target report false.
func NormalizeEdge(raw any) (domain.Edge, bool) {
	m := ToRaw(raw)
	if m == nil {
		return domain.Edge{}, false
	}

	var r rawEdge
	if err := decode(m, &r); err != nil {
		return domain.Edge{}, false
	}
	e := domain.Edge{
		ID:     text(r.ID),
		Source: text(r.Source),
		Target: text(r.Target),
	}
	if e.ID == "" || e.Source == "" || e.Target == "" {
		return domain.Edge{}, false
	}

	var d rawEdgeData
	if data := asMap(r.Data); data != nil {
		if err := decode(data, &d); err != nil {
			d = rawEdgeData{}
		}
	}

	e.SourceHandle = Handle(r.SourceHandle)
	e.TargetHandle = Handle(r.TargetHandle)
	e.Direction = direction(r.Direction, d.Direction)
	e.Label = Truncate(firstText(r.Label, d.Label), domain.MaxLabelLength)
	e.Style = style(r.Style, r.Animated)
	e.Data = domain.EdgeData{
		AutoLabel:      flag(d.AutoLabel),
		RouterTemplate: text(d.RouterTemplate),
		LabelPosition:  optionalPosition(d.LabelPosition),
		EndpointLabels: endpointLabels(d.EndpointLabels),
		TooltipTitle:   OptionalText(d.TooltipTitle, MaxTooltipTitleLength),
		Tooltip:        OptionalText(d.Tooltip, MaxTooltipLength),
	}
	return e, true
}

// Handle canonicalizes an edge handle field. Parseable spellings become
// canonical ids, null-like values become "" and anything else is kept
// verbatim for implicit-port nodes.
func Handle(v any) string {
	s := text(v)
	if handles.IsNullLike(s) {
		return ""
	}
	if id, ok := handles.Normalize(s); ok {
		return id
	}
	return s
}

func direction(values ...any) domain.Direction {
	for _, v := range values {
		if s, ok := v.(string); ok {
			if d, ok := domain.ParseDirection(s); ok {
				return d
			}
		}
	}
	return domain.DirectionIda
}

func style(v any, animated any) domain.EdgeStyle {
	m := asMap(v)
	s := domain.EdgeStyle{
		Stroke:   text(m["stroke"]),
		Animated: flag(animated) || flag(m["animated"]),
	}
	if w, ok := Finite(m["strokeWidth"]); ok && w > 0 {
		s.StrokeWidth = w
	}
	return s
}

func endpointLabels(v any) *domain.EndpointLabels {
	m := asMap(v)
	if m == nil {
		return nil
	}
	el := domain.EndpointLabels{
		Source: optionalPosition(m["source"]),
		Target: optionalPosition(m["target"]),
	}
	if el.Source == nil && el.Target == nil {
		return nil
	}
	return &el
}
