package canon

import (
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
)

type rawNode struct {
	ID       any `mapstructure:"id"`
	Type     any `mapstructure:"type"`
	Label    any `mapstructure:"label"`
	Position any `mapstructure:"position"`
	Data     any `mapstructure:"data"`
	Handles  any `mapstructure:"handles"`
}

type rawNodeData struct {
	Label         any `mapstructure:"label"`
	LabelPosition any `mapstructure:"labelPosition"`
	Slots         any `mapstructure:"slots"`
	Handles       any `mapstructure:"handles"`
}

// NormalizeNode canonicalizes an editor node. raw is a JSON-shaped map or a
// domain.Node. Entries without an id report false.
func NormalizeNode(raw any) (domain.Node, bool) {
	m := ToRaw(raw)
	if m == nil {
		return domain.Node{}, false
	}

	var r rawNode
	if err := decode(m, &r); err != nil {
		return domain.Node{}, false
	}
	id := text(r.ID)
	if id == "" {
		return domain.Node{}, false
	}

	var d rawNodeData
	if data := asMap(r.Data); data != nil {
		if err := decode(data, &d); err != nil {
			d = rawNodeData{}
		}
	}

	n := domain.Node{
		ID:       id,
		Type:     text(r.Type),
		Position: position(r.Position),
		Data: domain.NodeData{
			Label:         Truncate(firstText(d.Label, r.Label, id), domain.MaxLabelLength),
			LabelPosition: optionalPosition(d.LabelPosition),
			Slots:         slots(d.Slots),
		},
	}

	declared := r.Handles
	if declared == nil {
		declared = d.Handles
	}
	if items := list(declared); items != nil {
		n.Handles = handles.Sanitize(items, nil)
	}
	return n, true
}

func slots(v any) *domain.SlotConfig {
	m := asMap(v)
	if m == nil {
		return nil
	}
	var cfg domain.SlotConfig
	if err := decode(m, &cfg); err != nil {
		return nil
	}
	for _, side := range []*domain.SideSlots{&cfg.Top, &cfg.Right, &cfg.Bottom, &cfg.Left} {
		side.In = clampSlots(side.In)
		side.Out = clampSlots(side.Out)
	}
	return &cfg
}

func clampSlots(n int) int {
	return max(0, min(handles.MaxSlotsPerSide, n))
}
