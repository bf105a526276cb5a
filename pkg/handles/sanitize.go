package handles

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/topograph/pkg/domain"
)

type rawPort struct {
	id        string
	typ       domain.HandleType
	side      domain.Side
	offset    float64
	hasOffset bool
}

// Sanitize turns a loose declared-port list into canonical ports.
//
// Entries may be bare id strings, domain.Port values or JSON-shaped maps
// ({"id", "type", "position", "offset"}). Duplicates keep their first
// occurrence, missing direction and side are inferred from the id, and an
// entry whose id cannot be parsed survives only when it spells out both its
// type and side (it then takes the next free index on that side). Anything
// else is dropped. Offsets that are missing or not positive are laid out
// evenly per side. The result is capped at MaxHandles; when nothing survives
// fallback is returned.
func Sanitize(list []any, fallback []domain.Port) []domain.Port {
	seen := make(map[string]bool, len(list))
	nextIndex := make(map[Ref]int)
	var ports []domain.Port
	var offsets []rawPort

	for _, item := range list {
		if len(ports) == MaxHandles {
			break
		}
		raw, ok := decodePort(item)
		if !ok {
			continue
		}

		var ref Ref
		if parsed, ok := ParseLoose(raw.id); ok {
			ref = parsed
		} else if raw.typ != "" && raw.side != "" {
			ref = Ref{Type: raw.typ, Side: raw.side}
			slot := Ref{Type: raw.typ, Side: raw.side}
			for {
				nextIndex[slot]++
				ref.Index = nextIndex[slot]
				if !seen[ref.String()] {
					break
				}
			}
		} else {
			continue
		}

		id := ref.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		ports = append(ports, domain.Port{ID: id, Type: ref.Type, Side: ref.Side, Index: ref.Index})
		offsets = append(offsets, raw)
	}

	if len(ports) == 0 {
		if fallback == nil {
			return nil
		}
		return append([]domain.Port(nil), fallback...)
	}

	layout(ports)
	for i, raw := range offsets {
		if raw.hasOffset {
			ports[i].Offset = clampPercent(raw.offset)
		}
	}
	return ports
}

func decodePort(item any) (rawPort, bool) {
	switch v := item.(type) {
	case string:
		return rawPort{id: v}, true
	case domain.Port:
		return rawPort{id: v.ID, typ: v.Type, side: v.Side, offset: v.Offset, hasOffset: v.Offset > 0}, true
	case *domain.Port:
		if v == nil {
			return rawPort{}, false
		}
		return decodePort(*v)
	case map[string]any:
		var raw rawPort
		raw.id = stringField(v, "id", "handleId", "handle")
		if t, ok := ParseType(stringField(v, "type", "direction", "kind")); ok {
			raw.typ = t
		}
		side := domain.Side(strings.ToLower(stringField(v, "position", "side")))
		if side.Valid() {
			raw.side = side
		}
		for _, key := range []string{"offset", "percent", "placement"} {
			if f, ok := toFloat(v[key]); ok {
				raw.offset, raw.hasOffset = f, f > 0
				break
			}
		}
		return raw, true
	}
	return rawPort{}, false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampPercent(f float64) float64 {
	return math.Min(100, f)
}

// layout spreads the ports of each side evenly, targets before sources.
func layout(ports []domain.Port) {
	bySide := make(map[domain.Side][]int)
	for i, p := range ports {
		bySide[p.Side] = append(bySide[p.Side], i)
	}
	for _, idx := range bySide {
		sort.SliceStable(idx, func(a, b int) bool {
			pa, pb := ports[idx[a]], ports[idx[b]]
			if pa.Type != pb.Type {
				return pa.Type == domain.HandleTarget
			}
			return pa.Index < pb.Index
		})
		n := float64(len(idx) + 1)
		for pos, i := range idx {
			ports[i].Offset = math.Round(float64(pos+1)/n*10000) / 100
		}
	}
}
