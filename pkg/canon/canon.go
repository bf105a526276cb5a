// Package canon normalizes raw editor payloads into canonical diagrams.
//
// Canonical output is idempotent and independent of map key order: nodes and
// edges are sorted by id with a numeric-aware collation, malformed entries are
// dropped one by one and edges that do not resolve to a node are filtered out.
// Every function is pure and safe for concurrent use.
package canon

import (
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/aretw0/topograph/pkg/domain"
)

// Report counts what NormalizeChannelReport discarded or rewrote.
type Report struct {
	Nodes           int `json:"nodes"`
	Edges           int `json:"edges"`
	DroppedNodes    int `json:"droppedNodes"`
	DroppedEdges    int `json:"droppedEdges"`
	DuplicateNodes  int `json:"duplicateNodes"`
	DuplicateEdges  int `json:"duplicateEdges"`
	UnresolvedEdges int `json:"unresolvedEdges"`
	CaseResolved    int `json:"caseResolved"`
}

// Clean reports whether normalization kept every entry unchanged in identity.
func (r Report) Clean() bool {
	return r.DroppedNodes == 0 && r.DroppedEdges == 0 && r.DuplicateNodes == 0 &&
		r.DuplicateEdges == 0 && r.UnresolvedEdges == 0 && r.CaseResolved == 0
}

type rawChannel struct {
	ID        any `mapstructure:"id"`
	SignalID  any `mapstructure:"signal"`
	Signal    any `mapstructure:"signalId"`
	Nodes     any `mapstructure:"nodes"`
	Edges     any `mapstructure:"edges"`
	CreatedAt any `mapstructure:"createdAt"`
	UpdatedAt any `mapstructure:"updatedAt"`
}

// NormalizeChannel canonicalizes a whole diagram. raw is a JSON-shaped map
// (the bulk {nodes, edges} shape, optionally with id and signal) or a
// domain.Channel.
func NormalizeChannel(raw any) domain.Channel {
	ch, _ := NormalizeChannelReport(raw)
	return ch
}

// NormalizeChannelReport is NormalizeChannel that also reports what was dropped.
func NormalizeChannelReport(raw any) (domain.Channel, Report) {
	var report Report
	var r rawChannel
	if m := ToRaw(raw); m != nil {
		if err := decode(m, &r); err != nil {
			r = rawChannel{}
		}
	}

	ch := domain.Channel{
		ID:        text(r.ID),
		SignalID:  firstText(r.SignalID, r.Signal),
		CreatedAt: timestamp(r.CreatedAt),
		UpdatedAt: timestamp(r.UpdatedAt),
	}

	seenNodes := make(map[string]bool)
	for _, item := range list(r.Nodes) {
		n, ok := NormalizeNode(item)
		switch {
		case !ok:
			report.DroppedNodes++
		case seenNodes[n.ID]:
			report.DuplicateNodes++
		default:
			seenNodes[n.ID] = true
			ch.Nodes = append(ch.Nodes, n)
		}
	}

	resolve := newResolver(ch.Nodes)
	seenEdges := make(map[string]bool)
	for _, item := range list(r.Edges) {
		e, ok := NormalizeEdge(item)
		switch {
		case !ok:
			report.DroppedEdges++
			continue
		case seenEdges[e.ID]:
			report.DuplicateEdges++
			continue
		}
		seenEdges[e.ID] = true

		src, srcFolded := resolve(e.Source)
		dst, dstFolded := resolve(e.Target)
		if src == "" || dst == "" {
			report.UnresolvedEdges++
			continue
		}
		if srcFolded || dstFolded {
			report.CaseResolved++
		}
		e.Source, e.Target = src, dst
		ch.Edges = append(ch.Edges, e)
	}

	SortChannel(&ch)
	if ch.Nodes == nil {
		ch.Nodes = []domain.Node{}
	}
	if ch.Edges == nil {
		ch.Edges = []domain.Edge{}
	}
	report.Nodes, report.Edges = len(ch.Nodes), len(ch.Edges)
	return ch, report
}

// newResolver maps an edge endpoint onto a node id. Exact matches win; a
// case-folded match is accepted only when it is unambiguous.
func newResolver(nodes []domain.Node) func(string) (string, bool) {
	fold := cases.Fold()
	exact := make(map[string]bool, len(nodes))
	folded := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		exact[n.ID] = true
		key := fold.String(n.ID)
		folded[key] = append(folded[key], n.ID)
	}
	return func(id string) (string, bool) {
		if exact[id] {
			return id, false
		}
		if candidates := folded[fold.String(id)]; len(candidates) == 1 {
			return candidates[0], true
		}
		return "", false
	}
}

// Compare orders two ids with a locale-aware, numeric-aware collation
// ("node-2" before "node-10"), falling back to byte order on ties.
func Compare(a, b string) int {
	return newComparator()(a, b)
}

func newComparator() func(a, b string) int {
	c := collate.New(language.Und, collate.Numeric)
	return func(a, b string) int {
		if r := c.CompareString(a, b); r != 0 {
			return r
		}
		return strings.Compare(a, b)
	}
}

// SortChannel orders nodes and edges by id with the Compare collation.
func SortChannel(ch *domain.Channel) {
	cmp := newComparator()
	slices.SortStableFunc(ch.Nodes, func(a, b domain.Node) int { return cmp(a.ID, b.ID) })
	slices.SortStableFunc(ch.Edges, func(a, b domain.Edge) int { return cmp(a.ID, b.ID) })
}

// ToRaw converts a domain value (or pointer to one) into its JSON-shaped map
// so that canonical output can be fed back in. Maps are returned unchanged.
func ToRaw(v any) map[string]any {
	if m := asMap(v); m != nil {
		return m
	}
	switch v.(type) {
	case nil, string, []any:
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func list(v any) []any {
	switch items := v.(type) {
	case []any:
		return items
	case []map[string]any:
		return boxed(items)
	case []string:
		return boxed(items)
	case []domain.Port:
		return boxed(items)
	}
	return nil
}

func boxed[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func timestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil && !parsed.IsZero() {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
