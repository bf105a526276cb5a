package canon_test

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
)

func TestNormalizeNode(t *testing.T) {
	t.Run("trims and coerces", func(t *testing.T) {
		n, ok := canon.NormalizeNode(map[string]any{
			"id":       " node-1 ",
			"data":     map[string]any{"label": " A "},
			"position": map[string]any{"x": "10", "y": "20"},
		})
		require.True(t, ok)
		assert.Equal(t, "node-1", n.ID)
		assert.Equal(t, "A", n.Data.Label)
		assert.Equal(t, domain.Position{X: 10, Y: 20}, n.Position)
	})

	t.Run("missing id is dropped", func(t *testing.T) {
		_, ok := canon.NormalizeNode(map[string]any{"id": "  ", "data": map[string]any{"label": "x"}})
		assert.False(t, ok)
		_, ok = canon.NormalizeNode("node-1")
		assert.False(t, ok)
	})

	t.Run("label fallbacks", func(t *testing.T) {
		n, _ := canon.NormalizeNode(map[string]any{"id": "a", "label": "Top level"})
		assert.Equal(t, "Top level", n.Data.Label)

		n, _ = canon.NormalizeNode(map[string]any{"id": "a"})
		assert.Equal(t, "a", n.Data.Label)

		n, _ = canon.NormalizeNode(map[string]any{"id": "a", "data": map[string]any{"label": strings.Repeat("ñ", 250)}})
		assert.Equal(t, domain.MaxLabelLength, len([]rune(n.Data.Label)))
	})

	t.Run("positions", func(t *testing.T) {
		n, _ := canon.NormalizeNode(map[string]any{
			"id":       "a",
			"position": map[string]any{"x": "hola", "y": 5e9},
			"data":     map[string]any{"labelPosition": map[string]any{"x": 1.0, "y": "NaN"}},
		})
		assert.Equal(t, domain.Position{X: 0, Y: domain.MaxCoordinate}, n.Position)
		assert.Nil(t, n.Data.LabelPosition)
	})

	t.Run("handles and slots", func(t *testing.T) {
		n, _ := canon.NormalizeNode(map[string]any{
			"id":      "a",
			"type":    " customNode ",
			"handles": []any{"outRight2", "none"},
			"data":    map[string]any{"slots": map[string]any{"left": map[string]any{"in": 3.0}}},
		})
		assert.Equal(t, "customNode", n.Type)
		require.Len(t, n.Handles, 1)
		assert.Equal(t, "out-right-2", n.Handles[0].ID)
		require.NotNil(t, n.Data.Slots)
		assert.Equal(t, 3, n.Data.Slots.Left.In)
	})

	t.Run("typed handle lists", func(t *testing.T) {
		for name, declared := range map[string]any{
			"strings": []string{"in-left-1", "out-right-1"},
			"maps": []map[string]any{
				{"id": "in-left-1", "type": "target"},
				{"id": "out-right-1", "type": "source"},
			},
			"ports": []domain.Port{
				{ID: "in-left-1", Type: domain.HandleTarget, Side: domain.SideLeft, Index: 1},
				{ID: "out-right-1", Type: domain.HandleSource, Side: domain.SideRight, Index: 1},
			},
		} {
			n, ok := canon.NormalizeNode(map[string]any{"id": "rx", "handles": declared})
			require.True(t, ok, name)
			require.Len(t, n.Handles, 2, name)
			assert.Equal(t, "in-left-1", n.Handles[0].ID, name)
			assert.Equal(t, "out-right-1", n.Handles[1].ID, name)
		}

		n, _ := canon.NormalizeNode(map[string]any{"id": "rx", "data": map[string]any{"handles": []string{"outTop1"}}})
		require.Len(t, n.Handles, 1)
		assert.Equal(t, "out-top-1", n.Handles[0].ID)
	})

	t.Run("typed input", func(t *testing.T) {
		in := domain.Node{ID: "sat-1", Type: "satellite", Position: domain.Position{X: 3, Y: 4}}
		n, ok := canon.NormalizeNode(in)
		require.True(t, ok)
		assert.Equal(t, "sat-1", n.Data.Label)
		assert.Equal(t, in.Position, n.Position)
	})
}

func TestNormalizeEdge(t *testing.T) {
	e, ok := canon.NormalizeEdge(map[string]any{
		"id":           "e1",
		"source":       " a ",
		"target":       "b",
		"sourceHandle": "src-right",
		"targetHandle": "null",
		"direction":    "RETORNO",
		"animated":     true,
		"data": map[string]any{
			"autoLabel":    "true",
			"tooltipTitle": "   ",
			"tooltip":      " feed ",
			"endpointLabels": map[string]any{
				"source": map[string]any{"x": 1, "y": 2},
			},
		},
	})
	require.True(t, ok)
	assert.Equal(t, "a", e.Source)
	assert.Equal(t, "out-right-1", e.SourceHandle)
	assert.Equal(t, "", e.TargetHandle)
	assert.Equal(t, domain.DirectionVuelta, e.Direction)
	assert.True(t, e.Style.Animated)
	assert.True(t, e.Data.AutoLabel)
	assert.Nil(t, e.Data.TooltipTitle)
	require.NotNil(t, e.Data.Tooltip)
	assert.Equal(t, "feed", *e.Data.Tooltip)
	require.NotNil(t, e.Data.EndpointLabels)
	assert.Equal(t, &domain.Position{X: 1, Y: 2}, e.Data.EndpointLabels.Source)

	e, ok = canon.NormalizeEdge(map[string]any{"id": "e2", "source": "a", "target": "b", "targetHandle": "port-a"})
	require.True(t, ok)
	assert.Equal(t, "port-a", e.TargetHandle, "unparseable handles survive for implicit-port nodes")
	assert.Equal(t, domain.DirectionIda, e.Direction)

	_, ok = canon.NormalizeEdge(map[string]any{"id": "e3", "source": "a"})
	assert.False(t, ok)
}

func TestNormalizeChannel(t *testing.T) {
	ch, report := canon.NormalizeChannelReport(map[string]any{
		"id": "ch-1",
		"nodes": []any{
			map[string]any{"id": "node-10"},
			map[string]any{"id": "node-2"},
			map[string]any{"id": "node-2", "data": map[string]any{"label": "dup"}},
			map[string]any{"id": "Sat"},
			map[string]any{"id": "ird"},
			map[string]any{"id": "IRD"},
			map[string]any{"data": map[string]any{}},
		},
		"edges": []any{
			map[string]any{"id": "e-10", "source": "node-2", "target": "node-10"},
			map[string]any{"id": "e-2", "source": "sat", "target": "node-2"},
			map[string]any{"id": "e-3", "source": "Ird", "target": "node-2"},
			map[string]any{"id": "e-4", "source": "ghost", "target": "node-2"},
			map[string]any{"id": "e-4", "source": "node-2", "target": "node-10"},
		},
	})

	var nodeIDs, edgeIDs []string
	for _, n := range ch.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	for _, e := range ch.Edges {
		edgeIDs = append(edgeIDs, e.ID)
	}

	assert.Equal(t, "ch-1", ch.ID)
	assert.Equal(t, []string{"ird", "IRD", "node-2", "node-10", "Sat"}, nodeIDs)
	assert.Equal(t, []string{"e-2", "e-10"}, edgeIDs)
	assert.Equal(t, "Sat", ch.Edges[0].Source, "unambiguous case-insensitive resolution")
	assert.Equal(t, "node-2", ch.Nodes[2].Data.Label, "first duplicate wins")

	assert.Equal(t, canon.Report{
		Nodes:           5,
		Edges:           2,
		DroppedNodes:    1,
		DuplicateNodes:  1,
		DuplicateEdges:  1,
		UnresolvedEdges: 2,
		CaseResolved:    1,
	}, report)
	assert.False(t, report.Clean())
}

func TestCompare(t *testing.T) {
	assert.Negative(t, canon.Compare("node-2", "node-10"))
	assert.Positive(t, canon.Compare("b", "A"))
	assert.Zero(t, canon.Compare("x", "x"))
	assert.NotZero(t, canon.Compare("a", "A"))
}

func TestNormalizeChannel_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("idempotent", prop.ForAll(
		func(seed int64, nodes, edges int) bool {
			once := canon.NormalizeChannel(randomPayload(seed, nodes, edges))
			twice := canon.NormalizeChannel(once)
			return reflect.DeepEqual(once, twice)
		},
		gen.Int64(), gen.IntRange(0, 12), gen.IntRange(0, 24),
	))

	properties.Property("independent of input order", prop.ForAll(
		func(seed int64, nodes, edges int) bool {
			payload := randomPayload(seed, nodes, edges)
			shuffled := map[string]any{
				"nodes": shuffle(seed+1, payload["nodes"].([]any)),
				"edges": shuffle(seed+2, payload["edges"].([]any)),
			}
			return reflect.DeepEqual(canon.NormalizeChannel(payload), canon.NormalizeChannel(shuffled))
		},
		gen.Int64(), gen.IntRange(0, 12), gen.IntRange(0, 24),
	))

	properties.Property("edges resolve", prop.ForAll(
		func(seed int64, nodes, edges int) bool {
			ch := canon.NormalizeChannel(randomPayload(seed, nodes, edges))
			ids := ch.NodeIndex()
			for _, e := range ch.Edges {
				if _, ok := ids[e.Source]; !ok {
					return false
				}
				if _, ok := ids[e.Target]; !ok {
					return false
				}
			}
			return true
		},
		gen.Int64(), gen.IntRange(0, 12), gen.IntRange(0, 24),
	))

	properties.TestingRun(t)
}

// randomPayload builds an editor payload with unique ids, loose values and
// some dangling or differently-cased references.
func randomPayload(seed int64, nodes, edges int) map[string]any {
	rng := rand.New(rand.NewSource(seed))
	prefixes := []string{"node", "Node", "sat", "ird", "router"}
	coords := []any{1.5, -3.0, "42", "hola", 5e7, math.Inf(1), nil}
	handles := []any{"out-right-1", "srcRight", "tgtbottom3", "none", "port-x", nil}
	directions := []any{"ida", "vuelta", "both", "retorno", "", nil}

	id := func(i int) string {
		return fmt.Sprintf("%s-%d", prefixes[i%len(prefixes)], i)
	}

	rawNodes := make([]any, 0, nodes)
	for i := 0; i < nodes; i++ {
		rawNodes = append(rawNodes, map[string]any{
			"id":       id(i),
			"type":     prefixes[rng.Intn(len(prefixes))],
			"position": map[string]any{"x": coords[rng.Intn(len(coords))], "y": coords[rng.Intn(len(coords))]},
			"data":     map[string]any{"label": fmt.Sprintf(" label %d ", rng.Intn(100))},
			"handles":  []any{handles[rng.Intn(len(handles))], handles[rng.Intn(len(handles))]},
		})
	}

	ref := func() string {
		s := id(rng.Intn(nodes + 3))
		if rng.Intn(4) == 0 {
			s = strings.ToUpper(s)
		}
		return s
	}

	rawEdges := make([]any, 0, edges)
	for i := 0; i < edges; i++ {
		rawEdges = append(rawEdges, map[string]any{
			"id":           fmt.Sprintf("e-%d", i),
			"source":       ref(),
			"target":       ref(),
			"sourceHandle": handles[rng.Intn(len(handles))],
			"targetHandle": handles[rng.Intn(len(handles))],
			"direction":    directions[rng.Intn(len(directions))],
			"data":         map[string]any{"autoLabel": rng.Intn(2) == 0, "tooltip": " "},
		})
	}
	return map[string]any{"nodes": rawNodes, "edges": rawEdges}
}

func shuffle(seed int64, items []any) []any {
	out := append([]any(nil), items...)
	rand.New(rand.NewSource(seed)).Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
