package handles_test

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
)

var canonicalForm = regexp.MustCompile(`^(in|out)-(top|right|bottom|left)-[1-9][0-9]*$`)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"out-right-1", "out-right-1", true},
		{"src-right", "out-right-1", true},
		{"right-out-2", "out-right-2", true},
		{"outRight2", "out-right-2", true},
		{"sourceBottom", "out-bottom-1", true},
		{"out_right_2", "out-right-2", true},
		{"tgtbottom3", "in-bottom-3", true},
		{"IN-LEFT-4", "in-left-4", true},
		{" input-top-007 ", "in-top-7", true},
		{"left target", "in-left-1", true},
		{"", "", false},
		{"none", "", false},
		{"undefined", "", false},
		{"na", "", false},
		{"N/A", "", false},
		{"right", "", false},
		{"out-right-0", "", false},
		{"out-right-1000", "", false},
		{"sideways-3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := handles.Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAndFormat(t *testing.T) {
	ref, ok := handles.Parse("in-bottom-12")
	require.True(t, ok)
	assert.Equal(t, handles.Ref{Type: domain.HandleTarget, Side: domain.SideBottom, Index: 12}, ref)
	assert.Equal(t, "in-bottom-12", ref.String())
	assert.Equal(t, "out-top-3", handles.Format(domain.HandleSource, domain.SideTop, 3))

	_, ok = handles.Parse("outRight2")
	assert.False(t, ok, "Parse only accepts the canonical form")
}

func TestNormalize_CanonicalFormProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	aliases := gopter.CombineGens(
		gen.OneConstOf("in", "out", "src", "tgt", "source", "target", "input", "output", "incoming"),
		gen.OneConstOf("top", "right", "bottom", "left"),
		gen.OneConstOf("-", "_", "", " "),
		gen.IntRange(0, 1200),
		gen.Bool(),
	).Map(func(v []any) string {
		dir, side, sep := v[0].(string), v[1].(string), v[2].(string)
		parts := []string{dir, side}
		if v[4].(bool) {
			parts = []string{side, dir}
		}
		if n := v[3].(int); n > 0 {
			parts = append(parts, fmt.Sprint(n))
		}
		return strings.Join(parts, sep)
	})

	properties.Property("normalized ids are canonical and stable", prop.ForAll(
		func(raw string) bool {
			id, ok := handles.Normalize(raw)
			if !ok {
				return id == ""
			}
			again, ok := handles.Normalize(id)
			return canonicalForm.MatchString(id) && ok && again == id
		},
		gen.OneGenOf(aliases, gen.AnyString(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestSanitize(t *testing.T) {
	t.Run("mixed entries", func(t *testing.T) {
		ports := handles.Sanitize([]any{
			"out-right-1",
			"outRight1",
			map[string]any{"id": "garbage", "type": "target", "position": "left"},
			map[string]any{"id": "zzz"},
			42,
			domain.Port{ID: "in-top-2"},
		}, nil)

		ids := make([]string, len(ports))
		for i, p := range ports {
			ids[i] = p.ID
		}
		assert.Equal(t, []string{"out-right-1", "in-left-1", "in-top-2"}, ids)
		assert.Equal(t, domain.HandleTarget, ports[1].Type)
		assert.Equal(t, domain.SideLeft, ports[1].Side)
	})

	t.Run("id wins over explicit fields", func(t *testing.T) {
		ports := handles.Sanitize([]any{
			map[string]any{"id": "in-left-2", "type": "source", "position": "right"},
		}, nil)
		require.Len(t, ports, 1)
		assert.Equal(t, domain.Port{ID: "in-left-2", Type: domain.HandleTarget, Side: domain.SideLeft, Index: 2, Offset: 50}, ports[0])
	})

	t.Run("minted index skips taken ids", func(t *testing.T) {
		ports := handles.Sanitize([]any{
			"in-left-1",
			map[string]any{"type": "in", "side": "left"},
		}, nil)
		require.Len(t, ports, 2)
		assert.Equal(t, "in-left-2", ports[1].ID)
	})

	t.Run("offsets", func(t *testing.T) {
		ports := handles.Sanitize([]any{
			"in-left-1",
			"in-left-2",
			map[string]any{"id": "out-top-1", "offset": 150.0},
		}, nil)
		require.Len(t, ports, 3)
		assert.InDelta(t, 33.33, ports[0].Offset, 0.001)
		assert.InDelta(t, 66.67, ports[1].Offset, 0.001)
		assert.Equal(t, 100.0, ports[2].Offset)
	})

	t.Run("capped", func(t *testing.T) {
		var list []any
		for i := 1; i <= 100; i++ {
			list = append(list, fmt.Sprintf("out-right-%d", i))
		}
		assert.Len(t, handles.Sanitize(list, nil), handles.MaxHandles)
	})

	t.Run("fallback when empty", func(t *testing.T) {
		fallback := []domain.Port{{ID: "out-right-1", Type: domain.HandleSource, Side: domain.SideRight, Index: 1}}
		assert.Equal(t, fallback, handles.Sanitize([]any{"none", "???"}, fallback))
		assert.Nil(t, handles.Sanitize(nil, nil))
	})
}

func TestCatalog(t *testing.T) {
	t.Run("router", func(t *testing.T) {
		ports := handles.Catalog(domain.KindRouter, nil)
		assert.Len(t, ports, 4*handles.RouterPortsPerGroup)
		for _, p := range ports {
			if p.Side != domain.SideBottom {
				continue
			}
			if p.Type == domain.HandleTarget {
				assert.Less(t, p.Offset, 50.0, p.ID)
			} else {
				assert.GreaterOrEqual(t, p.Offset, 50.0, p.ID)
			}
		}
	})

	t.Run("satellite and ird", func(t *testing.T) {
		sat := handles.Catalog(domain.KindSatellite, nil)
		require.Len(t, sat, 1)
		assert.Equal(t, "out-right-1", sat[0].ID)

		ird := handles.Catalog(domain.KindIrd, nil)
		require.Len(t, ird, 1)
		assert.Equal(t, "in-left-1", ird[0].ID)
	})

	t.Run("switch", func(t *testing.T) {
		var ids []string
		for _, p := range handles.Catalog(domain.KindSwitch, nil) {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, []string{"in-top-1", "out-top-1", "in-bottom-1", "out-bottom-1"}, ids)
	})

	t.Run("default slots", func(t *testing.T) {
		var ids []string
		for _, p := range handles.Catalog(domain.KindDefault, nil) {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, []string{"in-top-1", "out-right-1", "out-bottom-1", "in-left-1"}, ids)
	})

	t.Run("custom slots are capped", func(t *testing.T) {
		ports := handles.Catalog(domain.KindCustom, &domain.SlotConfig{Left: domain.SideSlots{In: 40}})
		assert.Len(t, ports, handles.MaxSlotsPerSide)
	})
}

func TestPortsFor(t *testing.T) {
	declared := domain.Node{ID: "r1", Type: "router", Handles: []domain.Port{{ID: "out-top-1", Type: domain.HandleSource, Side: domain.SideTop, Index: 1}}}
	assert.Len(t, handles.PortsFor(declared), 1)

	implicit := domain.Node{ID: "r2", Type: "Enrutador"}
	assert.Len(t, handles.PortsFor(implicit), 4*handles.RouterPortsPerGroup)
}

func TestEnsure(t *testing.T) {
	strict := domain.Node{
		ID: "ird-1",
		Handles: []domain.Port{
			{ID: "in-left-1", Type: domain.HandleTarget, Side: domain.SideLeft, Index: 1},
			{ID: "out-right-1", Type: domain.HandleSource, Side: domain.SideRight, Index: 1},
		},
	}
	implicit := domain.Node{ID: "legacy"}

	tests := []struct {
		name     string
		node     domain.Node
		handle   string
		expected domain.HandleType
		ok       bool
		id       string
		code     handles.Code
	}{
		{"strict member", strict, "in-left-1", domain.HandleTarget, true, "in-left-1", ""},
		{"strict loose spelling", strict, "leftIn1", domain.HandleTarget, true, "in-left-1", ""},
		{"strict undeclared", strict, "in-left-9", domain.HandleTarget, false, "", handles.CodeInvalid},
		{"strict unparseable", strict, "port-a", domain.HandleTarget, false, "", handles.CodeInvalid},
		{"strict wrong direction", strict, "out-right-1", domain.HandleTarget, false, "", handles.CodeTypeMismatch},
		{"empty", strict, "  ", domain.HandleTarget, false, "", handles.CodeMissing},
		{"implicit verbatim", implicit, "port-a", domain.HandleTarget, true, "port-a", ""},
		{"implicit canonicalized", implicit, "srcRight", domain.HandleTarget, true, "out-right-1", ""},
		{"implicit null", implicit, "null", domain.HandleSource, false, "", handles.CodeMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := handles.Ensure(tt.node, tt.handle, tt.expected)
			assert.Equal(t, tt.ok, check.OK)
			assert.Equal(t, tt.id, check.HandleID)
			assert.Equal(t, tt.code, check.Code)
			if !tt.ok {
				assert.NotEmpty(t, check.Error)
			}
		})
	}
}
