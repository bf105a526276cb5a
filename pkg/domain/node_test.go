package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/topograph/pkg/domain"
)

func TestClassifyType(t *testing.T) {
	tests := map[string]domain.NodeKind{
		"satellite":  domain.KindSatellite,
		" IRD ":      domain.KindIrd,
		"router":     domain.KindRouter,
		"enrutador":  domain.KindRouter,
		"switch":     domain.KindSwitch,
		"custom":     domain.KindCustom,
		"":           domain.KindDefault,
		"rack-mount": domain.KindDefault,
	}
	for raw, want := range tests {
		assert.Equal(t, want, domain.ClassifyType(raw), raw)
	}
	assert.Equal(t, domain.KindIrd, domain.Classify(domain.Node{Type: "ird"}))
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Direction
		ok   bool
	}{
		{"ida", domain.DirectionIda, true},
		{"Retorno", domain.DirectionVuelta, true},
		{" both ", domain.DirectionBi, true},
		{"bidireccional", domain.DirectionBi, true},
		{"sideways", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := domain.ParseDirection(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
	assert.True(t, domain.DirectionVuelta.Reverse())
	assert.False(t, domain.DirectionBi.Reverse())
}

func TestActor(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, domain.ActorFrom(ctx))
	assert.Equal(t, "op-7", domain.ActorFrom(domain.WithActor(ctx, "op-7")))
}

func TestSnapshot(t *testing.T) {
	raw, err := domain.Snapshot(nil)
	assert.NoError(t, err)
	assert.JSONEq(t, "null", string(raw))

	raw, err = domain.Snapshot(domain.Node{ID: "a"})
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"a"`)
}
