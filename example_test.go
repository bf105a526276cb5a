package topograph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/topograph"
)

// ExampleEngine_ReconnectEdge saves a two-node chain and moves the edge onto a
// third device that has no declared ports, so the requested handle is kept as is.
func ExampleEngine_ReconnectEdge() {
	eng := topograph.New()
	defer eng.Close()
	ctx := context.Background()

	_, err := eng.SaveDiagram(ctx, "channel-7", map[string]any{
		"nodes": []any{
			map[string]any{"id": "sat-1", "type": "satellite", "data": map[string]any{"label": "Hispasat"}},
			map[string]any{"id": "ird-1", "type": "ird", "position": map[string]any{"x": 300, "y": 0}},
			map[string]any{"id": "monitor", "data": map[string]any{"label": "Monitor"}, "position": map[string]any{"x": 600, "y": 0}},
		},
		"edges": []any{
			map[string]any{"id": "e1", "source": "sat-1", "target": "ird-1"},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	out := topograph.Outcome(eng.ReconnectEdge(ctx, "channel-7", "e1", topograph.EdgePatch{
		Target:       topograph.Value("monitor"),
		TargetHandle: topograph.Value("sdi-a"),
	}))
	fmt.Println(out.OK, out.Edge.Target, out.Edge.TargetHandle)

	out = topograph.Outcome(eng.UpdateNodePosition(ctx, "channel-7", "monitor", map[string]any{"x": "hola", "y": 50}))
	fmt.Println(out.OK, out.Status)
	// Output:
	// true monitor sdi-a
	// false 400
}
